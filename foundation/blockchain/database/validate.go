package database

// ValidateChain walks the specified blocks and validates every block against
// the block before it. An empty chain and a chain with only one block are
// considered valid. The first invalid block stops the walk and is returned
// as a *RejectError with the index of the block.
func (r Rules) ValidateChain(blocks []Block, evHandler func(v string, args ...any)) error {
	switch len(blocks) {
	case 0:
		evHandler("database: ValidateChain: the chain is empty")
		return nil

	case 1:
		evHandler("database: ValidateChain: the chain has only one block")
		return nil
	}

	for i := 1; i < len(blocks); i++ {
		if err := r.ValidateBlock(blocks[i], blocks[i-1], evHandler); err != nil {
			if re := GetReject(err); re != nil {
				re.Index = i
			}
			evHandler("database: ValidateChain: WARNING: %s", err)
			return err
		}
	}

	evHandler("database: ValidateChain: the chain is valid: blocks[%d]", len(blocks))

	return nil
}

// SelectPreferred validates both chains and returns the one that should be
// kept. When both are valid the longer chain wins and a tie keeps the local
// chain. The bool is false when neither chain is valid.
func (r Rules) SelectPreferred(local []Block, remote []Block, evHandler func(v string, args ...any)) ([]Block, bool) {
	localValid := r.ValidateChain(local, evHandler) == nil
	remoteValid := r.ValidateChain(remote, evHandler) == nil

	switch {
	case localValid && remoteValid:
		if len(local) >= len(remote) {
			evHandler("database: SelectPreferred: local is valid and more current: local[%d]: remote[%d]", len(local), len(remote))
			return local, true
		}
		evHandler("database: SelectPreferred: remote is valid and more current: local[%d]: remote[%d]", len(local), len(remote))
		return remote, true

	case localValid:
		evHandler("database: SelectPreferred: local is valid but remote is invalid")
		return local, true

	case remoteValid:
		evHandler("database: SelectPreferred: remote is valid but local is invalid")
		return remote, true
	}

	evHandler("database: SelectPreferred: both local and remote are invalid")
	return nil, false
}
