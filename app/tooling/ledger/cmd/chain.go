package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage/kv"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// readChainFile reads a JSON array of blocks.
func readChainFile(path string) ([]database.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var blocks []database.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("unmarshal chain %s: %w", path, err)
	}

	return blocks, nil
}

// readChainStorage reads every block held by a node's storage without
// validating them. The storage must already exist.
func readChainStorage(storage string, path string) ([]database.Block, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open chain %s: %w", path, err)
	}

	var serializer database.Serializer

	switch storage {
	case "disk":
		d, err := disk.New(path)
		if err != nil {
			return nil, err
		}
		serializer = d

	case "kv":
		k, err := kv.New(path, evHandler)
		if err != nil {
			return nil, err
		}
		serializer = k

	default:
		return nil, fmt.Errorf("unknown storage %q", storage)
	}
	defer serializer.Close()

	var blocks []database.Block
	iter := serializer.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// rulesFor returns the proof of work rules described by the genesis.
func rulesFor(gen genesis.Genesis) (database.Rules, error) {
	rules := database.Rules{
		Difficulty: gen.Difficulty,
		Algorithm:  database.Algorithm(gen.Algorithm),
	}

	if err := rules.Check(); err != nil {
		return database.Rules{}, fmt.Errorf("genesis rules: %w", err)
	}

	return rules, nil
}

func printChain(blocks []database.Block) {
	for _, block := range blocks {
		fmt.Printf("  blk[%d] nonce[%d] hash[%s] prev[%s] payload[%q]\n", block.Number, block.Nonce, block.Hash, block.PrevBlockHash, block.Payload)
	}
}

func printValidation(name string, rules database.Rules, blocks []database.Block) {
	if err := rules.ValidateChain(blocks, evHandler); err != nil {
		fmt.Printf("%s: invalid: %s\n", name, err)
		return
	}
	fmt.Printf("%s: valid: blocks[%d]\n", name, len(blocks))
}
