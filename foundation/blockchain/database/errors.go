package database

import (
	"errors"
	"fmt"
)

// Set of error variables for chain management and mining.
var (
	ErrNoGenesis     = errors.New("chain has no genesis block, generate a genesis block first")
	ErrGenesisExists = errors.New("chain already has a genesis block")
	ErrExhausted     = errors.New("no solution found within the mining budget")
	ErrChainForked   = errors.New("blockchain forked, start resync")

	ErrChainNotPreferred = errors.New("current chain is preferred over the new chain")
)

// =============================================================================

// Reason represents the check a block failed during validation.
type Reason int

// Set of reasons a block can be rejected, in the order they are checked.
const (
	ReasonBadLink Reason = iota + 1
	ReasonBadProofOfWork
	ReasonBadSequence
	ReasonHashMismatch
)

var reasonNames = map[Reason]string{
	ReasonBadLink:        "BadLink",
	ReasonBadProofOfWork: "BadProofOfWork",
	ReasonBadSequence:    "BadSequence",
	ReasonHashMismatch:   "HashMismatch",
}

// String implements the fmt.Stringer interface.
func (r Reason) String() string {
	name, exists := reasonNames[r]
	if !exists {
		return fmt.Sprintf("Reason(%d)", int(r))
	}
	return name
}

// MarshalText implements the encoding.TextMarshaler interface.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// =============================================================================

// RejectError is returned when a block fails validation. The chain is never
// changed when a block is rejected.
type RejectError struct {
	Reason Reason
	Number uint64 // Number of the rejected block.
	Index  int    // Position in the chain being validated, -1 for a single block.
	Got    string
	Exp    string
}

func newRejectError(reason Reason, number uint64, got string, exp string) *RejectError {
	return &RejectError{
		Reason: reason,
		Number: number,
		Index:  -1,
		Got:    got,
		Exp:    exp,
	}
}

// Error implements the error interface.
func (re *RejectError) Error() string {
	var msg string
	switch re.Reason {
	case ReasonBadLink:
		msg = "prev block hash doesn't match our known prev block"
	case ReasonBadProofOfWork:
		msg = "block hash doesn't solve the proof of work"
	case ReasonBadSequence:
		msg = "block is not the next number"
	case ReasonHashMismatch:
		msg = "block hash doesn't match the block fields"
	default:
		msg = "block is invalid"
	}

	if re.Index >= 0 {
		return fmt.Sprintf("%s: blk[%d] at index %d: %s, got %s, exp %s", re.Reason, re.Number, re.Index, msg, re.Got, re.Exp)
	}
	return fmt.Sprintf("%s: blk[%d]: %s, got %s, exp %s", re.Reason, re.Number, msg, re.Got, re.Exp)
}

// IsReject checks if an error of type RejectError exists.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

// GetReject returns a copy of the RejectError pointer.
func GetReject(err error) *RejectError {
	var re *RejectError
	if !errors.As(err, &re) {
		return nil
	}
	return re
}
