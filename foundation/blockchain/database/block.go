package database

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// ZeroHash represents the placeholder previous hash used by the genesis block.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// Algorithm names the hash function used to produce block hashes.
type Algorithm string

// Set of supported hash algorithms.
const (
	AlgorithmSHA3   Algorithm = "sha3-256"
	AlgorithmSHA256 Algorithm = "sha256"
)

// DefaultRules are the rules used when a chain doesn't specify its own.
var DefaultRules = Rules{
	Difficulty: 4,
	Algorithm:  AlgorithmSHA3,
}

// =============================================================================

// Block represents a single mined record in the chain. Once mined, a block
// is never changed.
type Block struct {
	Number        uint64 `json:"number"`          // Position in the chain, genesis is 1.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	Payload       string `json:"payload"`         // Opaque content recorded by the block.
	TimeStamp     int64  `json:"timestamp"`       // Time the block was mined.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.
	Hash          string `json:"hash"`            // Hash of all the fields above.
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%d:%s", b.Number, b.Hash)
}

// =============================================================================

// Rules represents the proof of work rules a chain is mined under.
type Rules struct {
	Difficulty uint      `json:"difficulty"` // Number of leading 0's needed to solve the hash solution.
	Algorithm  Algorithm `json:"algorithm"`  // Hash function used to produce block hashes.
}

// Check validates the rules can be used to mine and validate blocks.
func (r Rules) Check() error {
	switch r.Algorithm {
	case AlgorithmSHA3, AlgorithmSHA256:
	default:
		return fmt.Errorf("unknown hash algorithm %q", r.Algorithm)
	}

	if r.Difficulty > 64 {
		return fmt.Errorf("difficulty %d is larger than the hash", r.Difficulty)
	}

	return nil
}

// Hash recomputes the hash for the specified block from its fields. The
// stored hash of the block is not part of the calculation.
func (r Rules) Hash(b Block) string {
	return r.hash(b.Number, b.PrevBlockHash, b.Payload, b.TimeStamp, b.Nonce)
}

// IsSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's. A difficulty larger
// than the hash can never be solved.
func (r Rules) IsSolved(hash string) bool {
	if len(hash) != 64 || r.Difficulty > uint(len(hash)) {
		return false
	}

	return hash[:r.Difficulty] == ZeroHash[:r.Difficulty]
}

// hash produces the lowercase hex hash for the set of block fields. The
// fields are concatenated in their decimal or raw string forms.
func (r Rules) hash(number uint64, prevBlockHash string, payload string, timeStamp int64, nonce uint64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d%s%s%d%d", number, prevBlockHash, payload, timeStamp, nonce)

	var sum [32]byte
	switch r.Algorithm {
	case AlgorithmSHA256:
		sum = sha256.Sum256([]byte(sb.String()))
	default:
		sum = sha3.Sum256([]byte(sb.String()))
	}

	return hex.EncodeToString(sum[:])
}

// =============================================================================

// ValidateBlock takes a block and validates it can follow the previous block
// in the chain. The checks are performed in a fixed order and the first
// failure is returned as a *RejectError.
func (r Rules) ValidateBlock(block Block, prevBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: prev block hash does match prev block", block.Number)

	if block.PrevBlockHash != prevBlock.Hash {
		return newRejectError(ReasonBadLink, block.Number, block.PrevBlockHash, prevBlock.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", block.Number)

	if !r.IsSolved(block.Hash) {
		return newRejectError(ReasonBadProofOfWork, block.Number, block.Hash, fmt.Sprintf("%d leading zeros", r.Difficulty))
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", block.Number)

	nextNumber := prevBlock.Number + 1
	if block.Number != nextNumber {
		return newRejectError(ReasonBadSequence, block.Number, fmt.Sprint(block.Number), fmt.Sprint(nextNumber))
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash does match block fields", block.Number)

	if hash := r.Hash(block); hash != block.Hash {
		return newRejectError(ReasonHashMismatch, block.Number, block.Hash, hash)
	}

	return nil
}
