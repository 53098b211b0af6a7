// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Default genesis values used when the genesis file doesn't provide them.
const (
	DefaultDifficulty = 4
	DefaultAlgorithm  = "sha3-256"
	DefaultPayload    = "I am the first or genesis block"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date        time.Time `json:"date"`         // Used as the timestamp of the genesis block.
	Difficulty  uint      `json:"difficulty"`   // Number of leading 0's needed to solve the hash solution.
	Algorithm   string    `json:"algorithm"`    // Hash function used to produce block hashes.
	Payload     string    `json:"payload"`      // Payload recorded in the genesis block.
	MaxAttempts uint64    `json:"max_attempts"` // Nonce budget for mining a block, zero means unbounded.
	Workers     int       `json:"workers"`      // Number of goroutines sharing the nonce search.
}

// Default returns a genesis with the default values applied.
func Default() Genesis {
	return Genesis{
		Date:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Difficulty: DefaultDifficulty,
		Algorithm:  DefaultAlgorithm,
		Payload:    DefaultPayload,
		Workers:    1,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields missing from the file
// keep their default values.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("unmarshal genesis: %w", err)
	}

	return genesis, nil
}
