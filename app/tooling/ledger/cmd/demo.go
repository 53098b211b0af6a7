package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/spf13/cobra"
)

var demoPayloads = []string{
	"Shubhendu A. Dutta",
	"I currently work at Deloitte Digital",
	"I am a Blockchain Developer",
}

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo [payload...]",
	Short: "Mine a chain in memory, tamper with it and run the fork choice",
	Run: func(cmd *cobra.Command, args []string) {
		gen, err := loadGenesis()
		if err != nil {
			log.Fatal(err)
		}

		payloads := demoPayloads
		if len(args) > 0 {
			payloads = args
		}

		if err := runDemo(cmd.Context(), gen, payloads); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(ctx context.Context, gen genesis.Genesis, payloads []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := newMemoryChain(ctx, gen)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Mining the chain ....")
	for _, payload := range payloads {
		if _, err := mineNext(ctx, db, payload); err != nil {
			return err
		}
	}
	printChain(db.Blocks())

	fmt.Println()
	fmt.Println("Validating the chain ....")
	printValidation("local", db.Rules(), db.Blocks())

	fmt.Println()
	fmt.Println("Tampering with a block ....")
	tampered := db.Blocks()
	if len(tampered) > 1 {
		tampered[1].Payload = "tampered"
	}
	printValidation("tampered", db.Rules(), tampered)

	// A second chain shares the genesis block and mines one more block than
	// the local chain so the fork choice has something to decide.
	fmt.Println()
	fmt.Println("Running the fork choice ....")
	fork, err := newMemoryChain(ctx, gen)
	if err != nil {
		return err
	}
	defer fork.Close()

	for i := 0; i <= len(payloads); i++ {
		if _, err := mineNext(ctx, fork, fmt.Sprintf("fork payload %d", i)); err != nil {
			return err
		}
	}

	selectAndPrint(db.Rules(), db.Blocks(), fork.Blocks())
	selectAndPrint(db.Rules(), db.Blocks(), tampered)

	return nil
}

// =============================================================================

func newMemoryChain(ctx context.Context, gen genesis.Genesis) (*database.Database, error) {
	storage, err := memory.New()
	if err != nil {
		return nil, err
	}

	db, err := database.New(gen, storage, evHandler)
	if err != nil {
		return nil, err
	}

	if _, err := db.GenerateGenesis(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func mineNext(ctx context.Context, db *database.Database, payload string) (database.Block, error) {
	latest := db.LatestBlock()
	gen := db.Genesis()

	block, err := database.POW(ctx, database.POWArgs{
		Rules:         db.Rules(),
		Number:        latest.Number + 1,
		PrevBlockHash: latest.Hash,
		Payload:       payload,
		MaxAttempts:   gen.MaxAttempts,
		Workers:       gen.Workers,
		EvHandler:     evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	if err := db.TryAppend(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}
