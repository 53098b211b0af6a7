// Package cmd contains the ledger tooling commands.
package cmd

import (
	"os"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/spf13/cobra"
)

var (
	genesisPath string
	difficulty  uint
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Tooling for the proof of work ledger",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "", "Path to the genesis file, defaults are used when empty.")
	rootCmd.PersistentFlags().UintVarP(&difficulty, "difficulty", "d", 0, "Overrides the genesis difficulty when set.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print the blockchain events.")
}

// loadGenesis returns the genesis the command works with.
func loadGenesis() (genesis.Genesis, error) {
	gen := genesis.Default()
	if genesisPath != "" {
		var err error
		if gen, err = genesis.Load(genesisPath); err != nil {
			return genesis.Genesis{}, err
		}
	}

	if difficulty != 0 {
		gen.Difficulty = difficulty
	}

	return gen, nil
}

// evHandler prints the blockchain events when verbose is set.
func evHandler(v string, args ...any) {
	if verbose {
		rootCmd.PrintErrf(v+"\n", args...)
	}
}
