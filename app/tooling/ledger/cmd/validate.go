package cmd

import (
	"log"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	validatePath    string
	validateStorage string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a chain stored by a node or held in a JSON file",
	Run: func(cmd *cobra.Command, args []string) {
		gen, err := loadGenesis()
		if err != nil {
			log.Fatal(err)
		}

		rules, err := rulesFor(gen)
		if err != nil {
			log.Fatal(err)
		}

		var blocks []database.Block
		switch validateStorage {
		case "file":
			blocks, err = readChainFile(validatePath)
		default:
			blocks, err = readChainStorage(validateStorage, validatePath)
		}
		if err != nil {
			log.Fatal(err)
		}

		printValidation(validatePath, rules, blocks)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validatePath, "path", "p", "zblock/blocks", "Path to the chain.")
	validateCmd.Flags().StringVarP(&validateStorage, "storage", "s", "disk", "Storage the chain is held in: file|disk|kv.")
}
