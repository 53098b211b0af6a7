package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	localPath     string
	remotePath    string
	selectStorage string
)

// selectCmd represents the select command
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Choose between a local and a remote chain",
	Run: func(cmd *cobra.Command, args []string) {
		gen, err := loadGenesis()
		if err != nil {
			log.Fatal(err)
		}

		rules, err := rulesFor(gen)
		if err != nil {
			log.Fatal(err)
		}

		read := func(path string) []database.Block {
			var blocks []database.Block
			var err error

			switch selectStorage {
			case "file":
				blocks, err = readChainFile(path)
			default:
				blocks, err = readChainStorage(selectStorage, path)
			}
			if err != nil {
				log.Fatal(err)
			}

			return blocks
		}

		selectAndPrint(rules, read(localPath), read(remotePath))
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().StringVarP(&localPath, "local", "l", "zblock/blocks", "Path to the local chain.")
	selectCmd.Flags().StringVarP(&remotePath, "remote", "r", "", "Path to the remote chain.")
	selectCmd.Flags().StringVarP(&selectStorage, "storage", "s", "disk", "Storage the chains are held in: file|disk|kv.")
	selectCmd.MarkFlagRequired("remote")
}

func selectAndPrint(rules database.Rules, local []database.Block, remote []database.Block) {
	chain, ok := rules.SelectPreferred(local, remote, evHandler)
	switch {
	case !ok:
		fmt.Println("select: neither chain is valid")
	case len(chain) == len(local) && (len(chain) == 0 || chain[len(chain)-1].Hash == local[len(local)-1].Hash):
		fmt.Printf("select: keeping local: blocks[%d]\n", len(chain))
	default:
		fmt.Printf("select: adopting remote: blocks[%d]\n", len(chain))
	}
}
