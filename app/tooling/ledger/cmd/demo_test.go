package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Demo(t *testing.T) {
	gen := genesis.Default()
	gen.Difficulty = 1

	t.Log("Given the need to run the demo scenario.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining with a low difficulty.", testID)
		{
			if err := runDemo(context.Background(), gen, demoPayloads); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to run the demo : %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to run the demo.", success, testID)
		}
	}
}

func Test_ReadChain(t *testing.T) {
	gen := genesis.Default()
	gen.Difficulty = 1
	ctx := context.Background()

	db, err := newMemoryChain(ctx, gen)
	if err != nil {
		t.Fatalf("Should be able to construct a chain: %s", err)
	}
	defer db.Close()

	if _, err := mineNext(ctx, db, "payload"); err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	t.Log("Given the need to read chains for validation.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the chain is held in a JSON file.", testID)
		{
			data, err := json.Marshal(db.Blocks())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to marshal the chain : %s", failed, testID, err)
			}

			path := filepath.Join(t.TempDir(), "chain.json")
			if err := os.WriteFile(path, data, 0600); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write the chain : %s", failed, testID, err)
			}

			blocks, err := readChainFile(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the chain : %s", failed, testID, err)
			}

			rules, err := rulesFor(gen)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the rules : %s", failed, testID, err)
			}

			if err := rules.ValidateChain(blocks, evHandler); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould read back a valid chain : %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould read back a valid chain.", success, testID)
		}
	}
}

func Test_RulesFor(t *testing.T) {
	gen := genesis.Default()
	gen.Difficulty = 65

	t.Log("Given the need to build rules from the command line.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the difficulty is larger than the hash.", testID)
		{
			if _, err := rulesFor(gen); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould refuse the difficulty.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse the difficulty.", success, testID)
		}
	}
}

func Test_ReadChainStorageMissing(t *testing.T) {
	t.Log("Given the need to read a chain from a node's storage.")
	{
		missing := filepath.Join(t.TempDir(), "typo")

		for testID, storage := range []string{"disk", "kv"} {
			t.Logf("\tTest %d:\tWhen the %s storage path does not exist.", testID, storage)
			{
				if _, err := readChainStorage(storage, missing); !errors.Is(err, fs.ErrNotExist) {
					t.Fatalf("\t%s\tTest %d:\tShould report the missing path : %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould report the missing path.", success, testID)

				if _, err := os.Stat(missing); !errors.Is(err, fs.ErrNotExist) {
					t.Fatalf("\t%s\tTest %d:\tShould not create the path : %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould not create the path.", success, testID)
			}
		}
	}
}
