package kv_test

import (
	"context"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage/kv"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_KV(t *testing.T) {
	gen := genesis.Default()
	gen.Difficulty = 1

	t.Log("Given the need to keep blocks in a key/value store.")
	{
		strg, err := kv.New("", nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open an in-memory store: %v", failed, err)
		}
		defer strg.Close()

		db, err := database.New(gen, strg, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		genBlock, err := db.GenerateGenesis(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate genesis: %v", failed, err)
		}

		next, err := database.POW(context.Background(), database.POWArgs{
			Rules:         db.Rules(),
			Number:        2,
			PrevBlockHash: genBlock.Hash,
			Payload:       "two",
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine block 2: %v", failed, err)
		}
		if err := db.TryAppend(next); err != nil {
			t.Fatalf("\t%s\tShould be able to append block 2: %v", failed, err)
		}

		t.Logf("\tTest 0:\tWhen reading the blocks back.")
		{
			got, err := strg.GetBlock(2)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to get block 2: %v", failed, err)
			}
			if got != next {
				t.Fatalf("\t%s\tTest 0:\tShould get back the same block: %v", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould get back the same block.", success)

			if _, err := strg.GetBlock(3); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould not find block 3.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not find block 3.", success)

			reopened, err := database.New(gen, strg, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to replay the store: %v", failed, err)
			}
			if reopened.Count() != 2 || reopened.LatestBlock() != next {
				t.Fatalf("\t%s\tTest 0:\tShould replay all the blocks: %d", failed, reopened.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould replay all the blocks.", success)
		}

		t.Logf("\tTest 1:\tWhen resetting the store.")
		{
			if err := strg.Reset(); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to reset: %v", failed, err)
			}

			iter := strg.ForEach()
			if _, err := iter.Next(); err == nil || !iter.Done() {
				t.Fatalf("\t%s\tTest 1:\tShould have no blocks left.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould have no blocks left.", success)
		}
	}
}
