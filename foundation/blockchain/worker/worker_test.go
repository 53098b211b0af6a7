package worker_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/worker"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const minerKey = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"

func Test_Mining(t *testing.T) {
	t.Log("Given the need to mine payloads in the background.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen payloads are submitted to a running node.", testID)
		{
			storage, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create storage: %s", failed, testID, err)
			}

			key, err := crypto.HexToECDSA(minerKey)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the key: %s", failed, testID, err)
			}

			gen := genesis.Default()
			gen.Difficulty = 2
			gen.Workers = 2

			ev := func(v string, args ...any) { t.Logf(v, args...) }

			st, err := state.New(state.Config{
				MinerKey:   key,
				Host:       "node-a",
				Genesis:    gen,
				Storage:    storage,
				KnownPeers: peer.NewPeerSet(),
				EvHandler:  ev,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the state: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to construct the state.", success, testID)

			worker.Run(st, ev)

			st.SubmitPayload("first")
			st.SubmitPayload("second")
			st.SubmitPayload("third")

			deadline := time.Now().Add(30 * time.Second)
			for st.RetrieveLatestBlock().Number < 4 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}

			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to shutdown: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to shutdown.", success, testID)

			blocks := st.RetrieveBlocks()
			if len(blocks) != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould have mined every payload: blocks[%d]", failed, testID, len(blocks))
			}
			for i, exp := range []string{"first", "second", "third"} {
				if blocks[i+1].Payload != exp {
					t.Fatalf("\t%s\tTest %d:\tShould mine the payloads in order: got %q exp %q", failed, testID, blocks[i+1].Payload, exp)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould mine every payload in order.", success, testID)

			if err := st.ValidateChain(blocks); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould have a valid chain: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould have a valid chain.", success, testID)
		}
	}
}

func Test_MiningBudgetExhausted(t *testing.T) {
	t.Log("Given the need to keep mining when the nonce budget runs out.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen no payload can be solved within the budget.", testID)
		{
			gen := genesis.Default()
			gen.MaxAttempts = 1

			// The genesis block is held to the same budget, so it's mined
			// up front and placed in storage.
			rules := database.Rules{Difficulty: gen.Difficulty, Algorithm: database.Algorithm(gen.Algorithm)}
			genBlock, err := database.POW(context.Background(), database.POWArgs{
				Rules:         rules,
				Number:        1,
				PrevBlockHash: database.ZeroHash,
				Payload:       gen.Payload,
				TimeStamp:     gen.Date.Unix(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the genesis block: %s", failed, testID, err)
			}

			storage, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create storage: %s", failed, testID, err)
			}
			if err := storage.Write(genBlock); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to store the genesis block: %s", failed, testID, err)
			}

			key, err := crypto.HexToECDSA(minerKey)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the key: %s", failed, testID, err)
			}

			var mu sync.Mutex
			var searches int
			picked := make(map[string]bool)

			ev := func(v string, args ...any) {
				s := fmt.Sprintf(v, args...)

				mu.Lock()
				defer mu.Unlock()

				switch {
				case strings.HasPrefix(s, "database: POW: MINING: started"):
					searches++
				case strings.HasPrefix(s, "state: MineNewBlock: MINING: perform POW: payload["):
					picked[strings.TrimSuffix(strings.TrimPrefix(s, "state: MineNewBlock: MINING: perform POW: payload["), "]")] = true
				}
			}

			st, err := state.New(state.Config{
				MinerKey:   key,
				Host:       "node-a",
				Genesis:    gen,
				Storage:    storage,
				KnownPeers: peer.NewPeerSet(),
				EvHandler:  ev,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the state: %s", failed, testID, err)
			}

			worker.Run(st, ev)

			stuck := st.SubmitPayload("stuck")
			behind := st.SubmitPayload("behind")

			both := func() bool {
				mu.Lock()
				defer mu.Unlock()
				return picked[stuck.ID] && picked[behind.ID]
			}

			deadline := time.Now().Add(10 * time.Second)
			for !both() && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}

			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to shutdown: %s", failed, testID, err)
			}

			if !both() {
				t.Fatalf("\t%s\tTest %d:\tShould try the payload behind the stuck one.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould try the payload behind the stuck one.", success, testID)

			mu.Lock()
			n := searches
			mu.Unlock()

			if n > 5 {
				t.Fatalf("\t%s\tTest %d:\tShould wait before searching again: searches[%d]", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould wait before searching again: searches[%d]", success, testID, n)

			if st.QueryMempoolLength() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould keep both payloads in the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep both payloads in the mempool.", success, testID)
		}
	}
}
