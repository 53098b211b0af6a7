package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage/kv"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	minerKeyA = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	minerKeyB = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("\t%s\tShould not receive an error: %s", failed, err)
	}
}

func newState(t *testing.T, hexKey string, host string) *state.State {
	t.Helper()

	storage, err := memory.New()
	ifErrFailNow(t, err)

	key, err := crypto.HexToECDSA(hexKey)
	ifErrFailNow(t, err)

	gen := genesis.Default()
	gen.Difficulty = 2

	st, err := state.New(state.Config{
		MinerKey:   key,
		Host:       host,
		Genesis:    gen,
		Storage:    storage,
		KnownPeers: peer.NewPeerSet(),
		EvHandler:  func(v string, args ...any) { t.Logf(v, args...) },
	})
	ifErrFailNow(t, err)

	t.Cleanup(func() { st.Shutdown() })

	return st
}

func mine(t *testing.T, st *state.State, payload string) database.Block {
	t.Helper()

	st.SubmitPayload(payload)
	block, err := st.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	return block
}

// newBudgetState constructs a state that may try a single nonce per block.
// The genesis block is mined up front since it is held to the same budget.
func newBudgetState(t *testing.T) *state.State {
	t.Helper()

	gen := genesis.Default()
	gen.MaxAttempts = 1

	rules := database.Rules{Difficulty: gen.Difficulty, Algorithm: database.Algorithm(gen.Algorithm)}
	genBlock, err := database.POW(context.Background(), database.POWArgs{
		Rules:         rules,
		Number:        1,
		PrevBlockHash: database.ZeroHash,
		Payload:       gen.Payload,
		TimeStamp:     gen.Date.Unix(),
	})
	ifErrFailNow(t, err)

	storage, err := memory.New()
	ifErrFailNow(t, err)
	ifErrFailNow(t, storage.Write(genBlock))

	key, err := crypto.HexToECDSA(minerKeyA)
	ifErrFailNow(t, err)

	st, err := state.New(state.Config{
		MinerKey:   key,
		Host:       "node-a",
		Genesis:    gen,
		Storage:    storage,
		KnownPeers: peer.NewPeerSet(),
		EvHandler:  func(v string, args ...any) { t.Logf(v, args...) },
	})
	ifErrFailNow(t, err)

	t.Cleanup(func() { st.Shutdown() })

	return st
}

// =============================================================================

func Test_MineNewBlock(t *testing.T) {
	t.Log("Given the need to mine payloads into the chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen starting a node with empty storage.", testID)
		{
			st := newState(t, minerKeyA, "node-a")

			latest := st.RetrieveLatestBlock()
			if latest.Number != 1 || latest.PrevBlockHash != database.ZeroHash || latest.Payload != genesis.DefaultPayload {
				t.Fatalf("\t%s\tTest %d:\tShould have mined the genesis block: %s", failed, testID, latest)
			}
			t.Logf("\t%s\tTest %d:\tShould have mined the genesis block.", success, testID)

			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoPayloads) {
				t.Fatalf("\t%s\tTest %d:\tShould not mine without payloads: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not mine without payloads.", success, testID)

			block := mine(t, st, "Shubhendu A. Dutta")
			if block.Number != 2 || block.PrevBlockHash != latest.Hash || block.Payload != "Shubhendu A. Dutta" {
				t.Fatalf("\t%s\tTest %d:\tShould mine the payload on the tail: %s", failed, testID, block)
			}
			t.Logf("\t%s\tTest %d:\tShould mine the payload on the tail.", success, testID)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould remove the mined payload from the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the mined payload from the mempool.", success, testID)

			if err := st.ValidateChain(st.RetrieveBlocks()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould have a valid chain: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould have a valid chain.", success, testID)
		}
	}
}

func Test_NewReleasesStorage(t *testing.T) {
	t.Log("Given the need to release storage when a node can't start.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the stored chain is invalid.", testID)
		{
			path := t.TempDir()

			strg, err := kv.New(path, nil)
			ifErrFailNow(t, err)

			bad := database.Block{Number: 1, PrevBlockHash: database.ZeroHash, Payload: "bad", Hash: "bad"}
			ifErrFailNow(t, strg.Write(bad))

			key, err := crypto.HexToECDSA(minerKeyA)
			ifErrFailNow(t, err)

			_, err = state.New(state.Config{
				MinerKey: key,
				Genesis:  genesis.Default(),
				Storage:  strg,
			})
			if !database.IsReject(err) {
				t.Fatalf("\t%s\tTest %d:\tShould refuse the stored chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse the stored chain.", success, testID)

			reopened, err := kv.New(path, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the storage again: %v", failed, testID, err)
			}
			reopened.Close()
			t.Logf("\t%s\tTest %d:\tShould be able to open the storage again.", success, testID)
		}
	}
}

func Test_MineNewBlockBudget(t *testing.T) {
	t.Log("Given the need to keep mining when a payload can't be solved within the budget.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the budget runs out for the oldest payload.", testID)
		{
			st := newBudgetState(t)
			st.SubmitNodePayload("stuck")
			st.SubmitNodePayload("behind")

			order := func() []string {
				var payloads []string
				for _, entry := range st.RetrieveMempool() {
					payloads = append(payloads, entry.Payload)
				}
				return payloads
			}

			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, database.ErrExhausted) {
				t.Fatalf("\t%s\tTest %d:\tShould run out of budget: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould run out of budget.", success, testID)

			if got := order(); len(got) != 2 || got[0] != "behind" || got[1] != "stuck" {
				t.Fatalf("\t%s\tTest %d:\tShould move the payload behind the others: %v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould move the payload behind the others.", success, testID)

			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, database.ErrExhausted) {
				t.Fatalf("\t%s\tTest %d:\tShould run out of budget again: %v", failed, testID, err)
			}

			if got := order(); len(got) != 2 || got[0] != "stuck" || got[1] != "behind" {
				t.Fatalf("\t%s\tTest %d:\tShould have tried the next payload: %v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould have tried the next payload.", success, testID)

			if st.RetrieveLatestBlock().Number != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould not change the chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the chain.", success, testID)
		}
	}
}

func Test_ProcessProposedBlock(t *testing.T) {
	t.Log("Given the need to accept blocks mined by peers.")
	{
		stA := newState(t, minerKeyA, "node-a")
		stB := newState(t, minerKeyB, "node-b")

		keyA, err := crypto.HexToECDSA(minerKeyA)
		ifErrFailNow(t, err)

		testID := 0
		t.Logf("\tTest %d:\tWhen two nodes start from the same genesis.", testID)
		{
			if stA.RetrieveLatestBlock().Hash != stB.RetrieveLatestBlock().Hash {
				t.Fatalf("\t%s\tTest %d:\tShould produce the same genesis block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce the same genesis block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a signed block is proposed.", testID)
		{
			block := mine(t, stA, "I currently work at Deloitte Digital")

			proposal, err := state.NewBlockProposal(block, keyA)
			ifErrFailNow(t, err)

			miner, err := proposal.MinerAccount()
			ifErrFailNow(t, err)
			if miner != stA.RetrieveMinerAccount() {
				t.Fatalf("\t%s\tTest %d:\tShould recover the miner account: %s", failed, testID, miner)
			}
			t.Logf("\t%s\tTest %d:\tShould recover the miner account.", success, testID)

			if err := stB.ProcessProposedBlock(proposal); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the block: %s", failed, testID, err)
			}
			if stB.RetrieveLatestBlock().Hash != block.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould have the block as the tail.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the block.", success, testID)

			if err := stB.ProcessProposedBlock(proposal); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould ignore a block it already has: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould ignore a block it already has.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a proposal was tampered with.", testID)
		{
			block := mine(t, stA, "I am a Blockchain Developer")

			proposal, err := state.NewBlockProposal(block, keyA)
			ifErrFailNow(t, err)
			proposal.Block.Payload = "tampered"

			err = stB.ProcessProposedBlock(proposal)
			if err == nil || stB.RetrieveLatestBlock().Number != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould reject the tampered block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the tampered block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the peer is ahead of the node.", testID)
		{
			block := mine(t, stA, "a block too far")

			proposal, err := state.NewBlockProposal(block, keyA)
			ifErrFailNow(t, err)

			err = stB.ProcessProposedBlock(proposal)
			if !errors.Is(err, database.ErrChainForked) {
				t.Fatalf("\t%s\tTest %d:\tShould report the chain is forked: %v", failed, testID, err)
			}
			if re := database.GetReject(err); re == nil || re.Reason != database.ReasonBadLink {
				t.Fatalf("\t%s\tTest %d:\tShould keep the BadLink rejection: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the chain is forked.", success, testID)
		}
	}
}

func Test_Reconcile(t *testing.T) {
	t.Log("Given the need to choose between competing chains.")
	{
		stA := newState(t, minerKeyA, "node-a")
		stB := newState(t, minerKeyB, "node-b")

		mine(t, stA, "a1")
		mine(t, stA, "a2")
		mine(t, stB, "b1")

		testID := 0
		t.Logf("\tTest %d:\tWhen the remote chain is shorter.", testID)
		{
			adopted, err := stA.Reconcile(stB.RetrieveBlocks())
			ifErrFailNow(t, err)

			if adopted || stA.RetrieveLatestBlock().Payload != "a2" {
				t.Fatalf("\t%s\tTest %d:\tShould keep the local chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the local chain.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the remote chain is longer.", testID)
		{
			adopted, err := stB.Reconcile(stA.RetrieveBlocks())
			ifErrFailNow(t, err)

			if !adopted || stB.RetrieveLatestBlock().Hash != stA.RetrieveLatestBlock().Hash {
				t.Fatalf("\t%s\tTest %d:\tShould adopt the remote chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the remote chain.", success, testID)

			pool := stB.RetrieveMempool()
			if len(pool) != 1 || pool[0].Payload != "b1" {
				t.Fatalf("\t%s\tTest %d:\tShould requeue the orphaned payload: %v", failed, testID, pool)
			}
			t.Logf("\t%s\tTest %d:\tShould requeue the orphaned payload.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the remote chain is invalid.", testID)
		{
			mine(t, stA, "a3")
			remote := stA.RetrieveBlocks()
			remote[2].Payload = "tampered"

			adopted, err := stB.Reconcile(remote)
			ifErrFailNow(t, err)

			if adopted {
				t.Fatalf("\t%s\tTest %d:\tShould not adopt an invalid chain.", failed, testID)
			}
			if stB.RetrieveLatestBlock().Payload != "a2" {
				t.Fatalf("\t%s\tTest %d:\tShould keep the local chain untouched.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not adopt an invalid chain.", success, testID)
		}
	}
}

func Test_NetSyncPeerBlocks(t *testing.T) {
	t.Log("Given the need to synchronize with a peer over the network.")
	{
		stA := newState(t, minerKeyA, "node-a")
		srv := httptest.NewServer(blockListHandler(stA))
		defer srv.Close()

		pr := peer.New(strings.TrimPrefix(srv.URL, "http://"))

		testID := 0
		t.Logf("\tTest %d:\tWhen the peer has more blocks on the same chain.", testID)
		{
			stB := newState(t, minerKeyB, "node-b")
			mine(t, stA, "a1")
			mine(t, stA, "a2")

			ifErrFailNow(t, stB.NetSyncPeerBlocks(pr))

			if stB.RetrieveLatestBlock().Hash != stA.RetrieveLatestBlock().Hash {
				t.Fatalf("\t%s\tTest %d:\tShould have the peer's blocks.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the peer's blocks.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the peer is on a longer competing chain.", testID)
		{
			stC := newState(t, minerKeyB, "node-c")
			mine(t, stC, "c1")

			ifErrFailNow(t, stC.NetSyncPeerBlocks(pr))

			if stC.RetrieveLatestBlock().Hash != stA.RetrieveLatestBlock().Hash {
				t.Fatalf("\t%s\tTest %d:\tShould adopt the peer's chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the peer's chain.", success, testID)
		}
	}
}

// blockListHandler serves the block list route of a node for the
// specified state.
func blockListHandler(st *state.State) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/node/block/list/"), "/")

		from, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		blocks := st.QueryBlocksByNumber(from, state.QueryLatest)
		if len(blocks) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(blocks)
	}

	return http.HandlerFunc(f)
}
