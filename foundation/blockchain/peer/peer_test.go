package peer_test

import (
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
		exp   []string
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host3"}, {Host: "host1"}, {Host: "host2"}},
			exp:   []string{"host1", "host3"},
		},
		{
			name:  "duplicates",
			peers: []peer.Peer{{Host: "host2"}, {Host: "host1"}, {Host: "host2"}},
			exp:   []string{"host1"},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			added := 0
			for _, peer := range tst.peers {
				if ps.Add(peer) {
					added++
				}
			}

			if ps.Count() != added {
				t.Logf("Test %s:\tgot: %d", tst.name, ps.Count())
				t.Logf("Test %s:\texp: %d", tst.name, added)
				t.Fatalf("Test %s:\tShould only add unique peers.", tst.name)
			}

			peers := ps.Copy("host2")
			if len(peers) != len(tst.exp) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.exp))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			for i, host := range tst.exp {
				if !peers[i].Match(host) {
					t.Logf("Test %s:\tgot: %s", tst.name, peers[i].Host)
					t.Logf("Test %s:\texp: %s", tst.name, host)
					t.Fatalf("Test %s:\tShould get back the peers sorted by host.", tst.name)
				}
			}

			ps.Remove(peer.New("host1"))
			if len(ps.Copy("")) != ps.Count() || ps.Count() != added-1 {
				t.Fatalf("Test %s:\tShould be able to remove a peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}
