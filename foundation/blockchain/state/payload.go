package state

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
)

// SubmitPayload accepts a payload from a client for inclusion in a future
// block. New payloads are shared with the known peers and a mining
// operation is signaled.
func (s *State) SubmitPayload(payload string) mempool.Entry {
	entry, added := s.mempool.Upsert(payload)
	if !added {
		s.evHandler("state: SubmitPayload: payload already pending: payload[%s]", entry.ID)
		return entry
	}

	s.evHandler("state: SubmitPayload: payload added: payload[%s]", entry.ID)

	s.worker().SignalSharePayload(entry)
	s.worker().SignalStartMining()

	return entry
}

// SubmitNodePayload accepts a payload shared by a peer. The payload is not
// shared again since the peer already shared it with the network.
func (s *State) SubmitNodePayload(payload string) mempool.Entry {
	entry, added := s.mempool.Upsert(payload)
	if added {
		s.evHandler("state: SubmitNodePayload: payload added: payload[%s]", entry.ID)
		s.worker().SignalStartMining()
	}

	return entry
}

// SignalStartMining asks the worker to start a mining operation if there
// are payloads waiting.
func (s *State) SignalStartMining() {
	s.worker().SignalStartMining()
}
