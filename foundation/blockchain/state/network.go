package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1/node"

// client is used for all node to node requests.
var client = http.Client{
	Timeout: 15 * time.Second,
}

// NetSendBlockToPeers takes the new mined block, signs it and sends it to
// all known peers.
func (s *State) NetSendBlockToPeers(block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	proposal, err := NewBlockProposal(block, s.minerKey)
	if err != nil {
		return err
	}

	var errs []error
	for _, peer := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/block/propose", fmt.Sprintf(baseURL, peer.Host))

		var status struct {
			Status string `json:"status"`
		}

		if err := send(http.MethodPost, url, proposal, &status); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", peer.Host, err))
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]: status[%s]", peer.Host, status.Status)
	}

	return errors.Join(errs...)
}

// NetSendPayloadToPeers shares a new payload with the known peers.
func (s *State) NetSendPayloadToPeers(entry mempool.Entry) {
	s.evHandler("state: NetSendPayloadToPeers: started: payload[%s]", entry.ID)
	defer s.evHandler("state: NetSendPayloadToPeers: completed")

	submit := struct {
		Payload string `json:"payload"`
	}{
		Payload: entry.Payload,
	}

	for _, peer := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/payload/submit", fmt.Sprintf(baseURL, peer.Host))
		if err := send(http.MethodPost, url, submit, nil); err != nil {
			s.evHandler("state: NetSendPayloadToPeers: WARNING: %s: %s", peer.Host, err)
		}
	}
}

// NetRequestPeerStatus looks for new nodes on the blockchain by asking
// known nodes for their peer list. New nodes are added to the list.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := send(http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: latest-blknum[%d]: peer-list[%v]", pr.Host, ps.LatestBlockNumber, ps.KnownPeers)

	return ps, nil
}

// NetRequestPeerMempool asks the peer for the payloads in their mempool.
func (s *State) NetRequestPeerMempool(pr peer.Peer) ([]mempool.Entry, error) {
	s.evHandler("state: NetRequestPeerMempool: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerMempool: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/payload/list", fmt.Sprintf(baseURL, pr.Host))

	var entries []mempool.Entry
	if err := send(http.MethodGet, url, nil, &entries); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerMempool: len[%d]", len(entries))

	return entries, nil
}

// NetRequestPeerBlocks asks the peer for the blocks starting at the
// specified block number through its latest block.
func (s *State) NetRequestPeerBlocks(pr peer.Peer, from uint64) ([]database.Block, error) {
	s.evHandler("state: NetRequestPeerBlocks: started: %s: from[%d]", pr.Host, from)
	defer s.evHandler("state: NetRequestPeerBlocks: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/block/list/%d/latest", fmt.Sprintf(baseURL, pr.Host), from)

	var blocks []database.Block
	if err := send(http.MethodGet, url, nil, &blocks); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerBlocks: found blocks[%d]", len(blocks))

	return blocks, nil
}

// NetSyncPeerBlocks brings the local chain up to date with the peer. The
// blocks this node is missing are requested and appended. If they can't be
// linked to the local chain, the peer's full chain is requested and the
// chain selection rules decide which chain to keep.
func (s *State) NetSyncPeerBlocks(pr peer.Peer) error {
	s.evHandler("state: NetSyncPeerBlocks: started: %s", pr.Host)
	defer s.evHandler("state: NetSyncPeerBlocks: completed: %s", pr.Host)

	blocks, err := s.NetRequestPeerBlocks(pr, s.db.LatestBlock().Number+1)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		err := s.processBlock(block)
		if err == nil {
			continue
		}

		if !errors.Is(err, database.ErrChainForked) {
			return err
		}

		s.evHandler("state: NetSyncPeerBlocks: %s: chain forked: requesting full chain", pr.Host)

		remote, err := s.NetRequestPeerBlocks(pr, 1)
		if err != nil {
			return err
		}

		_, err = s.Reconcile(remote)
		return err
	}

	return nil
}

// =============================================================================

// send is a helper function to send an HTTP request to a node.
func send(method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader

	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}

	if dataSend != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return fmt.Errorf("status[%d]: %s", resp.StatusCode, string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
