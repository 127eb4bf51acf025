package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
)

// peerClient is shared by every request made to a peer.
var peerClient = http.Client{Timeout: 10 * time.Second}

// nodeURL forms the private API url of the route on the peer's host.
func nodeURL(host string, route string, args ...any) string {
	return "http://" + host + "/v1/node" + fmt.Sprintf(route, args...)
}

// NetSendBlockToPeers takes the new mined block and sends it to all know
// peers. A peer failing does not stop the block going to the others.
func (s *State) NetSendBlockToPeers(block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	var errs []error
	for _, peer := range s.RetrieveKnownPeers() {
		url := nodeURL(peer.Host, "/block/propose")

		var status struct {
			Status string `json:"status"`
		}

		if err := send(http.MethodPost, url, database.NewBlockData(block), &status); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", peer.Host, err))
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", peer)
	}

	return errors.Join(errs...)
}

// NetSendTxToPeers shares a new block transaction with the known peers.
func (s *State) NetSendTxToPeers(tx database.Tx) {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	// The full transaction is sent. Peers that already hold it replace the
	// mempool entry with the same value.
	txData := database.NewTxData(tx)
	for _, peer := range s.RetrieveKnownPeers() {
		url := nodeURL(peer.Host, "/tx/submit")
		if err := send(http.MethodPost, url, txData, nil); err != nil {
			s.evHandler("state: NetSendTxToPeers: WARNING: %s", err)
		}
	}
}

// NetRequestPeerStatus looks for new nodes on the blockchain by asking
// known nodes for their peer list. New nodes are added to the list.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr)

	url := nodeURL(pr.Host, "/status")

	var ps peer.PeerStatus
	if err := send(http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: latest-blknum[%d]: peer-list[%s]", pr, ps.LatestBlockNumber, ps.KnownPeers)

	return ps, nil
}

// NetSendNodeAvailableToPeers shares this node with the known peers so
// they can add it to their peer list.
func (s *State) NetSendNodeAvailableToPeers() {
	s.evHandler("state: NetSendNodeAvailableToPeers: started")
	defer s.evHandler("state: NetSendNodeAvailableToPeers: completed")

	host := peer.New(s.RetrieveHost())

	for _, pr := range s.RetrieveKnownPeers() {
		url := nodeURL(pr.Host, "/peers")
		if err := send(http.MethodPost, url, host, nil); err != nil {
			s.evHandler("state: NetSendNodeAvailableToPeers: WARNING: %s", err)
		}
	}
}

// NetRequestPeerMempool asks the peer for the transactions in their mempool.
func (s *State) NetRequestPeerMempool(pr peer.Peer) ([]database.Tx, error) {
	s.evHandler("state: NetRequestPeerMempool: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerMempool: completed: %s", pr)

	url := nodeURL(pr.Host, "/tx/list")

	var txsData []database.TxData
	if err := send(http.MethodGet, url, nil, &txsData); err != nil {
		return nil, err
	}

	mempool := make([]database.Tx, 0, len(txsData))
	for _, txData := range txsData {
		tx, err := txData.ToTx()
		if err != nil {
			s.evHandler("state: NetRequestPeerMempool: WARNING: %s", err)
			continue
		}
		mempool = append(mempool, tx)
	}

	s.evHandler("state: sync: NetRequestPeerMempool: len[%d]", len(mempool))

	return mempool, nil
}

// NetRequestPeerBlocks queries the specified node asking for blocks this node
// does not have and applies them. When the peer's blocks do not link to our
// tip the peer is on a different branch, so its full chain is requested and
// offered for reorganization.
func (s *State) NetRequestPeerBlocks(pr peer.Peer) error {
	s.evHandler("state: NetRequestPeerBlocks: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerBlocks: completed: %s", pr)

	latest := s.RetrieveLatestBlock()

	blocks, err := s.netRequestBlocks(pr, latest.Header.Number+1)
	if err != nil {
		return err
	}

	s.evHandler("state: NetRequestPeerBlocks: found blocks[%d]", len(blocks))

	if len(blocks) == 0 {
		return nil
	}

	if blocks[0].Header.PrevBlockHash == latest.Hash() {
		for _, block := range blocks {
			err := s.ProcessProposedBlock(block)
			if err == nil {
				continue
			}

			// The tip moved underneath the sync.
			if !errors.Is(err, database.ErrInvalidBlockLinkage) {
				return err
			}
			break
		}

		return nil
	}

	s.evHandler("state: NetRequestPeerBlocks: fork detected at blk[%d]: requesting full chain", blocks[0].Header.Number)

	chain, err := s.netRequestBlocks(pr, 0)
	if err != nil {
		return err
	}

	return s.Reorganize(chain)
}

// netRequestBlocks requests the blocks from the specified number up to the
// peer's tip.
func (s *State) netRequestBlocks(pr peer.Peer, from uint64) ([]database.Block, error) {
	url := nodeURL(pr.Host, "/block/list/%d/latest", from)

	var blocksData []database.BlockData
	if err := send(http.MethodGet, url, nil, &blocksData); err != nil {
		return nil, err
	}

	blocks := make([]database.Block, len(blocksData))
	for i, blockData := range blocksData {
		block, err := database.ToBlock(blockData)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pr.Host, err)
		}
		blocks[i] = block
	}

	return blocks, nil
}

// =============================================================================

// send makes the request to a peer. The value to send is encoded as the JSON
// body and a 200 response is decoded into dataRecv. A 204 leaves dataRecv
// untouched.
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := peerClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil

	case resp.StatusCode != http.StatusOK:
		return peerError(resp)

	case dataRecv == nil:
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(dataRecv)
}

// peerError turns a failed response into an error carrying the message the
// peer responded with.
func peerError(resp *http.Response) error {
	msg, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}

	var er struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(msg, &er) == nil && er.Error != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, er.Error)
	}

	return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
}
