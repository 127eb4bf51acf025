package worker

import (
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
)

// Sync updates the peer list, mempool and blocks.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		// Retrieve the mempool from the peer.
		pool, err := w.state.NetRequestPeerMempool(pr)
		if err != nil {
			w.evHandler("worker: sync: retrievePeerMempool: %s: ERROR: %s", pr.Host, err)
		}
		for _, tx := range pool {
			if err := w.state.SubmitTransaction(tx); err != nil {
				w.evHandler("worker: sync: retrievePeerMempool: %s: skip tx[%s]: %s", pr.Host, tx, err)
			}
		}

		w.syncBlocks(pr, peerStatus)
	}
}

// syncBlocks pulls the missing blocks when the peer is ahead of this node.
func (w *Worker) syncBlocks(pr peer.Peer, peerStatus peer.PeerStatus) {
	if peerStatus.LatestBlockNumber <= w.state.QueryHeight() {
		return
	}

	w.evHandler("worker: sync: retrievePeerBlocks: %s: latestBlockNumber[%d]", pr.Host, peerStatus.LatestBlockNumber)

	if err := w.state.NetRequestPeerBlocks(pr); err != nil {
		w.evHandler("worker: sync: retrievePeerBlocks: %s: ERROR %s", pr.Host, err)
	}
}
