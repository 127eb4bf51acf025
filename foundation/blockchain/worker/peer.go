package worker

import (
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
)

// peerOperations handles finding new peers and catching up with them.
func (w *Worker) peerOperations() {
	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation updates the peer list and pulls any blocks a peer has
// that this node does not.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: runPeersOperation: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			w.state.RemoveKnownPeer(pr)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		w.syncBlocks(pr, peerStatus)
	}

	// Let the known peers know this node is available.
	w.state.NetSendNodeAvailableToPeers()
}

// addNewPeers takes the list of known peers and makes sure they are included
// in the nodes list of know peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	host := w.state.RetrieveHost()

	for _, pr := range knownPeers {
		if pr.Match(host) {
			continue
		}

		if w.state.AddKnownPeer(peer.New(pr.Host)) {
			w.evHandler("worker: addNewPeers: adding peer-node %s", pr)
		}
	}
}
