package worker

import (
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// maxTxShareRequests represents the max number of pending tx network share
// requests that can be outstanding before share requests are dropped.
const maxTxShareRequests = 100

// =============================================================================

// shareTxOperations handles sharing new transactions. Everything queued when
// the goroutine wakes up is shared in one pass.
func (w *Worker) shareTxOperations() {
	for {
		select {
		case tx := <-w.txSharing:
			if w.isShutdown() {
				continue
			}

			batch := []database.Tx{tx}
		drain:
			for len(batch) < maxTxShareRequests {
				select {
				case tx := <-w.txSharing:
					batch = append(batch, tx)
				default:
					break drain
				}
			}

			w.runShareTxOperation(batch)

		case <-w.shut:
			w.evHandler("worker: shareTxOperations: received shut signal")
			return
		}
	}
}

// runShareTxOperation shares the transactions with the known peers.
func (w *Worker) runShareTxOperation(batch []database.Tx) {
	w.evHandler("worker: runShareTxOperation: started: txs[%d]", len(batch))
	defer w.evHandler("worker: runShareTxOperation: completed")

	for _, tx := range batch {
		w.state.NetSendTxToPeers(tx)
	}
}
