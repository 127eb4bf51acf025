package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines one block on top of the current tip. A block
// arriving from a peer, a reorganization or a shutdown cancels the search
// through the cancelMining channel. The caller that cancelled hands over a
// wait channel and this function does not return until it is closed, so the
// next search starts from the state the caller produced.
func (w *Worker) runMiningOperation() {
	if n := w.state.QueryMempoolLength(); n == 0 {
		w.evHandler("worker: runMiningOperation: MINING: nothing to mine")
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// Whatever is left in the mempool gets another round.
	defer func() {
		if n := w.state.QueryMempoolLength(); n > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: txs[%d]", n)
			w.SignalStartMining()
		}
	}()

	// A cancel that arrived while no search was running is stale.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained stale cancel")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelled := make(chan chan struct{}, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		select {
		case wait := <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
			cancel()
			cancelled <- wait
		case <-ctx.Done():
		}
	}()

	w.mine(ctx)

	cancel()
	wg.Wait()

	select {
	case wait := <-cancelled:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: waiting for the new tip")
		<-wait
	default:
	}
}

// mine runs the proof of work search and proposes a solved block to the
// known peers.
func (w *Worker) mine(ctx context.Context) {
	start := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	duration := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, state.ErrNoTransactions):
			w.evHandler("worker: mine: MINING: no valid transactions in mempool")
		case errors.Is(err, database.ErrInvalidBlockLinkage):
			w.evHandler("worker: mine: MINING: tip moved while mining: %s", err)
		case errors.Is(err, database.ErrMiningFailed):
			w.evHandler("worker: mine: MINING: attempt budget exhausted after %v", duration)
		case ctx.Err() != nil:
			w.evHandler("worker: mine: MINING: CANCEL: complete after %v", duration)
		default:
			w.evHandler("worker: mine: MINING: ERROR: %s", err)
		}
		return
	}

	w.evHandler("worker: mine: MINING: solved blk[%d]: difficulty[%d]: nonce[%d]: txs[%d]: duration[%v]",
		block.Header.Number, block.Header.Difficulty, block.Header.Nonce, len(block.Trans), duration)

	// A peer that misses the proposal picks the block up on its next sync.
	if err := w.state.NetSendBlockToPeers(block); err != nil {
		w.evHandler("worker: mine: MINING: proposeBlockToPeers: WARNING %s", err)
	}
}
