package state

import (
	"errors"
	"fmt"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// ErrChainNotPreferred is returned when a competing chain does not share our
// genesis block or is not longer than the canonical chain.
var ErrChainNotPreferred = errors.New("chain is not preferred")

// =============================================================================

// Reorganize replaces the canonical chain with the specified chain, which
// must start with our genesis block and be longer than the current chain.
// Every block is replayed from genesis against a fresh ledger; the switch
// only happens if the full replay succeeds, otherwise the canonical chain
// is left untouched.
func (s *State) Reorganize(blocks []database.Block) error {
	s.evHandler("state: Reorganize: started: blocks[%d]", len(blocks))
	defer s.evHandler("state: Reorganize: completed")

	orphaned, err := s.reorganize(blocks)
	if err != nil {
		return err
	}

	// Transactions from the abandoned blocks go back to the mempool when
	// they still validate against the new ledger.
	for _, tx := range orphaned {
		if err := s.SubmitTransaction(tx); err != nil {
			s.evHandler("state: Reorganize: dropping orphaned tx[%s]: %s", tx, err)
		}
	}

	// Whatever is being mined is built on the abandoned tip.
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		done()
	}

	return nil
}

// reorganize performs the replay and the switch under the write lock and
// returns the transactions that were only in the abandoned blocks.
func (s *State) reorganize(blocks []database.Block) ([]database.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(blocks) == 0 || blocks[0].Hash() != s.chain.blocks[0].Hash() {
		return nil, fmt.Errorf("%w: chain does not start with our genesis block", ErrChainNotPreferred)
	}

	if len(blocks) <= len(s.chain.blocks) {
		return nil, fmt.Errorf("%w: length %d, canonical length %d", ErrChainNotPreferred, len(blocks), len(s.chain.blocks))
	}

	s.evHandler("state: reorganize: replaying blocks[%d] from genesis", len(blocks)-1)

	scratch := newChain(s.genesis)
	for _, block := range blocks[1:] {
		if err := scratch.apply(block, s.rules, s.evHandler); err != nil {
			s.rejected.Add(1)
			return nil, fmt.Errorf("replay block %d: %w", block.Header.Number, err)
		}
	}

	// Find the transactions of the abandoned chain that did not make it
	// into the new chain.
	adopted := make(map[string]struct{})
	for _, block := range scratch.blocks {
		for _, tx := range block.Trans {
			adopted[tx.Hash()] = struct{}{}
		}
	}

	var orphaned []database.Tx
	for _, block := range s.chain.blocks {
		for _, tx := range block.Trans {
			if _, ok := tx.(database.CoinbaseTx); ok {
				continue
			}
			if _, exists := adopted[tx.Hash()]; !exists {
				orphaned = append(orphaned, tx)
			}
		}
	}

	s.chain = scratch
	s.reorgs.Add(1)

	s.blockIndex.Clear()
	s.indexBlocks(s.chain.blocks)

	for _, block := range s.chain.blocks[1:] {
		s.removeMined(block)
	}

	s.evHandler("state: reorganize: write chain to storage")
	s.persist(s.chain.blocks[1:])

	s.blockEvent(s.chain.tip())

	return orphaned, nil
}
