package state

import (
	"encoding/json"
	"fmt"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// ApplyBlock validates the block against the current tip and ledger and, only
// if every check passes, commits the new ledger, appends the block, adjusts
// the difficulty and persists the result.
func (s *State) ApplyBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyBlock(block)
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.Header.PrevBlockHash, block.Hash(), len(block.Trans))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash())

	if err := s.ApplyBlock(block); err != nil {
		return err
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		defer func() {
			s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
			done()
		}()
	}

	return nil
}

// ValidateBlock checks the block against the current tip and ledger without
// changing any state.
func (s *State) ValidateBlock(block database.Block) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := block.ValidateBlock(database.ValidateArgs{
		Tip:        s.chain.tip(),
		Difficulty: s.chain.difficulty,
		Ledger:     s.chain.ledger,
		Rewards:    s.rules.rewards,
		Verifier:   s.rules.verifier,
		Now:        s.rules.now(),
		EvHandler:  s.evHandler,
	})

	return err
}

// =============================================================================

// applyBlock performs the block application. The caller must hold the
// write lock.
func (s *State) applyBlock(block database.Block) error {
	s.evHandler("state: applyBlock: validate block: blk[%d]", block.Header.Number)

	if err := s.chain.apply(block, s.rules, s.evHandler); err != nil {
		s.rejected.Add(1)
		s.evHandler("state: applyBlock: REJECTED: blk[%d]: %s", block.Header.Number, err)
		return err
	}
	s.applied.Add(1)
	s.blockIndex.Put(block.Hash(), block.Header.Number)

	s.evHandler("state: applyBlock: remove mined transactions from mempool")
	s.removeMined(block)

	s.evHandler("state: applyBlock: write to storage")
	s.persist([]database.Block{block})

	s.blockEvent(block)

	return nil
}

// removeMined drops the block's transactions, and any other transaction
// spending the same inputs, from the mempool.
func (s *State) removeMined(block database.Block) {
	spent := make(map[string]struct{})
	for _, tx := range block.Trans {
		if input := database.TxInput(tx); input != "" {
			spent[input] = struct{}{}
			s.mempool.Delete(tx)
		}
	}

	if n := s.mempool.DeleteSpent(spent); n > 0 {
		s.evHandler("state: removeMined: dropped conflicting transactions[%d]", n)
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockData := database.NewBlockData(block)

	blockJSON, err := json.Marshal(blockData)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}
