package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain. If the tip moves while mining, the block fails
// the linkage check and the caller is expected to start again.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if s.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: select transactions")

	tip, difficulty, trans, err := s.selectTransactions()
	if err != nil {
		return database.Block{}, err
	}
	if len(trans) == 1 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		PrevBlock:   tip,
		Difficulty:  difficulty,
		Trans:       trans,
		MaxAttempts: s.genesis.MaxMiningAttempt,
		EvHandler:   s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	// Validate the block and then update the blockchain database.
	if err := s.ApplyBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// selectTransactions builds the transaction list for the next block: the
// coinbase followed by the best mempool candidates that still validate in
// order against a working copy of the ledger. Candidates that no longer
// validate are dropped from the mempool.
func (s *State) selectTransactions() (database.Block, uint, []database.Tx, error) {
	s.mu.RLock()
	tip := s.chain.tip()
	difficulty := s.chain.difficulty
	working := s.chain.ledger.Copy()
	s.mu.RUnlock()

	coinbase := database.NewCoinbaseTx(s.rules.rewards.Reward(tip.Header.Number+1), s.beneficiaryID)
	if err := working.Apply(coinbase); err != nil {
		return database.Block{}, 0, nil, fmt.Errorf("coinbase: %w", err)
	}

	trans := []database.Tx{coinbase}
	for _, tx := range s.mempool.PickBest(int(s.genesis.TransPerBlock)) {
		if err := database.ValidateTx(tx, working, s.rules.verifier); err != nil {
			s.evHandler("state: selectTransactions: dropping tx[%s]: %s", tx, err)
			s.mempool.Delete(tx)
			continue
		}

		if err := working.Apply(tx); err != nil {
			s.evHandler("state: selectTransactions: dropping tx[%s]: %s", tx, err)
			s.mempool.Delete(tx)
			continue
		}

		trans = append(trans, tx)
	}

	return tip, difficulty, trans, nil
}
