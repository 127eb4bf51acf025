package state

import (
	"errors"
	"fmt"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion.
// Once accepted it is shared with the known peers and mining is signaled.
func (s *State) UpsertWalletTransaction(tx database.Tx) error {
	if err := s.SubmitTransaction(tx); err != nil {
		return err
	}

	if s.Worker != nil {
		s.Worker.SignalShareTx(tx)
		s.Worker.SignalStartMining()
	}

	return nil
}

// UpsertNodeTransaction accepts a transaction from a peer node for inclusion.
// It is not shared again since the sending node already did that.
func (s *State) UpsertNodeTransaction(tx database.Tx) error {
	if err := s.SubmitTransaction(tx); err != nil {
		return err
	}

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}

// SubmitTransaction validates the transaction against the current ledger
// and adds it to the mempool. Coinbase transactions are only created by
// the miner and are rejected here.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if _, ok := tx.(database.CoinbaseTx); ok {
		return fmt.Errorf("%w: coinbase transactions can't be submitted", database.ErrInvalidTransaction)
	}

	s.mu.RLock()
	err := database.ValidateTx(tx, s.chain.ledger, s.rules.verifier)
	s.mu.RUnlock()

	if err != nil {
		s.evHandler("state: SubmitTransaction: REJECTED: tx[%s]: %s", tx, err)
		return err
	}

	if _, err := s.mempool.Upsert(tx); err != nil {
		return err
	}

	s.evHandler("state: SubmitTransaction: tx[%s]: mempool[%d]", tx, s.mempool.Count())

	return nil
}

// IsInvalidTransaction reports whether the error came from a transaction
// failing validation.
func IsInvalidTransaction(err error) bool {
	return errors.Is(err, database.ErrInvalidTransaction) || errors.Is(err, database.ErrAssetNotFound)
}
