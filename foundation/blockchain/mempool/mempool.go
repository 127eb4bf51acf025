// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/mempool/selector"
)

// Mempool represents a cache of transactions organized by account:nonce.
type Mempool struct {
	pool     map[string]database.Tx
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyFee)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.Tx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction from the mempool. A transaction
// with the same sender and nonce replaces the existing one.
func (mp *Mempool) Upsert(tx database.Tx) (int, error) {
	key, err := mapKey(tx)
	if err != nil {
		return 0, err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[key] = tx

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) error {
	key, err := mapKey(tx)
	if err != nil {
		return err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, key)

	return nil
}

// DeleteSpent removes every transaction consuming one of the specified
// assets. Used once a block has consumed them.
func (mp *Mempool) DeleteSpent(inputs map[string]struct{}) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for key, tx := range mp.pool {
		if _, spent := inputs[database.TxInput(tx)]; spent {
			delete(mp.pool, key)
			removed++
		}
	}

	return removed
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.Tx {

	// Group the transactions by account.
	m := make(map[database.AccountID][]database.Tx)
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}

		for _, tx := range mp.pool {
			from := database.TxFrom(tx)
			m[from] = append(m[from], tx)
		}
	}
	mp.mu.RUnlock()

	return mp.selectFn(m, howMany)
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(tx database.Tx) (string, error) {
	if _, ok := tx.(database.CoinbaseTx); ok {
		return "", errors.New("coinbase transactions are not accepted into the mempool")
	}

	from := database.TxFrom(tx)
	if from == "" {
		return "", errors.New("transaction has no sender")
	}

	return fmt.Sprintf("%s:%d", from.Checksum(), database.TxNonce(tx)), nil
}
