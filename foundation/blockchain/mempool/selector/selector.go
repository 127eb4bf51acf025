// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee         = "fee"
	StrategyFeeAdvanced = "fee_advanced"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee:         feeSelect,
	StrategyFeeAdvanced: advancedFeeSelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// sender and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST respect nonce ordering. Receiving -1
// for howMany must return all the transactions in the strategies ordering.
type Func func(transactions map[database.AccountID][]database.Tx, howMany int) []database.Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// sortByNonce orders an account's transactions so they are processed in the
// order they were issued.
func sortByNonce(txs []database.Tx) {
	sort.SliceStable(txs, func(i, j int) bool {
		return database.TxNonce(txs[i]) < database.TxNonce(txs[j])
	})
}

// sortByFee puts the transactions paying the highest fee first. Equal fees
// keep their current order.
func sortByFee(txs []database.Tx) {
	sort.SliceStable(txs, func(i, j int) bool {
		return database.TxFee(txs[i]) > database.TxFee(txs[j])
	})
}
