package selector

import (
	"sort"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// advancedFeeSelect returns transactions with the best fee while respecting
// the nonce for each account/transaction. This strategy takes into account
// high-value transactions that happen to be stuck behind a low-nonce
// transaction with a low fee.
var advancedFeeSelect = func(m map[database.AccountID][]database.Tx, howMany int) []database.Tx {
	final := []database.Tx{}

	if howMany == -1 {
		howMany = 0
		for _, txs := range m {
			howMany += len(txs)
		}
	}

	// Sort the transactions per account by nonce.
	for key := range m {
		if len(m[key]) > 1 {
			sortByNonce(m[key])
		}
	}

	at := newAdvancedFees(m, howMany)
	best := at.findBest()

	for _, from := range at.groups {
		for i := 0; i < best[from]; i++ {
			final = append(final, m[from][i])
		}
	}

	return final
}

// =============================================================================

type advancedFees struct {
	howMany   int
	bestFee   uint64
	bestPos   map[database.AccountID]int
	groupFees map[database.AccountID][]uint64
	groups    []database.AccountID
}

func newAdvancedFees(m map[database.AccountID][]database.Tx, howMany int) *advancedFees {
	groupFees := map[database.AccountID][]uint64{}
	groups := []database.AccountID{}

	for from := range m {
		groupFees[from] = []uint64{0}
		groups = append(groups, from)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	for from, group := range m {
		for i, tx := range group {
			if i >= howMany {
				break
			}
			groupFees[from] = append(groupFees[from], database.TxFee(tx)+groupFees[from][i])
		}
	}

	return &advancedFees{
		howMany:   howMany,
		bestPos:   map[database.AccountID]int{},
		groupFees: groupFees,
		groups:    groups,
	}
}

func (af *advancedFees) findBest() map[database.AccountID]int {
	af.findBestTransactions(0, af.howMany, map[database.AccountID]int{}, 0)
	return af.bestPos
}

func (af *advancedFees) findBestTransactions(groupID int, left int, currPos map[database.AccountID]int, prevFee uint64) {
	if prevFee > af.bestFee {
		af.bestFee = prevFee
		af.bestPos = currPos
	}

	if groupID >= len(af.groups) {
		return
	}
	from := af.groups[groupID]

	for pos, fee := range af.groupFees[from] {
		if left-pos < 0 {
			break
		}

		newCurrPos := copyMap(currPos)
		newCurrPos[from] = pos
		af.findBestTransactions(groupID+1, left-pos, newCurrPos, prevFee+fee)
	}
}

// =============================================================================

func copyMap(m map[database.AccountID]int) map[database.AccountID]int {
	newCurrPos := map[database.AccountID]int{}
	for from, pos := range m {
		newCurrPos[from] = pos
	}

	return newCurrPos
}
