package selector

import (
	"sort"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
)

// feeSelect returns transactions with the best fee while respecting the nonce
// for each account/transaction.
var feeSelect = func(m map[database.AccountID][]database.Tx, howMany int) []database.Tx {
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

	// Pick the first transaction in the slice for each account. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// transactions have been selected. Accounts are visited in order so the
	// rows are deterministic.
	accounts := make([]database.AccountID, 0, len(m))
	for key := range m {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	var rows [][]database.Tx
	for {
		var row []database.Tx
		for _, key := range accounts {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	// Sort each row by fee unless we will take all transactions from that row
	// anyway. Then try to select the number of requested transactions. Keep
	// pulling transactions from each row until the amount is fulfilled or
	// there are no more transactions.
	final := []database.Tx{}
done:
	for _, row := range rows {
		need := howMany - len(final)
		if len(row) > need {
			sortByFee(row)
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	return final
}
