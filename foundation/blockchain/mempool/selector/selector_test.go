package selector_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/mempool/selector"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	signPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	signBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	signEd    = "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb"
)

type test struct {
	name    string
	txs     []database.Tx
	howMany int
	best    []database.Tx
}

func tran(t *testing.T, nonce uint64, hexKey string, fee uint64) database.Tx {
	t.Helper()

	const toID = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
	}
	signer := signature.NewPrivateKey(pk)

	tx, err := database.NewTransferTx(signature.ZeroHash, toID, database.AccountID(signer.Address()), fee, nonce, "")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct transaction: %s", failed, err)
	}

	signed, err := tx.Sign(signer)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign transaction: %s", failed, err)
	}

	return signed
}

func runSelect(t *testing.T, strategy string, tt []test) {
	for testID, tst := range tt {
		t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
		{
			f := func(t *testing.T) {
				m := make(map[database.AccountID][]database.Tx)
				for _, tx := range tst.txs {
					from := database.TxFrom(tx)
					m[from] = append(m[from], tx)
				}

				sort, err := selector.Retrieve(strategy)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to get sort strategy function: %s", failed, testID, err)
				}

				txs := sort(m, tst.howMany)
				if len(txs) != len(tst.best) {
					t.Fatalf("\t%s\tTest %d:\tShould get %d transactions, got %d.", failed, testID, len(tst.best), len(txs))
				}

				for _, exp := range tst.best {
					found := false
					for _, tx := range txs {
						if database.TxNonce(exp) == database.TxNonce(tx) && database.TxFrom(exp) == database.TxFrom(tx) {
							found = true
							break
						}
					}

					if !found {
						t.Fatalf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", failed, testID, database.TxFrom(exp), database.TxNonce(exp))
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", success, testID, database.TxFrom(exp), database.TxNonce(exp))
				}

				seen := make(map[database.AccountID]uint64)
				for _, tx := range txs {
					from := database.TxFrom(tx)
					if last, exists := seen[from]; exists && database.TxNonce(tx) < last {
						t.Fatalf("\t%s\tTest %d:\tShould keep nonce order for %s.", failed, testID, from)
					}
					seen[from] = database.TxNonce(tx)
				}
				t.Logf("\t%s\tTest %d:\tShould keep nonce order per account.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

// =============================================================================

func TestFeeSelect(t *testing.T) {
	all := func() []database.Tx {
		return []database.Tx{
			tran(t, 0, signPavel, 25),
			tran(t, 1, signPavel, 75),
			tran(t, 2, signPavel, 50),

			tran(t, 0, signBill, 10),
			tran(t, 1, signBill, 5),
			tran(t, 2, signBill, 75),

			tran(t, 0, signEd, 5),
			tran(t, 1, signEd, 50),
			tran(t, 2, signEd, 25),
		}
	}

	tt := []test{
		{
			name:    "one from second cycle",
			txs:     all(),
			howMany: 4,
			best: []database.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 0, signBill, 10),
				tran(t, 0, signEd, 5),
			},
		},
		{
			name:    "whole two cycles",
			txs:     all(),
			howMany: 6,
			best: []database.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 0, signBill, 10),
				tran(t, 1, signBill, 5),
				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 50),
			},
		},
		{
			name:    "take all",
			txs:     all(),
			howMany: -1,
			best:    all(),
		},
		{
			name:    "first two",
			txs:     all(),
			howMany: 2,
			best: []database.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 0, signBill, 10),
			},
		},
	}

	t.Log("Given the need to pick best transactions from mempool.")
	{
		runSelect(t, selector.StrategyFee, tt)
	}
}

func TestAdvancedFeeSelect(t *testing.T) {
	tt := []test{
		{
			name: "all from first account",
			txs: []database.Tx{
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 2),
				tran(t, 3, signPavel, 3),
				tran(t, 4, signPavel, 3),

				tran(t, 1, signBill, 1),
				tran(t, 2, signBill, 4),
				tran(t, 3, signBill, 1),
			},
			howMany: 4,
			best: []database.Tx{
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 2),
				tran(t, 3, signPavel, 3),
				tran(t, 4, signPavel, 3),
			},
		},
		{
			name: "one from another account",
			txs: []database.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signBill, 1),
				tran(t, 1, signBill, 5),
				tran(t, 2, signBill, 6),

				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 6),
				tran(t, 2, signEd, 7),
			},
			howMany: 4,
			best: []database.Tx{
				tran(t, 0, signPavel, 25),
				tran(t, 1, signPavel, 75),
				tran(t, 2, signPavel, 50),
				tran(t, 0, signEd, 5),
			},
		},
		{
			name: "unblock big fee",
			txs: []database.Tx{
				tran(t, 0, signPavel, 1),
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 50),

				tran(t, 0, signBill, 1),
				tran(t, 1, signBill, 15),
				tran(t, 2, signBill, 16),

				tran(t, 0, signEd, 5),
				tran(t, 1, signEd, 6),
				tran(t, 2, signEd, 7),
			},
			howMany: 4,
			best: []database.Tx{
				tran(t, 0, signPavel, 1),
				tran(t, 1, signPavel, 1),
				tran(t, 2, signPavel, 50),
				tran(t, 0, signEd, 5),
			},
		},
	}

	t.Log("Given the need to pick best transactions from mempool.")
	{
		runSelect(t, selector.StrategyFeeAdvanced, tt)
	}
}
