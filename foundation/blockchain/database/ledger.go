package database

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
)

// Ledger is the set of unspent triangle assets keyed by identity hash, plus
// the reward balances credited by coinbase transactions. A transfer keeps the
// identity of its asset, so the sender nonces of applied transfers are
// recorded to stop a signed transfer from being applied twice. A Ledger is
// not safe for concurrent use; the consensus engine serializes access.
type Ledger struct {
	assets  map[string]geometry.Triangle
	rewards map[AccountID]uint64
	nonces  map[string]struct{}
}

// NewLedger constructs a ledger seeded with the genesis asset.
func NewLedger(genesis geometry.Triangle) *Ledger {
	l := Ledger{
		assets:  make(map[string]geometry.Triangle),
		rewards: make(map[AccountID]uint64),
		nonces:  make(map[string]struct{}),
	}
	l.assets[genesis.Hash()] = genesis

	return &l
}

// RestoreLedger constructs a ledger from previously captured state. Used
// transfer nonces are not part of that state; they are rebuilt by replaying
// the chain.
func RestoreLedger(assets []geometry.Triangle, rewards map[AccountID]uint64) *Ledger {
	l := Ledger{
		assets:  make(map[string]geometry.Triangle, len(assets)),
		rewards: make(map[AccountID]uint64, len(rewards)),
		nonces:  make(map[string]struct{}),
	}

	for _, asset := range assets {
		l.assets[asset.Hash()] = asset
	}
	for account, balance := range rewards {
		l.rewards[account.Checksum()] += balance
	}

	return &l
}

// Copy returns a deep copy of the ledger that can be mutated without
// affecting the original.
func (l *Ledger) Copy() *Ledger {
	cpy := Ledger{
		assets:  make(map[string]geometry.Triangle, len(l.assets)),
		rewards: make(map[AccountID]uint64, len(l.rewards)),
		nonces:  make(map[string]struct{}, len(l.nonces)),
	}

	for hash, asset := range l.assets {
		cpy.assets[hash] = asset
	}
	for account, balance := range l.rewards {
		cpy.rewards[account] = balance
	}
	for key := range l.nonces {
		cpy.nonces[key] = struct{}{}
	}

	return &cpy
}

// =============================================================================

// Lookup returns the unspent asset with the specified identity.
func (l *Ledger) Lookup(hash string) (geometry.Triangle, bool) {
	asset, exists := l.assets[hash]
	return asset, exists
}

// Count returns the number of unspent assets.
func (l *Ledger) Count() int {
	return len(l.assets)
}

// Holdings returns the assets owned by the account ordered by identity.
func (l *Ledger) Holdings(owner AccountID) []geometry.Triangle {
	var holdings []geometry.Triangle
	for _, asset := range l.assets {
		if AccountID(asset.Owner).Equals(owner) {
			holdings = append(holdings, asset)
		}
	}

	sortByHash(holdings)
	return holdings
}

// Assets returns every unspent asset ordered by identity.
func (l *Ledger) Assets() []geometry.Triangle {
	assets := make([]geometry.Triangle, 0, len(l.assets))
	for _, asset := range l.assets {
		assets = append(assets, asset)
	}

	sortByHash(assets)
	return assets
}

// RewardBalance returns the rewards credited to the account.
func (l *Ledger) RewardBalance(account AccountID) uint64 {
	return l.rewards[account.Checksum()]
}

// Rewards returns a copy of every reward balance.
func (l *Ledger) Rewards() map[AccountID]uint64 {
	rewards := make(map[AccountID]uint64, len(l.rewards))
	for account, balance := range l.rewards {
		rewards[account] = balance
	}

	return rewards
}

// NonceUsed reports whether a transfer from the sender with the nonce has
// already been applied.
func (l *Ledger) NonceUsed(sender AccountID, nonce uint64) bool {
	_, used := l.nonces[nonceKey(sender, nonce)]
	return used
}

// Equal reports whether both ledgers hold the same assets, owners and
// reward balances. Used nonces are not compared since a restored ledger
// does not carry them.
func (l *Ledger) Equal(other *Ledger) bool {
	if len(l.assets) != len(other.assets) || len(l.rewards) != len(other.rewards) {
		return false
	}

	for hash, asset := range l.assets {
		o, exists := other.assets[hash]
		if !exists || !asset.Equals(o) {
			return false
		}
	}

	for account, balance := range l.rewards {
		if other.rewards[account] != balance {
			return false
		}
	}

	return true
}

// =============================================================================

// Apply performs the ledger mutation for a transaction that has already been
// validated against this ledger.
func (l *Ledger) Apply(tx Tx) error {
	switch tx := tx.(type) {
	case SubdivisionTx:
		parent, exists := l.assets[tx.ParentHash]
		if !exists {
			return fmt.Errorf("%w: parent %s", ErrAssetNotFound, tx.ParentHash)
		}
		delete(l.assets, tx.ParentHash)
		for _, child := range geometry.Subdivide(parent) {
			l.assets[child.Hash()] = child
		}
		return nil

	case TransferTx:
		input, exists := l.assets[tx.InputHash]
		if !exists {
			return fmt.Errorf("%w: input %s", ErrAssetNotFound, tx.InputHash)
		}
		l.assets[tx.InputHash] = input.WithOwner(string(tx.NewOwner))
		l.nonces[nonceKey(tx.Sender, tx.Nonce)] = struct{}{}
		return nil

	case CoinbaseTx:
		account := tx.Beneficiary.Checksum()
		balance := l.rewards[account]
		if balance > math.MaxUint64-tx.Reward {
			return fmt.Errorf("%w: reward balance of %s would overflow", ErrInvalidTransaction, account)
		}
		l.rewards[account] = balance + tx.Reward
		return nil
	}

	return fmt.Errorf("%w: unknown transaction type %T", ErrInvalidTransaction, tx)
}

// nonceKey forms the key of a sender nonce.
func nonceKey(sender AccountID, nonce uint64) string {
	return string(sender.Checksum()) + ":" + strconv.FormatUint(nonce, 10)
}

// sortByHash orders the assets by identity hash.
func sortByHash(assets []geometry.Triangle) {
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Hash() < assets[j].Hash()
	})
}
