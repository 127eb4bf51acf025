// Package badgerdb implements the ability to read and write the chain to a
// badger key value store. Every save is committed in a single transaction.
package badgerdb

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
)

// Set of keys used in the store. Blocks are keyed by their number in big
// endian form under the block prefix.
var (
	keyState    = []byte("state")
	prefixBlock = []byte("block/")
)

// ledgerState is the part of the snapshot stored under the state key.
type ledgerState struct {
	Height     uint64                        `json:"height"`
	Assets     []geometry.Triangle           `json:"assets"`
	Rewards    map[database.AccountID]uint64 `json:"rewards"`
	Difficulty uint                          `json:"difficulty"`
}

// Badger represents the serialization implementation for reading and storing
// the chain in badger. This implements the state.Storage interface.
type Badger struct {
	db *badger.DB
}

// New opens the store at the specified path.
func New(dbPath string) (*Badger, error) {
	return open(badger.DefaultOptions(dbPath).WithLogger(nil))
}

// NewInMemory opens a store that is never written to disk.
func NewInMemory() (*Badger, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Badger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

// Close releases the store.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Save writes the blocks, deletes any block above the snapshot height and
// replaces the ledger state as one transaction.
func (b *Badger) Save(snapshot database.Snapshot) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, blockData := range snapshot.Blocks {
			data, err := json.Marshal(blockData)
			if err != nil {
				return err
			}

			if err := txn.Set(blockKey(blockData.Header.Number), data); err != nil {
				return fmt.Errorf("block %d: %w", blockData.Header.Number, err)
			}
		}

		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixBlock

		it := txn.NewIterator(opts)
		for it.Seek(blockKey(snapshot.Height + 1)); it.ValidForPrefix(prefixBlock); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		state := ledgerState{
			Height:     snapshot.Height,
			Assets:     snapshot.Assets,
			Rewards:    snapshot.Rewards,
			Difficulty: snapshot.Difficulty,
		}

		data, err := json.Marshal(state)
		if err != nil {
			return err
		}

		return txn.Set(keyState, data)
	})
}

// Load reads the ledger state and the blocks up to the stored height. An
// empty snapshot is returned when nothing has been saved.
func (b *Badger) Load() (database.Snapshot, error) {
	var snapshot database.Snapshot

	err := b.db.View(func(txn *badger.Txn) error {
		var state ledgerState
		switch err := get(txn, keyState, &state); {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}

		blocks := make([]database.BlockData, 0, state.Height)
		for num := uint64(1); num <= state.Height; num++ {
			var blockData database.BlockData
			if err := get(txn, blockKey(num), &blockData); err != nil {
				return fmt.Errorf("block %d: %w", num, err)
			}
			blocks = append(blocks, blockData)
		}

		snapshot = database.Snapshot{
			Blocks:     blocks,
			Height:     state.Height,
			Assets:     state.Assets,
			Rewards:    state.Rewards,
			Difficulty: state.Difficulty,
		}

		return nil
	})

	return snapshot, err
}

// GetBlock returns the stored block with the specified number.
func (b *Badger) GetBlock(num uint64) (database.BlockData, error) {
	var blockData database.BlockData

	err := b.db.View(func(txn *badger.Txn) error {
		return get(txn, blockKey(num), &blockData)
	})

	return blockData, err
}

// Reset will clear out everything stored.
func (b *Badger) Reset() error {
	return b.db.DropAll()
}

// =============================================================================

// get decodes the value stored under the key.
func get(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// blockKey forms the key of the specified block. Big endian keeps the keys
// sorted by number.
func blockKey(num uint64) []byte {
	key := make([]byte, len(prefixBlock)+8)
	copy(key, prefixBlock)
	for i := 0; i < 8; i++ {
		key[len(prefixBlock)+i] = byte(num >> (56 - 8*i))
	}

	return key
}
