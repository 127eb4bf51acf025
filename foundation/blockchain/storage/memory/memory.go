// Package memory implements the ability to read and write the chain to
// memory using a slice.
package memory

import (
	"errors"
	"sync"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
)

// Memory represents the serialization implementation for reading and storing
// the chain in memory using a slice. This implements the state.Storage
// interface.
type Memory struct {
	mu         sync.RWMutex
	blocks     []database.BlockData
	height     uint64
	assets     []geometry.Triangle
	rewards    map[database.AccountID]uint64
	difficulty uint
}

// New constructs an Memory value for use.
func New() (*Memory, error) {
	return &Memory{}, nil
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Save stores the blocks of the snapshot by number, drops any stored block
// above the snapshot height and replaces the ledger state.
func (m *Memory) Save(snapshot database.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	blocks := m.blocks
	for _, blockData := range snapshot.Blocks {
		num := blockData.Header.Number
		if num == 0 || num > uint64(len(blocks))+1 {
			return errors.New("block is out of order")
		}

		if num == uint64(len(blocks))+1 {
			blocks = append(blocks, blockData)
			continue
		}
		blocks[num-1] = blockData
	}

	if snapshot.Height < uint64(len(blocks)) {
		blocks = blocks[:snapshot.Height]
	}

	m.blocks = blocks
	m.height = snapshot.Height
	m.assets = append([]geometry.Triangle(nil), snapshot.Assets...)
	m.rewards = make(map[database.AccountID]uint64, len(snapshot.Rewards))
	for account, amount := range snapshot.Rewards {
		m.rewards[account] = amount
	}
	m.difficulty = snapshot.Difficulty

	return nil
}

// Load returns a copy of everything stored.
func (m *Memory) Load() (database.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rewards := make(map[database.AccountID]uint64, len(m.rewards))
	for account, amount := range m.rewards {
		rewards[account] = amount
	}

	return database.Snapshot{
		Blocks:     append([]database.BlockData(nil), m.blocks...),
		Height:     m.height,
		Assets:     append([]geometry.Triangle(nil), m.assets...),
		Rewards:    rewards,
		Difficulty: m.difficulty,
	}, nil
}

// GetBlock searches the stored chain to locate and return the contents of
// the specified block by number.
func (m *Memory) GetBlock(num uint64) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if num == 0 || num > uint64(len(m.blocks)) {
		return database.BlockData{}, errors.New("block does not exist")
	}

	return m.blocks[num-1], nil
}

// Reset will clear out the stored chain.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	m.height = 0
	m.assets = nil
	m.rewards = nil
	m.difficulty = 0

	return nil
}
