// Package disk implements the ability to read and write the chain to disk
// with every block in its own file.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"sync"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
)

// Files kept next to the block files. The journal holds a snapshot whose
// save has not finished yet.
const (
	stateFile   = "state.json"
	journalFile = "journal.json"
)

// ledgerState is the part of the snapshot written to the state file.
type ledgerState struct {
	Height     uint64                        `json:"height"`
	Assets     []geometry.Triangle           `json:"assets"`
	Rewards    map[database.AccountID]uint64 `json:"rewards"`
	Difficulty uint                          `json:"difficulty"`
}

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// state.Storage interface.
type Disk struct {
	mu     sync.Mutex
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Save stores the snapshot as one unit. The whole snapshot is first written
// to the journal file and renamed into place, which is the commit point.
// The block files and the state file are then rewritten from it and the
// journal is removed. A crash after the commit point is finished by the
// next Load.
func (d *Disk) Save(snapshot database.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.write(d.journalPath(), snapshot); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	return d.replay(snapshot)
}

// Load reads the state file and the blocks up to the stored height. An
// empty snapshot is returned when nothing has been saved. A journal left by
// an interrupted save is replayed first.
func (d *Disk) Load() (database.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var pending database.Snapshot
	switch err := d.read(d.journalPath(), &pending); {
	case err == nil:
		if err := d.replay(pending); err != nil {
			return database.Snapshot{}, fmt.Errorf("replay journal: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return database.Snapshot{}, fmt.Errorf("journal: %w", err)
	}

	var state ledgerState
	if err := d.read(path.Join(d.dbPath, stateFile), &state); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return database.Snapshot{}, nil
		}
		return database.Snapshot{}, err
	}

	blocks := make([]database.BlockData, 0, state.Height)
	for num := uint64(1); num <= state.Height; num++ {
		var blockData database.BlockData
		if err := d.read(d.getPath(num), &blockData); err != nil {
			return database.Snapshot{}, fmt.Errorf("block %d: %w", num, err)
		}
		blocks = append(blocks, blockData)
	}

	return database.Snapshot{
		Blocks:     blocks,
		Height:     state.Height,
		Assets:     state.Assets,
		Rewards:    state.Rewards,
		Difficulty: state.Difficulty,
	}, nil
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by number.
func (d *Disk) GetBlock(num uint64) (database.BlockData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var blockData database.BlockData
	if err := d.read(d.getPath(num), &blockData); err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(d.dbPath, 0755)
}

// =============================================================================

// replay writes the blocks of a committed snapshot to their own files,
// removes the files of blocks above its height, replaces the state file
// and finally drops the journal. Running it twice has the same result.
func (d *Disk) replay(snapshot database.Snapshot) error {
	if err := d.writeBlocks(snapshot); err != nil {
		return err
	}

	state := ledgerState{
		Height:     snapshot.Height,
		Assets:     snapshot.Assets,
		Rewards:    snapshot.Rewards,
		Difficulty: snapshot.Difficulty,
	}

	if err := d.write(path.Join(d.dbPath, stateFile), state); err != nil {
		return err
	}

	if err := os.Remove(d.journalPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// writeBlocks writes the block files of the snapshot and removes any block
// file numbered above its height.
func (d *Disk) writeBlocks(snapshot database.Snapshot) error {
	for _, blockData := range snapshot.Blocks {
		if err := d.write(d.getPath(blockData.Header.Number), blockData); err != nil {
			return fmt.Errorf("block %d: %w", blockData.Header.Number, err)
		}
	}

	for num := snapshot.Height + 1; ; num++ {
		err := os.Remove(d.getPath(num))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("remove stale block %d: %w", num, err)
		}
	}
}

// write marshals the value in a human readable format to a temporary file
// and renames it over the destination.
func (d *Disk) write(dest string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := dest + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, dest)
}

// read decodes the contents of the file into the value.
func (d *Disk) read(src string, v any) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(v)
}

// journalPath forms the path to the journal file.
func (d *Disk) journalPath() string {
	return path.Join(d.dbPath, journalFile)
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(blockNum uint64) string {
	name := strconv.FormatUint(blockNum, 10)
	return path.Join(d.dbPath, fmt.Sprintf("%s.json", name))
}
