// Package state is the core API for the blockchain and implements all the
// business rules and processing. The State value exclusively owns the chain
// and the asset ledger; every mutation goes through its methods.
package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/decred/dcrd/container/lru"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/genesis"
	"github.com/siertrichain/siertrichain/foundation/blockchain/mempool"
	"github.com/siertrichain/siertrichain/foundation/blockchain/mempool/selector"
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// blockIndexSize is the number of block hashes kept in the lookup cache.
const blockIndexSize = 4096

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.Tx)
}

// Storage interface represents the behavior required to be implemented by any
// package providing support for persisting the chain. Save must store the
// snapshot as one atomic unit. Load returns an empty snapshot when nothing
// has been stored yet.
type Storage interface {
	Save(snapshot database.Snapshot) error
	Load() (database.Snapshot, error)
	Close() error
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	BeneficiaryID  database.AccountID
	Host           string
	Storage        Storage
	Genesis        genesis.Genesis
	SelectStrategy string
	KnownPeers     *peer.PeerSet
	Verifier       signature.Verifier
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.RWMutex

	beneficiaryID database.AccountID
	host          string
	evHandler     EventHandler

	genesis    genesis.Genesis
	rules      rules
	chain      *chain
	blockIndex *lru.Map[string, uint64]
	knownPeers *peer.PeerSet
	mempool    *mempool.Mempool
	storage    Storage

	applied  atomic.Uint64
	rejected atomic.Uint64
	reorgs   atomic.Uint64

	Worker Worker
}

// New constructs a new blockchain for data management. The chain starts
// with the genesis block and any blocks found in storage are replayed.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	beneficiaryID, err := database.ToAccountID(string(cfg.BeneficiaryID))
	if err != nil {
		return nil, fmt.Errorf("beneficiary: %w", err)
	}

	verifier := cfg.Verifier
	if verifier == nil {
		verifier = signature.Secp256k1{}
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = selector.StrategyFee
	}

	// Construct a mempool with the specified sort strategy.
	mempool, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	rules := newRules(cfg.Genesis, verifier)

	state := State{
		beneficiaryID: beneficiaryID,
		host:          cfg.Host,
		evHandler:     ev,

		genesis:    cfg.Genesis,
		rules:      rules,
		chain:      newChain(cfg.Genesis),
		blockIndex: lru.NewMap[string, uint64](blockIndexSize),
		knownPeers: knownPeers,
		mempool:    mempool,
		storage:    cfg.Storage,
	}

	state.indexBlocks(state.chain.blocks)

	if err := state.restore(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the storage is properly closed.
	defer func() {
		s.storage.Close()
	}()

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// =============================================================================

// restore replays the blocks found in storage and checks the stored ledger
// against the result.
func (s *State) restore() error {
	snapshot, err := s.storage.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if len(snapshot.Blocks) == 0 && snapshot.Height == 0 {
		s.evHandler("state: restore: empty storage, starting from genesis")
		return nil
	}

	s.evHandler("state: restore: replaying blocks[%d]", len(snapshot.Blocks))

	for _, blockData := range snapshot.Blocks {
		block, err := database.ToBlock(blockData)
		if err != nil {
			return fmt.Errorf("restore block %d: %w", blockData.Header.Number, err)
		}

		if err := s.chain.apply(block, s.rules, s.evHandler); err != nil {
			return fmt.Errorf("restore block %d: %w", block.Header.Number, err)
		}
	}

	tip := s.chain.tip()
	stored := database.RestoreLedger(snapshot.Assets, snapshot.Rewards)

	switch {
	case tip.Header.Number != snapshot.Height:
		return fmt.Errorf("restore: replayed height %d, stored height %d", tip.Header.Number, snapshot.Height)
	case s.chain.difficulty != snapshot.Difficulty:
		return fmt.Errorf("restore: replayed difficulty %d, stored difficulty %d", s.chain.difficulty, snapshot.Difficulty)
	case !s.chain.ledger.Equal(stored):
		return errors.New("restore: stored ledger does not match the replayed chain")
	}

	s.indexBlocks(s.chain.blocks)

	s.evHandler("state: restore: height[%d]: difficulty[%d]: assets[%d]", tip.Header.Number, s.chain.difficulty, s.chain.ledger.Count())

	return nil
}

// persist hands the snapshot to storage. A failure is reported through the
// event handler since the chain has already moved forward in memory.
func (s *State) persist(blocks []database.Block) {
	snapshot := database.NewSnapshot(blocks, s.chain.tip().Header.Number, s.chain.ledger, s.chain.difficulty)

	if err := s.storage.Save(snapshot); err != nil {
		s.evHandler("state: persist: ERROR: %s", err)
	}
}

// indexBlocks adds the block hashes to the lookup cache.
func (s *State) indexBlocks(blocks []database.Block) {
	for _, block := range blocks {
		s.blockIndex.Put(block.Hash(), block.Header.Number)
	}
}
