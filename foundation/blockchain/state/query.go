package state

import (
	"fmt"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/genesis"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/merkle"
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// Stats represents the counters and sizes a node reports about itself.
type Stats struct {
	Height         uint64  `json:"height"`
	LatestHash     string  `json:"latest_hash"`
	Difficulty     uint    `json:"difficulty"`
	Assets         int     `json:"assets"`
	Mempool        int     `json:"mempool"`
	BlocksApplied  uint64  `json:"blocks_applied"`
	BlocksRejected uint64  `json:"blocks_rejected"`
	Reorgs         uint64  `json:"reorgs"`
	IndexHitRatio  float64 `json:"index_hit_ratio"`
	NextReward     uint64  `json:"next_reward"`
	NextHalving    uint64  `json:"next_halving"`
}

// =============================================================================

// RetrieveLatestBlock returns the tip of the canonical chain.
func (s *State) RetrieveLatestBlock() database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.tip()
}

// QueryHeight returns the number of the latest block.
func (s *State) QueryHeight() uint64 {
	return s.RetrieveLatestBlock().Header.Number
}

// QueryDifficulty returns the difficulty the next block must meet.
func (s *State) QueryDifficulty() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.difficulty
}

// QueryAsset returns the asset with the specified hash.
func (s *State) QueryAsset(hash string) (geometry.Triangle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, exists := s.chain.ledger.Lookup(hash)
	if !exists {
		return geometry.Triangle{}, fmt.Errorf("%w: %s", database.ErrAssetNotFound, hash)
	}

	return asset, nil
}

// QueryAssetCount returns the number of assets in the ledger.
func (s *State) QueryAssetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.ledger.Count()
}

// QueryAssets returns every asset in the ledger sorted by hash.
func (s *State) QueryAssets() []geometry.Triangle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.ledger.Assets()
}

// QueryHoldings returns the assets owned by the specified account.
func (s *State) QueryHoldings(owner database.AccountID) []geometry.Triangle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.ledger.Holdings(owner)
}

// QueryRewardBalance returns the mining rewards credited to the account.
func (s *State) QueryRewardBalance(account database.AccountID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.ledger.RewardBalance(account)
}

// QueryBlocksByNumber returns the set of blocks based on block numbers.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tip := s.chain.tip().Header.Number
	if from == QueryLatest {
		from = tip
		to = tip
	}
	if to == QueryLatest {
		to = tip
	}

	return s.chain.copyBlocks(from, to)
}

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if number, exists := s.blockIndex.Get(hash); exists && number < uint64(len(s.chain.blocks)) {
		if block := s.chain.blocks[number]; block.Hash() == hash {
			return block, nil
		}
	}

	for _, block := range s.chain.blocks {
		if block.Hash() == hash {
			s.blockIndex.Put(hash, block.Header.Number)
			return block, nil
		}
	}

	return database.Block{}, fmt.Errorf("block %s not found", hash)
}

// QueryChain returns a copy of the full canonical chain starting at genesis.
func (s *State) QueryChain() []database.Block {
	return s.QueryBlocksByNumber(0, QueryLatest)
}

// QueryMerkleProof returns the inclusion proof for the transaction in the
// specified block along with the block's merkle root.
func (s *State) QueryMerkleProof(number uint64, txHash string) ([]merkle.ProofStep, string, error) {
	blocks := s.QueryBlocksByNumber(number, number)
	if len(blocks) == 0 {
		return nil, "", fmt.Errorf("block %d not found", number)
	}
	block := blocks[0]

	for i, hash := range block.TxHashes() {
		if hash != txHash {
			continue
		}

		proof, err := block.MerkleTree().Proof(i)
		if err != nil {
			return nil, "", err
		}

		return proof, block.Header.MerkleRoot, nil
	}

	return nil, "", fmt.Errorf("transaction %s not found in block %d", txHash, number)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// RetrieveMempool returns a copy of the mempool.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.PickBest(-1)
}

// QueryStats returns the node's counters and sizes.
func (s *State) QueryStats() Stats {
	s.mu.RLock()
	tip := s.chain.tip()
	difficulty := s.chain.difficulty
	assets := s.chain.ledger.Count()
	s.mu.RUnlock()

	return Stats{
		Height:         tip.Header.Number,
		LatestHash:     tip.Hash(),
		Difficulty:     difficulty,
		Assets:         assets,
		Mempool:        s.mempool.Count(),
		BlocksApplied:  s.applied.Load(),
		BlocksRejected: s.rejected.Load(),
		Reorgs:         s.reorgs.Load(),
		IndexHitRatio:  s.blockIndex.HitRatio(),
		NextReward:     s.rules.rewards.Reward(tip.Header.Number + 1),
		NextHalving:    s.rules.rewards.NextHalving(tip.Header.Number),
	}
}

// RewardSchedule returns the coinbase reward rules of the chain.
func (s *State) RewardSchedule() database.RewardSchedule {
	return s.rules.rewards
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer provides the ability to add a new peer to
// the known peer list.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer provides the ability to remove a peer from
// the known peer list.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}
