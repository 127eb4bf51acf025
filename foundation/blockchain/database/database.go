// Package database handles the lower level support for the blockchain: the
// transaction model, the asset ledger, block validation and proof of work.
package database

import (
	"errors"

	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
)

// Set of error kinds produced while validating transactions and blocks.
// Reasons are wrapped around these so callers can use errors.Is.
var (
	ErrInvalidProofOfWork  = errors.New("invalid proof of work")
	ErrInvalidBlockLinkage = errors.New("invalid block linkage")
	ErrInvalidMerkleRoot   = errors.New("invalid merkle root")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrMiningFailed        = errors.New("mining failed")
)

// =============================================================================

// Snapshot is the unit handed to the persistence layer after a block is
// applied or a chain is adopted. Blocks holds the blocks that changed, which
// is the new tip for a normal block and the whole chain after a
// reorganization. Any stored block numbered above Height is stale.
type Snapshot struct {
	Blocks     []BlockData          `json:"blocks"`
	Height     uint64               `json:"height"`
	Assets     []geometry.Triangle  `json:"assets"`
	Rewards    map[AccountID]uint64 `json:"rewards"`
	Difficulty uint                 `json:"difficulty"`
}

// NewSnapshot captures the ledger state after the specified tip.
func NewSnapshot(blocks []Block, height uint64, ledger *Ledger, difficulty uint) Snapshot {
	data := make([]BlockData, len(blocks))
	for i, block := range blocks {
		data[i] = NewBlockData(block)
	}

	return Snapshot{
		Blocks:     data,
		Height:     height,
		Assets:     ledger.Assets(),
		Rewards:    ledger.Rewards(),
		Difficulty: difficulty,
	}
}
