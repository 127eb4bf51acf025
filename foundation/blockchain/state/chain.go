package state

import (
	"time"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/genesis"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// rules holds the consensus parameters every block is checked against.
type rules struct {
	rewards         database.RewardSchedule
	verifier        signature.Verifier
	adjustWindow    uint64
	targetBlockTime time.Duration
	now             func() time.Time
}

func newRules(g genesis.Genesis, verifier signature.Verifier) rules {
	return rules{
		rewards: database.RewardSchedule{
			InitialReward:   g.InitialReward,
			HalvingInterval: g.HalvingInterval,
			MaxHalvings:     g.MaxHalvings,
		},
		verifier:        verifier,
		adjustWindow:    g.AdjustWindow,
		targetBlockTime: time.Duration(g.TargetBlockTime),
		now:             time.Now,
	}
}

// =============================================================================

// chain is the canonical sequence of blocks with the ledger and difficulty
// after its tip. A chain is mutated only by apply, and only after the block
// fully validates.
type chain struct {
	blocks     []database.Block
	ledger     *database.Ledger
	difficulty uint
}

// newChain constructs a chain holding only the genesis block with the
// genesis asset seeded in the ledger.
func newChain(g genesis.Genesis) *chain {
	owner := database.AccountID(g.Owner).Checksum()

	return &chain{
		blocks:     []database.Block{database.GenesisBlock(g)},
		ledger:     database.NewLedger(geometry.Genesis(string(owner))),
		difficulty: g.Difficulty,
	}
}

// tip returns the last block in the chain.
func (c *chain) tip() database.Block {
	return c.blocks[len(c.blocks)-1]
}

// apply validates the block against the tip and the ledger. On success the
// validated ledger replaces the current one, the block is appended and the
// difficulty is adjusted at window boundaries.
func (c *chain) apply(block database.Block, r rules, ev EventHandler) error {
	ledger, err := block.ValidateBlock(database.ValidateArgs{
		Tip:        c.tip(),
		Difficulty: c.difficulty,
		Ledger:     c.ledger,
		Rewards:    r.rewards,
		Verifier:   r.verifier,
		Now:        r.now(),
		EvHandler:  ev,
	})
	if err != nil {
		return err
	}

	c.ledger = ledger
	c.blocks = append(c.blocks, block)

	if old, adjusted := c.adjustDifficulty(r); adjusted {
		ev("state: adjustDifficulty: blk[%d]: difficulty[%d] -> [%d]", block.Header.Number, old, c.difficulty)
	}

	return nil
}

// adjustDifficulty recomputes the difficulty when the tip closes a window.
// The elapsed time of the window is measured between the tip and the block
// one window earlier.
func (c *chain) adjustDifficulty(r rules) (uint, bool) {
	height := c.tip().Header.Number
	if r.adjustWindow == 0 || height == 0 || height%r.adjustWindow != 0 {
		return c.difficulty, false
	}

	start := c.blocks[height-r.adjustWindow].Header.TimeStamp
	end := c.tip().Header.TimeStamp

	var actual time.Duration
	if end > start {
		actual = time.Duration(end-start) * time.Second
	}
	target := time.Duration(r.adjustWindow) * r.targetBlockTime

	old := c.difficulty
	c.difficulty = database.NextDifficulty(old, actual, target)

	return old, true
}

// copyBlocks returns a copy of the blocks in the specified range.
func (c *chain) copyBlocks(from uint64, to uint64) []database.Block {
	tip := c.tip().Header.Number
	if to > tip {
		to = tip
	}
	if from > to {
		return nil
	}

	out := make([]database.Block, 0, to-from+1)
	out = append(out, c.blocks[from:to+1]...)

	return out
}
