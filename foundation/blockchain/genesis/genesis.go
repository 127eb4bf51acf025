// Package genesis maintains access to the genesis file which holds the
// protocol parameters every node of a chain must agree on.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date             time.Time `json:"date"`               // Timestamp of the genesis block.
	ChainID          uint16    `json:"chain_id"`           // The chain id represents an unique id for this running instance.
	Owner            string    `json:"owner"`              // Address owning the genesis triangle.
	TransPerBlock    uint16    `json:"trans_per_block"`    // The maximum number of transactions that can be in a block.
	Difficulty       uint      `json:"difficulty"`         // Leading zero bits required at genesis.
	InitialReward    uint64    `json:"initial_reward"`     // Coinbase reward in era zero.
	HalvingInterval  uint64    `json:"halving_interval"`   // Number of blocks in a halving era.
	MaxHalvings      uint64    `json:"max_halvings"`       // Beyond this era the reward is zero.
	AdjustWindow     uint64    `json:"adjust_window"`      // Blocks between difficulty adjustments.
	TargetBlockTime  Duration  `json:"target_block_time"`  // Desired time between blocks.
	MaxMiningAttempt uint64    `json:"max_mining_attempt"` // Nonce attempts before mining gives up.
}

// Default returns the parameters used when no genesis file is provided.
func Default() Genesis {
	return Genesis{
		Date:             time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:          1,
		Owner:            "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4",
		TransPerBlock:    10,
		Difficulty:       8,
		InitialReward:    1000,
		HalvingInterval:  210_000,
		MaxHalvings:      64,
		AdjustWindow:     10,
		TargetBlockTime:  Duration(time.Minute),
		MaxMiningAttempt: 1 << 32,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields that are not provided
// in the file keep their default value.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the parameters can drive a chain.
func (g Genesis) Validate() error {
	switch {
	case g.Owner == "":
		return errors.New("genesis owner is required")
	case g.Difficulty == 0:
		return errors.New("genesis difficulty must be at least 1")
	case g.AdjustWindow == 0:
		return errors.New("adjust window must be at least 1")
	case g.TargetBlockTime <= 0:
		return errors.New("target block time must be positive")
	case g.TransPerBlock == 0:
		return errors.New("trans per block must be at least 1")
	case g.MaxMiningAttempt == 0:
		return errors.New("max mining attempt must be at least 1")
	}

	return nil
}

// =============================================================================

// Duration is a time.Duration that reads and writes as a string in JSON.
type Duration time.Duration

// MarshalJSON implements the json.Marshaler interface.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)

	return nil
}
