package database

// RewardSchedule defines the coinbase reward for every block height.
type RewardSchedule struct {
	InitialReward   uint64
	HalvingInterval uint64
	MaxHalvings     uint64
}

// Era returns the number of complete halving intervals elapsed at the
// specified height.
func (rs RewardSchedule) Era(height uint64) uint64 {
	if rs.HalvingInterval == 0 {
		return 0
	}

	return height / rs.HalvingInterval
}

// Reward returns the coinbase reward for a block at the specified height.
// Once the maximum number of halvings is exceeded the reward is zero.
func (rs RewardSchedule) Reward(height uint64) uint64 {
	era := rs.Era(height)
	if era > rs.MaxHalvings || era >= 64 {
		return 0
	}

	return rs.InitialReward >> era
}

// NextHalving returns the height at which the next halving takes effect.
// Zero means the reward never halves.
func (rs RewardSchedule) NextHalving(height uint64) uint64 {
	if rs.HalvingInterval == 0 {
		return 0
	}

	return (rs.Era(height) + 1) * rs.HalvingInterval
}
