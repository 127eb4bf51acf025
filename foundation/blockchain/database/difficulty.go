package database

import (
	"math"
	"time"
)

// Bounds on the number of leading zero bits a block hash must carry.
const (
	MinDifficulty uint = 1
	MaxDifficulty uint = 255
)

// NextDifficulty computes the difficulty for the next window from the time
// the last window took against the time it should have taken. The change is
// limited to a factor of four in either direction.
func NextDifficulty(old uint, actual time.Duration, target time.Duration) uint {
	if actual <= 0 {
		actual = time.Second
	}

	next := math.Round(float64(old) * float64(target) / float64(actual))

	lower := float64(old / 4)
	upper := float64(old) * 4
	switch {
	case next < lower:
		next = lower
	case next > upper:
		next = upper
	}

	switch {
	case next < float64(MinDifficulty):
		return MinDifficulty
	case next > float64(MaxDifficulty):
		return MaxDifficulty
	}

	return uint(next)
}
