package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siertrichain/siertrichain/foundation/blockchain/merkle"
)

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlock   Block
	Difficulty  uint
	Trans       []Tx
	MaxAttempts uint64
	EvHandler   func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The nonce starts at zero and is
// incremented until the hash carries the required leading zero bits, the
// context is cancelled, or the attempt budget is spent.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	// The timestamp can't go backwards from the parent block.
	timeStamp := uint64(time.Now().UTC().Unix())
	if timeStamp < args.PrevBlock.Header.TimeStamp {
		timeStamp = args.PrevBlock.Header.TimeStamp
	}

	nb := Block{
		Header: BlockHeader{
			Number:        args.PrevBlock.Header.Number + 1,
			PrevBlockHash: args.PrevBlock.Hash(),
			TimeStamp:     timeStamp,
			MerkleRoot:    merkle.Root(Block{Trans: args.Trans}.TxHashes()),
			Difficulty:    args.Difficulty,
			Nonce:         0,
		},
		Trans: args.Trans,
	}

	if err := nb.performPOW(ctx, args.MaxAttempts, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, maxAttempts uint64, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: difficulty[%d]", b.Header.Number, b.Header.Difficulty)
	defer ev("database: PerformPOW: MINING: completed")

	for _, tx := range b.Trans {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	var attempts uint64
	for {
		if maxAttempts > 0 && attempts >= maxAttempts {
			ev("database: PerformPOW: MINING: EXHAUSTED: attempts[%d]", attempts)
			return fmt.Errorf("%w: no solution in %d attempts", ErrMiningFailed, attempts)
		}

		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.Hash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}
