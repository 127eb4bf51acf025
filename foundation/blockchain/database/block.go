package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/siertrichain/siertrichain/foundation/blockchain/genesis"
	"github.com/siertrichain/siertrichain/foundation/blockchain/merkle"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64 `json:"number"`          // Block number in the chain.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64 `json:"timestamp"`       // Time the block was mined, unix seconds.
	MerkleRoot    string `json:"merkle_root"`     // Merkle root of the transaction hashes.
	Difficulty    uint   `json:"difficulty"`      // Leading zero bits needed to solve the hash.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.
}

// Canonical returns the serialization the block hash is computed over.
func (h BlockHeader) Canonical() string {
	return strings.Join([]string{
		strconv.FormatUint(h.Number, 10),
		h.PrevBlockHash,
		strconv.FormatUint(h.TimeStamp, 10),
		h.MerkleRoot,
		strconv.FormatUint(uint64(h.Difficulty), 10),
		strconv.FormatUint(h.Nonce, 10),
	}, "|")
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  []Tx
}

// GenesisBlock returns the deterministic first block of the chain. It holds
// no transactions and is not subject to proof of work.
func GenesisBlock(g genesis.Genesis) Block {
	return Block{
		Header: BlockHeader{
			Number:        0,
			PrevBlockHash: signature.ZeroHash,
			TimeStamp:     uint64(g.Date.UTC().Unix()),
			MerkleRoot:    merkle.EmptyRoot,
			Difficulty:    g.Difficulty,
			Nonce:         0,
		},
	}
}

// Hash returns the unique hash for the Block. Only the header is hashed, the
// transactions are committed to through the merkle root.
func (b Block) Hash() string {
	return signature.DoubleHashString(b.Header.Canonical())
}

// TxHashes returns the hashes of the transactions in block order.
func (b Block) TxHashes() []string {
	hashes := make([]string, len(b.Trans))
	for i, tx := range b.Trans {
		hashes[i] = tx.Hash()
	}

	return hashes
}

// MerkleTree constructs the merkle tree for the block's transactions.
func (b Block) MerkleTree() *merkle.Tree[Tx] {
	return merkle.NewTree(b.Trans)
}

// Coinbase returns the coinbase transaction of the block if it has one.
func (b Block) Coinbase() (CoinbaseTx, bool) {
	for _, tx := range b.Trans {
		if cb, ok := tx.(CoinbaseTx); ok {
			return cb, true
		}
	}

	return CoinbaseTx{}, false
}

// =============================================================================

// MaxFutureDrift is how far ahead of the validating node's clock a block
// timestamp may be.
const MaxFutureDrift = 2 * time.Minute

// ValidateArgs represents the chain state a block is validated against. Now
// is the validating node's clock; a zero value skips the future timestamp
// check.
type ValidateArgs struct {
	Tip        Block
	Difficulty uint
	Ledger     *Ledger
	Rewards    RewardSchedule
	Verifier   signature.Verifier
	Now        time.Time
	EvHandler  func(v string, args ...any)
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain. The transactions are validated and applied in order against a
// working copy of the ledger, which is returned on success. The ledger in
// args is never modified.
func (b Block) ValidateBlock(args ValidateArgs) (*Ledger, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	if b.Header.Difficulty != args.Difficulty {
		return nil, fmt.Errorf("%w: block difficulty %d, chain difficulty %d", ErrInvalidProofOfWork, b.Header.Difficulty, args.Difficulty)
	}

	hash := b.Hash()
	if !isHashSolved(args.Difficulty, hash) {
		return nil, fmt.Errorf("%w: %s has %d leading zero bits, need %d", ErrInvalidProofOfWork, hash, signature.LeadingZeroBits(hash), args.Difficulty)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := args.Tip.Header.Number + 1
	if b.Header.Number != nextNumber {
		return nil, fmt.Errorf("%w: this block is not the next number, got %d, exp %d", ErrInvalidBlockLinkage, b.Header.Number, nextNumber)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if tipHash := args.Tip.Hash(); b.Header.PrevBlockHash != tipHash {
		return nil, fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrInvalidBlockLinkage, b.Header.PrevBlockHash, tipHash)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Number)

	if b.Header.TimeStamp < args.Tip.Header.TimeStamp {
		return nil, fmt.Errorf("%w: block timestamp %d is before parent %d", ErrInvalidBlockLinkage, b.Header.TimeStamp, args.Tip.Header.TimeStamp)
	}

	if !args.Now.IsZero() {
		if limit := uint64(args.Now.Add(MaxFutureDrift).Unix()); b.Header.TimeStamp > limit {
			return nil, fmt.Errorf("%w: block timestamp %d is more than %s ahead of %d", ErrInvalidBlockLinkage, b.Header.TimeStamp, MaxFutureDrift, args.Now.Unix())
		}
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Number)

	if root := merkle.Root(b.TxHashes()); b.Header.MerkleRoot != root {
		return nil, fmt.Errorf("%w: got %s, exp %s", ErrInvalidMerkleRoot, b.Header.MerkleRoot, root)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: transactions against working ledger", b.Header.Number)

	working := args.Ledger.Copy()

	var coinbases int
	for i, tx := range b.Trans {
		if cb, ok := tx.(CoinbaseTx); ok {
			coinbases++
			switch {
			case i != 0:
				return nil, fmt.Errorf("%w: tx[%d]: coinbase must be the first transaction", ErrInvalidTransaction, i)
			case coinbases > 1:
				return nil, fmt.Errorf("%w: tx[%d]: more than one coinbase", ErrInvalidTransaction, i)
			}

			if exp := args.Rewards.Reward(b.Header.Number); cb.Reward != exp {
				return nil, fmt.Errorf("%w: tx[%d]: coinbase reward %d, exp %d", ErrInvalidTransaction, i, cb.Reward, exp)
			}
		}

		if err := ValidateTx(tx, working, args.Verifier); err != nil {
			return nil, fmt.Errorf("tx[%d] %s: %w", i, tx.Hash(), err)
		}

		if err := working.Apply(tx); err != nil {
			return nil, fmt.Errorf("tx[%d] %s: %w", i, tx.Hash(), err)
		}
	}

	if coinbases == 0 {
		return nil, fmt.Errorf("%w: block has no coinbase", ErrInvalidTransaction)
	}

	return working, nil
}

// isHashSolved checks the hash carries at least difficulty leading
// zero bits.
func isHashSolved(difficulty uint, hash string) bool {
	return signature.LeadingZeroBits(hash) >= int(difficulty)
}

// =============================================================================

// BlockData represents what is written to storage and sent over the wire.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"header"`
	Trans  []TxData    `json:"trans"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	trans := make([]TxData, len(block.Trans))
	for i, tx := range block.Trans {
		trans[i] = NewTxData(tx)
	}

	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  trans,
	}
}

// ToBlock converts a BlockData into a Block. A provided hash must match the
// hash of the header.
func ToBlock(blockData BlockData) (Block, error) {
	trans := make([]Tx, len(blockData.Trans))
	for i, td := range blockData.Trans {
		tx, err := td.ToTx()
		if err != nil {
			return Block{}, fmt.Errorf("tx[%d]: %w", i, err)
		}
		trans[i] = tx
	}

	block := Block{
		Header: blockData.Header,
		Trans:  trans,
	}

	if blockData.Hash != "" && blockData.Hash != block.Hash() {
		return Block{}, fmt.Errorf("block %d hash mismatch, got %s, exp %s", blockData.Header.Number, blockData.Hash, block.Hash())
	}

	return block, nil
}
