package public

import (
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/merkle"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
)

type asset struct {
	Hash       string         `json:"hash"`
	A          geometry.Point `json:"a"`
	B          geometry.Point `json:"b"`
	C          geometry.Point `json:"c"`
	Area       float64        `json:"area"`
	ParentHash string         `json:"parent_hash,omitempty"`
	Owner      string         `json:"owner"`
	OwnerName  string         `json:"owner_name"`
}

type holdings struct {
	Owner     database.AccountID `json:"owner"`
	OwnerName string             `json:"owner_name"`
	Count     int                `json:"count"`
	TotalArea float64            `json:"total_area"`
	Assets    []asset            `json:"assets"`
}

type rewardBalance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
}

type reward struct {
	Height      uint64 `json:"height"`
	Era         uint64 `json:"era"`
	Reward      uint64 `json:"reward"`
	NextHalving uint64 `json:"next_halving"`
}

type tx struct {
	Hash     string          `json:"hash"`
	Kind     database.TxKind `json:"kind"`
	From     string          `json:"from,omitempty"`
	FromName string          `json:"from_name,omitempty"`
	Input    string          `json:"input,omitempty"`
	Fee      uint64          `json:"fee"`
	Nonce    uint64          `json:"nonce"`
	Data     database.TxData `json:"data"`
}

type block struct {
	Hash          string `json:"hash"`
	Number        uint64 `json:"number"`
	PrevBlockHash string `json:"prev_block_hash"`
	TimeStamp     uint64 `json:"timestamp"`
	MerkleRoot    string `json:"merkle_root"`
	Difficulty    uint   `json:"difficulty"`
	Nonce         uint64 `json:"nonce"`
	Transactions  []tx   `json:"txs"`
}

type proof struct {
	Block      uint64             `json:"block"`
	TxHash     string             `json:"tx_hash"`
	MerkleRoot string             `json:"merkle_root"`
	Steps      []merkle.ProofStep `json:"steps"`
}

type status struct {
	state.Stats
	KnownPeers int `json:"known_peers"`
}
