package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// MaxMemoLength is the maximum number of characters in a transfer memo.
const MaxMemoLength = 256

// TxKind identifies the variant of a transaction.
type TxKind string

// Set of transaction kinds.
const (
	KindSubdivision TxKind = "subdivision"
	KindTransfer    TxKind = "transfer"
	KindCoinbase    TxKind = "coinbase"
)

// Tx represents a transaction recorded in a block. The set of variants is
// closed: SubdivisionTx, TransferTx and CoinbaseTx.
type Tx interface {
	Kind() TxKind
	Hash() string
	SignableMessage() string
	String() string
	isTx()
}

// =============================================================================

// SubdivisionTx consumes a parent triangle and produces its three children
// for the same owner.
type SubdivisionTx struct {
	ParentHash string               `json:"parent_hash"`
	Children   [3]geometry.Triangle `json:"children"`
	Owner      AccountID            `json:"owner"`
	Fee        uint64               `json:"fee"`
	Nonce      uint64               `json:"nonce"`
	Signature  hexutil.Bytes        `json:"signature,omitempty"`
	PublicKey  hexutil.Bytes        `json:"public_key,omitempty"`
}

// NewSubdivisionTx constructs an unsigned subdivision of the parent. The
// children are computed from the parent.
func NewSubdivisionTx(parent geometry.Triangle, fee uint64, nonce uint64) (SubdivisionTx, error) {
	owner, err := ToAccountID(parent.Owner)
	if err != nil {
		return SubdivisionTx{}, fmt.Errorf("parent owner: %w", err)
	}

	tx := SubdivisionTx{
		ParentHash: parent.Hash(),
		Children:   geometry.Subdivide(parent),
		Owner:      owner,
		Fee:        fee,
		Nonce:      nonce,
	}

	return tx, nil
}

// Sign uses the specified signer to sign the transaction.
func (tx SubdivisionTx) Sign(signer signature.Signer) (SubdivisionTx, error) {
	sig, err := signer.Sign([]byte(tx.SignableMessage()))
	if err != nil {
		return SubdivisionTx{}, err
	}

	tx.Signature = sig
	tx.PublicKey = signer.PublicKey()

	return tx, nil
}

// Kind implements the Tx interface.
func (SubdivisionTx) Kind() TxKind { return KindSubdivision }

// SignableMessage returns the canonical serialization that is signed. It
// excludes the signature and public key. Each child is written with its
// vertices in stored order, so reordering them changes the transaction hash.
func (tx SubdivisionTx) SignableMessage() string {
	children := make([]string, len(tx.Children))
	for i, child := range tx.Children {
		children[i] = child.Hash() + "[" + child.Vertices() + "]:" + child.Owner
	}

	return strings.Join([]string{
		string(KindSubdivision),
		tx.ParentHash,
		strings.Join(children, ","),
		string(tx.Owner),
		strconv.FormatUint(tx.Fee, 10),
		strconv.FormatUint(tx.Nonce, 10),
	}, "|")
}

// Hash implements the merkle Hashable interface.
func (tx SubdivisionTx) Hash() string {
	return hashTx(tx.SignableMessage(), tx.Signature, tx.PublicKey)
}

// String implements the fmt.Stringer interface for logging.
func (tx SubdivisionTx) String() string {
	return fmt.Sprintf("subdivision:%s:%s:%d", tx.ParentHash, tx.Owner, tx.Nonce)
}

func (SubdivisionTx) isTx() {}

// =============================================================================

// TransferTx moves ownership of an asset to a new owner.
type TransferTx struct {
	InputHash string        `json:"input_hash"`
	NewOwner  AccountID     `json:"new_owner"`
	Sender    AccountID     `json:"sender"`
	Fee       uint64        `json:"fee"`
	Nonce     uint64        `json:"nonce"`
	Memo      string        `json:"memo,omitempty"`
	Signature hexutil.Bytes `json:"signature,omitempty"`
	PublicKey hexutil.Bytes `json:"public_key,omitempty"`
}

// NewTransferTx constructs an unsigned transfer.
func NewTransferTx(inputHash string, newOwner AccountID, sender AccountID, fee uint64, nonce uint64, memo string) (TransferTx, error) {
	if !newOwner.IsAccountID() {
		return TransferTx{}, errors.New("new owner account is not properly formatted")
	}

	if !sender.IsAccountID() {
		return TransferTx{}, errors.New("sender account is not properly formatted")
	}

	if utf8.RuneCountInString(memo) > MaxMemoLength {
		return TransferTx{}, fmt.Errorf("memo exceeds %d characters", MaxMemoLength)
	}

	tx := TransferTx{
		InputHash: inputHash,
		NewOwner:  newOwner.Checksum(),
		Sender:    sender.Checksum(),
		Fee:       fee,
		Nonce:     nonce,
		Memo:      memo,
	}

	return tx, nil
}

// Sign uses the specified signer to sign the transaction.
func (tx TransferTx) Sign(signer signature.Signer) (TransferTx, error) {
	sig, err := signer.Sign([]byte(tx.SignableMessage()))
	if err != nil {
		return TransferTx{}, err
	}

	tx.Signature = sig
	tx.PublicKey = signer.PublicKey()

	return tx, nil
}

// Kind implements the Tx interface.
func (TransferTx) Kind() TxKind { return KindTransfer }

// SignableMessage returns the canonical serialization that is signed. It
// excludes the signature and public key.
func (tx TransferTx) SignableMessage() string {
	return strings.Join([]string{
		string(KindTransfer),
		tx.InputHash,
		string(tx.NewOwner),
		string(tx.Sender),
		strconv.FormatUint(tx.Fee, 10),
		strconv.FormatUint(tx.Nonce, 10),
		tx.Memo,
	}, "|")
}

// Hash implements the merkle Hashable interface.
func (tx TransferTx) Hash() string {
	return hashTx(tx.SignableMessage(), tx.Signature, tx.PublicKey)
}

// String implements the fmt.Stringer interface for logging.
func (tx TransferTx) String() string {
	return fmt.Sprintf("transfer:%s:%s->%s:%d", tx.InputHash, tx.Sender, tx.NewOwner, tx.Nonce)
}

func (TransferTx) isTx() {}

// =============================================================================

// CoinbaseTx credits the block reward to the beneficiary. It is only
// constructed by the block producer and is never signed.
type CoinbaseTx struct {
	Reward      uint64    `json:"reward"`
	Beneficiary AccountID `json:"beneficiary"`
}

// NewCoinbaseTx constructs a coinbase transaction.
func NewCoinbaseTx(reward uint64, beneficiary AccountID) CoinbaseTx {
	return CoinbaseTx{
		Reward:      reward,
		Beneficiary: beneficiary.Checksum(),
	}
}

// Kind implements the Tx interface.
func (CoinbaseTx) Kind() TxKind { return KindCoinbase }

// SignableMessage returns the canonical serialization of the coinbase.
func (tx CoinbaseTx) SignableMessage() string {
	return strings.Join([]string{
		string(KindCoinbase),
		strconv.FormatUint(tx.Reward, 10),
		string(tx.Beneficiary),
	}, "|")
}

// Hash implements the merkle Hashable interface.
func (tx CoinbaseTx) Hash() string {
	return hashTx(tx.SignableMessage(), nil, nil)
}

// String implements the fmt.Stringer interface for logging.
func (tx CoinbaseTx) String() string {
	return fmt.Sprintf("coinbase:%s:%d", tx.Beneficiary, tx.Reward)
}

func (CoinbaseTx) isTx() {}

// =============================================================================

// TxFrom returns the account paying for the transaction. A coinbase has
// no sender.
func TxFrom(tx Tx) AccountID {
	switch tx := tx.(type) {
	case SubdivisionTx:
		return tx.Owner
	case TransferTx:
		return tx.Sender
	}

	return ""
}

// TxFee returns the fee offered by the transaction.
func TxFee(tx Tx) uint64 {
	switch tx := tx.(type) {
	case SubdivisionTx:
		return tx.Fee
	case TransferTx:
		return tx.Fee
	}

	return 0
}

// TxNonce returns the replay protection nonce of the transaction.
func TxNonce(tx Tx) uint64 {
	switch tx := tx.(type) {
	case SubdivisionTx:
		return tx.Nonce
	case TransferTx:
		return tx.Nonce
	}

	return 0
}

// TxInput returns the identity of the asset the transaction consumes.
func TxInput(tx Tx) string {
	switch tx := tx.(type) {
	case SubdivisionTx:
		return tx.ParentHash
	case TransferTx:
		return tx.InputHash
	}

	return ""
}

// =============================================================================

// TxData is the tagged envelope used to serialize a transaction.
type TxData struct {
	Kind        TxKind         `json:"kind" validate:"required,oneof=subdivision transfer coinbase"`
	Subdivision *SubdivisionTx `json:"subdivision,omitempty"`
	Transfer    *TransferTx    `json:"transfer,omitempty"`
	Coinbase    *CoinbaseTx    `json:"coinbase,omitempty"`
}

// NewTxData wraps the transaction in its envelope.
func NewTxData(tx Tx) TxData {
	switch tx := tx.(type) {
	case SubdivisionTx:
		return TxData{Kind: KindSubdivision, Subdivision: &tx}
	case TransferTx:
		return TxData{Kind: KindTransfer, Transfer: &tx}
	case CoinbaseTx:
		return TxData{Kind: KindCoinbase, Coinbase: &tx}
	}

	return TxData{}
}

// ToTx extracts the transaction from the envelope.
func (td TxData) ToTx() (Tx, error) {
	switch td.Kind {
	case KindSubdivision:
		if td.Subdivision != nil {
			return *td.Subdivision, nil
		}
	case KindTransfer:
		if td.Transfer != nil {
			return *td.Transfer, nil
		}
	case KindCoinbase:
		if td.Coinbase != nil {
			return *td.Coinbase, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, td.Kind)
	}

	return nil, fmt.Errorf("%w: missing %s payload", ErrInvalidTransaction, td.Kind)
}

// =============================================================================

// hashTx returns the transaction hash over the signable message and the
// signature material.
func hashTx(signable string, sig []byte, publicKey []byte) string {
	return signature.DoubleHashString(signable + "|" + hexutil.Encode(sig) + "|" + hexutil.Encode(publicKey))
}
