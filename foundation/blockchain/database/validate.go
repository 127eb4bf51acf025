package database

import (
	"fmt"
	"unicode/utf8"

	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// ValidateTx checks the transaction against the ledger. The ledger is only
// read. A coinbase is always structurally valid here; its reward is checked
// as part of block validation.
func ValidateTx(tx Tx, ledger *Ledger, verifier signature.Verifier) error {
	switch tx := tx.(type) {
	case SubdivisionTx:
		return validateSubdivision(tx, ledger, verifier)
	case TransferTx:
		return validateTransfer(tx, ledger, verifier)
	case CoinbaseTx:
		return nil
	}

	return fmt.Errorf("%w: unknown transaction type %T", ErrInvalidTransaction, tx)
}

func validateSubdivision(tx SubdivisionTx, ledger *Ledger, verifier signature.Verifier) error {
	if err := verifySigner(tx.SignableMessage(), tx.Signature, tx.PublicKey, tx.Owner, verifier); err != nil {
		return err
	}

	parent, exists := ledger.Lookup(tx.ParentHash)
	if !exists {
		return fmt.Errorf("%w: parent %s", ErrAssetNotFound, tx.ParentHash)
	}

	if !AccountID(parent.Owner).Equals(tx.Owner) {
		return fmt.Errorf("%w: parent %s is not owned by %s", ErrAssetNotFound, tx.ParentHash, tx.Owner)
	}

	expected := geometry.Subdivide(parent)
	for i := range expected {
		if err := expected[i].Validate(); err != nil {
			return fmt.Errorf("%w: child %d of %s: %w", ErrInvalidTransaction, i, tx.ParentHash, err)
		}

		if !tx.Children[i].Identical(expected[i]) {
			return fmt.Errorf("%w: child %d does not match the subdivision of %s", ErrInvalidTransaction, i, tx.ParentHash)
		}
	}

	return nil
}

func validateTransfer(tx TransferTx, ledger *Ledger, verifier signature.Verifier) error {
	if err := verifySigner(tx.SignableMessage(), tx.Signature, tx.PublicKey, tx.Sender, verifier); err != nil {
		return err
	}

	if !tx.NewOwner.IsAccountID() {
		return fmt.Errorf("%w: new owner %q is not a valid account", ErrInvalidTransaction, tx.NewOwner)
	}

	if n := utf8.RuneCountInString(tx.Memo); n > MaxMemoLength {
		return fmt.Errorf("%w: memo has %d characters, max %d", ErrInvalidTransaction, n, MaxMemoLength)
	}

	if ledger.NonceUsed(tx.Sender, tx.Nonce) {
		return fmt.Errorf("%w: nonce %d of %s has already been used", ErrInvalidTransaction, tx.Nonce, tx.Sender)
	}

	input, exists := ledger.Lookup(tx.InputHash)
	if !exists {
		return fmt.Errorf("%w: input %s", ErrAssetNotFound, tx.InputHash)
	}

	if !AccountID(input.Owner).Equals(tx.Sender) {
		return fmt.Errorf("%w: input %s is not owned by %s", ErrAssetNotFound, tx.InputHash, tx.Sender)
	}

	return nil
}

// verifySigner checks the signature over the message and that the public
// key belongs to the claimed account.
func verifySigner(message string, sig []byte, publicKey []byte, claimed AccountID, verifier signature.Verifier) error {
	if len(sig) == 0 || len(publicKey) == 0 {
		return fmt.Errorf("%w: transaction is not signed", ErrInvalidTransaction)
	}

	if err := verifier.Verify([]byte(message), sig, publicKey); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
	}

	address, err := verifier.DeriveAddress(publicKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
	}

	if !AccountID(address).Equals(claimed) {
		return fmt.Errorf("%w: signer %s does not match %s", ErrInvalidTransaction, address, claimed)
	}

	return nil
}
