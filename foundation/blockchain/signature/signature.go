// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// siertriStamp is mixed into every digest that gets signed. This will make it
// clear that the signature comes from the siertrichain and can't be replayed
// on another chain that signs raw keccak digests.
const siertriStamp = "\x19Siertri Signed Message:\n32"

// =============================================================================

// Signer represents the behavior of a key that can sign messages. The public
// key returned must be usable with the matching Verifier.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() []byte
}

// Verifier represents the behavior required to verify signatures and derive
// the account address that owns a public key. Validation code only depends
// on this interface so the cryptographic backend can be replaced.
type Verifier interface {
	Verify(message []byte, sig []byte, publicKey []byte) error
	DeriveAddress(publicKey []byte) (string, error)
}

// =============================================================================

// DoubleHash applies sha256 twice to the data and returns the hex encoded
// result with the 0x prefix.
func DoubleHash(data []byte) string {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return hexutil.Encode(second[:])
}

// DoubleHashString is a convenience for hashing the bytes of a string.
func DoubleHashString(s string) string {
	return DoubleHash([]byte(s))
}

// LeadingZeroBits counts the number of leading zero bits in the hex encoded
// hash. An undecodable hash reports zero.
func LeadingZeroBits(hash string) int {
	b, err := hexutil.Decode(hash)
	if err != nil {
		return 0
	}

	var zeros int
	for _, v := range b {
		if v == 0 {
			zeros += 8
			continue
		}
		for i := 7; i >= 0; i-- {
			if v>>uint(i) != 0 {
				return zeros
			}
			zeros++
		}
	}

	return zeros
}

// =============================================================================

// Secp256k1 implements the Verifier interface using the secp256k1 curve from
// go-ethereum. Addresses are Ethereum style checksum hex strings.
type Secp256k1 struct{}

// Verify checks the 65 byte [R|S|V] signature or 64 byte [R|S] signature
// was produced by the private key of the public key for this message.
func (Secp256k1) Verify(message []byte, sig []byte, publicKey []byte) error {
	if len(sig) != crypto.SignatureLength && len(sig) != crypto.SignatureLength-1 {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	if _, err := toECDSAPub(publicKey); err != nil {
		return err
	}

	if !crypto.VerifySignature(publicKey, stamp(message), sig[:crypto.RecoveryIDOffset]) {
		return errors.New("signature does not match public key")
	}

	return nil
}

// DeriveAddress returns the account address for the specified public key.
func (Secp256k1) DeriveAddress(publicKey []byte) (string, error) {
	pk, err := toECDSAPub(publicKey)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*pk).Hex(), nil
}

// =============================================================================

// PrivateKey implements the Signer interface for an ecdsa private key.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// NewPrivateKey constructs a Signer for the specified key.
func NewPrivateKey(key *ecdsa.PrivateKey) PrivateKey {
	return PrivateKey{key: key}
}

// Sign produces a 65 byte [R|S|V] signature of the stamped message.
func (pk PrivateKey) Sign(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(stamp(message), pk.key)
	if err != nil {
		return nil, err
	}

	return sig, nil
}

// PublicKey returns the compressed 33 byte public key.
func (pk PrivateKey) PublicKey() []byte {
	return crypto.CompressPubkey(&pk.key.PublicKey)
}

// Address returns the account address for this key.
func (pk PrivateKey) Address() string {
	return PublicKeyToAddress(pk.key.PublicKey)
}

// PublicKeyToAddress converts the public key to an account address.
func PublicKeyToAddress(pk ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(pk).Hex()
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this message with
// the siertri stamp embedded into the final hash.
func stamp(message []byte) []byte {
	msgHash := crypto.Keccak256(message)
	return crypto.Keccak256([]byte(siertriStamp), msgHash)
}

// toECDSAPub accepts both compressed and uncompressed public keys.
func toECDSAPub(publicKey []byte) (*ecdsa.PublicKey, error) {
	switch len(publicKey) {
	case 33:
		pk, err := crypto.DecompressPubkey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed public key: %w", err)
		}
		return pk, nil

	case 65:
		pk, err := crypto.UnmarshalPubkey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return pk, nil
	}

	return nil, fmt.Errorf("invalid public key length %d", len(publicKey))
}
