package database

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountID represents an account address that signs transactions and owns
// assets and reward balances on the blockchain.
type AccountID string

// ToAccountID converts a hex-encoded string to an account, validates the
// hex-encoded string is formatted correctly, and returns it in checksum form.
func ToAccountID(hex string) (AccountID, error) {
	a := AccountID(hex)
	if !a.IsAccountID() {
		return "", errors.New("invalid account format")
	}

	return a.Checksum(), nil
}

// IsAccountID verifies whether the underlying data represents a valid
// hex-encoded account.
func (a AccountID) IsAccountID() bool {
	const addressLength = 20

	if has0xPrefix(a) {
		a = a[2:]
	}

	return len(a) == 2*addressLength && isHex(a)
}

// Checksum returns the mixed case checksum form of the account. Values
// that are not valid accounts are returned unchanged.
func (a AccountID) Checksum() AccountID {
	if !a.IsAccountID() {
		return a
	}

	return AccountID(common.HexToAddress(string(a)).Hex())
}

// Equals compares two accounts ignoring the case of the hex digits.
func (a AccountID) Equals(other AccountID) bool {
	return strings.EqualFold(string(a), string(other))
}

// =============================================================================

// has0xPrefix validates the account starts with a 0x.
func has0xPrefix(a AccountID) bool {
	return len(a) >= 2 && a[0] == '0' && (a[1] == 'x' || a[1] == 'X')
}

// isHex validates whether each byte is valid hexadecimal string.
func isHex(a AccountID) bool {
	if len(a)%2 != 0 {
		return false
	}

	for _, c := range []byte(a) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

// isHexCharacter returns bool of c being a valid hexadecimal.
func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
