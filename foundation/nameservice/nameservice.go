// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the known accounts.
package nameservice

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// NameService maintains a map of accounts for name lookup.
type NameService struct {
	accounts map[database.AccountID]string
}

// New constructs a Name Service with accounts from the zblock/accounts folder.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[database.AccountID]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		account := database.AccountID(signature.PublicKeyToAddress(privateKey.PublicKey))
		ns.accounts[account] = strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified account. The account is
// returned as is when it has no name.
func (ns *NameService) Lookup(account database.AccountID) string {
	name, exists := ns.accounts[account.Checksum()]
	if !exists {
		return string(account)
	}
	return name
}

// Resolve returns the account for the specified name.
func (ns *NameService) Resolve(name string) (database.AccountID, bool) {
	for account, n := range ns.accounts {
		if n == name {
			return account, true
		}
	}
	return "", false
}

// Names returns the known names sorted.
func (ns *NameService) Names() []string {
	names := make([]string, 0, len(ns.accounts))
	for _, name := range ns.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy returns a copy of the map of names and accounts.
func (ns *NameService) Copy() map[database.AccountID]string {
	cpy := make(map[database.AccountID]string, len(ns.accounts))
	for account, name := range ns.accounts {
		cpy[account] = name
	}
	return cpy
}
