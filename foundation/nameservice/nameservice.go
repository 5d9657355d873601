// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the ledger accounts.
package nameservice

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of accounts for name lookup.
type NameService struct {
	accounts map[database.PublicKey]string
	keys     map[string]*ecdsa.PrivateKey
}

// New constructs a Name Service with accounts from the zblock/accounts folder.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[database.PublicKey]string),
		keys:     make(map[string]*ecdsa.PrivateKey),
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
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		name := strings.TrimSuffix(path.Base(fileName), ".ecdsa")
		ns.accounts[database.PublicKeyFromPrivate(privateKey)] = name
		ns.keys[name] = privateKey

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified account.
func (ns *NameService) Lookup(publicKey database.PublicKey) string {
	name, exists := ns.accounts[publicKey]
	if !exists {
		return publicKey.String()
	}
	return name
}

// PrivateKey returns the key of the named account.
func (ns *NameService) PrivateKey(name string) (*ecdsa.PrivateKey, error) {
	privateKey, exists := ns.keys[name]
	if !exists {
		return nil, fmt.Errorf("account %q not found", name)
	}
	return privateKey, nil
}

// Copy returns a copy of the map of names and accounts.
func (ns *NameService) Copy() map[database.PublicKey]string {
	cpy := make(map[database.PublicKey]string, len(ns.accounts))
	for publicKey, name := range ns.accounts {
		cpy[publicKey] = name
	}
	return cpy
}
