package harvesting

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

const keyExtension = ".ecdsa"

// KeyStore persists the private keys of unlocked accounts as one key file
// per account so harvesting resumes after a restart.
type KeyStore struct {
	dir string
}

// NewKeyStore constructs a key store over the directory, creating it when
// it does not exist.
func NewKeyStore(dir string) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}

	return &KeyStore{dir: dir}, nil
}

// Save writes a key file for every account the filter accepts and removes
// the key files of all other accounts. A nil filter accepts every account.
func (ks *KeyStore) Save(view View, filter func(account Account) bool) error {
	keep := make(map[string]struct{})

	var err error
	view.ForEach(func(account Account) bool {
		if filter != nil && !filter(account) {
			return true
		}

		path := ks.path(account.PublicKey)
		if err = crypto.SaveECDSA(path, account.PrivateKey); err != nil {
			err = fmt.Errorf("saving key %s: %w", account.PublicKey, err)
			return false
		}

		keep[path] = struct{}{}
		return true
	})
	if err != nil {
		return err
	}

	paths, err := ks.paths()
	if err != nil {
		return err
	}

	for _, path := range paths {
		if _, exists := keep[path]; exists {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing key file: %w", err)
		}
	}

	return nil
}

// Load reads every key file in the directory.
func (ks *KeyStore) Load() ([]Account, error) {
	paths, err := ks.paths()
	if err != nil {
		return nil, err
	}

	var accounts []Account
	for _, path := range paths {
		privateKey, err := crypto.LoadECDSA(path)
		if err != nil {
			return nil, fmt.Errorf("loading key %s: %w", filepath.Base(path), err)
		}

		account := NewAccount(privateKey)
		if want := strings.TrimSuffix(filepath.Base(path), keyExtension); want != account.PublicKey.String() {
			return nil, fmt.Errorf("key file %s holds the key of %s", filepath.Base(path), account.PublicKey)
		}

		accounts = append(accounts, account)
	}

	return accounts, nil
}

// Remove deletes the key file of the account if it exists.
func (ks *KeyStore) Remove(publicKey database.PublicKey) error {
	if err := os.Remove(ks.path(publicKey)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing key file: %w", err)
	}

	return nil
}

// =============================================================================

func (ks *KeyStore) path(publicKey database.PublicKey) string {
	return filepath.Join(ks.dir, publicKey.String()+keyExtension)
}

func (ks *KeyStore) paths() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading key directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != keyExtension {
			continue
		}
		paths = append(paths, filepath.Join(ks.dir, entry.Name()))
	}

	return paths, nil
}
