package harvesting

import (
	"crypto/ecdsa"
	"errors"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// ErrCapacity is returned when an account is unlocked while the maximum
// number of accounts is already unlocked.
var ErrCapacity = errors.New("unlocked accounts are at capacity")

// Account represents a key pair the node can harvest with.
type Account struct {
	PublicKey  database.PublicKey
	PrivateKey *ecdsa.PrivateKey
}

// NewAccount constructs an account for the private key.
func NewAccount(privateKey *ecdsa.PrivateKey) Account {
	return Account{
		PublicKey:  database.PublicKeyFromPrivate(privateKey),
		PrivateKey: privateKey,
	}
}

// =============================================================================

// UnlockedAccounts holds the accounts used for harvesting in the order they
// were unlocked. Readers use a View which is a snapshot and is never changed
// by a Modifier.
type UnlockedAccounts struct {
	mu       sync.RWMutex
	capacity int
	accounts []Account
}

// NewUnlockedAccounts constructs an empty set holding up to capacity accounts.
func NewUnlockedAccounts(capacity int) *UnlockedAccounts {
	return &UnlockedAccounts{
		capacity: capacity,
	}
}

// View returns a snapshot of the unlocked accounts.
func (ua *UnlockedAccounts) View() View {
	ua.mu.RLock()
	defer ua.mu.RUnlock()

	return View{accounts: ua.accounts}
}

// Modifier returns the handle used to unlock and lock accounts.
func (ua *UnlockedAccounts) Modifier() Modifier {
	return Modifier{ua: ua}
}

// =============================================================================

// View is a read only snapshot of the unlocked accounts.
type View struct {
	accounts []Account
}

// Len returns the number of unlocked accounts.
func (v View) Len() int {
	return len(v.accounts)
}

// Contains reports whether the account is unlocked.
func (v View) Contains(publicKey database.PublicKey) bool {
	for _, account := range v.accounts {
		if account.PublicKey == publicKey {
			return true
		}
	}
	return false
}

// ForEach calls fn for each account in unlock order until fn returns false.
func (v View) ForEach(fn func(account Account) bool) {
	for _, account := range v.accounts {
		if !fn(account) {
			return
		}
	}
}

// PublicKeys returns the public keys in unlock order.
func (v View) PublicKeys() []database.PublicKey {
	keys := make([]database.PublicKey, len(v.accounts))
	for i, account := range v.accounts {
		keys[i] = account.PublicKey
	}
	return keys
}

// =============================================================================

// Modifier adds and removes unlocked accounts.
type Modifier struct {
	ua *UnlockedAccounts
}

// Add unlocks the account. Adding an account that is already unlocked does
// nothing.
func (m Modifier) Add(account Account) error {
	ua := m.ua
	ua.mu.Lock()
	defer ua.mu.Unlock()

	for _, existing := range ua.accounts {
		if existing.PublicKey == account.PublicKey {
			return nil
		}
	}

	if len(ua.accounts) >= ua.capacity {
		return ErrCapacity
	}

	accounts := make([]Account, len(ua.accounts), len(ua.accounts)+1)
	copy(accounts, ua.accounts)
	ua.accounts = append(accounts, account)

	return nil
}

// Remove locks the account. It reports whether the account was unlocked.
func (m Modifier) Remove(publicKey database.PublicKey) bool {
	ua := m.ua
	ua.mu.Lock()
	defer ua.mu.Unlock()

	accounts := make([]Account, 0, len(ua.accounts))
	for _, account := range ua.accounts {
		if account.PublicKey != publicKey {
			accounts = append(accounts, account)
		}
	}

	if len(accounts) == len(ua.accounts) {
		return false
	}

	ua.accounts = accounts
	return true
}

// RemoveIf locks every account the predicate selects and returns how many
// were removed.
func (m Modifier) RemoveIf(predicate func(account Account) bool) int {
	ua := m.ua
	ua.mu.Lock()
	defer ua.mu.Unlock()

	accounts := make([]Account, 0, len(ua.accounts))
	for _, account := range ua.accounts {
		if !predicate(account) {
			accounts = append(accounts, account)
		}
	}

	removed := len(ua.accounts) - len(accounts)
	ua.accounts = accounts

	return removed
}
