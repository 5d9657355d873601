package cache

import (
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/holiman/uint256"
)

// accountMap holds the accounts of a committed generation. It is never
// mutated once the generation is committed.
type accountMap map[database.PublicKey]*AccountState

// ReadOnlyAccounts represents the read behavior shared by account views and
// deltas.
type ReadOnlyAccounts interface {
	Find(publicKey database.PublicKey) (AccountState, bool)
	Importance(publicKey database.PublicKey, height database.ImportanceHeight) database.Importance
	Len() int
}

// =============================================================================

// AccountsView provides read access to the accounts of a committed
// generation.
type AccountsView struct {
	accounts accountMap
}

// Find returns a copy of the account state.
func (v AccountsView) Find(publicKey database.PublicKey) (AccountState, bool) {
	account, exists := v.accounts[publicKey]
	if !exists {
		return AccountState{}, false
	}

	return account.Clone(), true
}

// Importance returns the importance of the account at the importance height.
func (v AccountsView) Importance(publicKey database.PublicKey, height database.ImportanceHeight) database.Importance {
	account, exists := v.accounts[publicKey]
	if !exists {
		return 0
	}

	return account.Importance(height)
}

// Len returns the number of accounts.
func (v AccountsView) Len() int {
	return len(v.accounts)
}

// Keys returns the account keys in ascending order.
func (v AccountsView) Keys() []database.PublicKey {
	keys := make([]database.PublicKey, 0, len(v.accounts))
	for key := range v.accounts {
		keys = append(keys, key)
	}

	sortKeys(keys)
	return keys
}

// Root returns the merkle root over the account hashes ordered by key.
func (v AccountsView) Root() database.Hash {
	keys := v.Keys()

	hashes := make([]database.Hash, len(keys))
	for i, key := range keys {
		hashes[i] = v.accounts[key].Hash()
	}

	return merkle.Root(hashes)
}

// =============================================================================

// AccountsDelta provides read and write access to the accounts on top of a
// committed generation. Accounts are copied from the generation the first
// time they are changed.
type AccountsDelta struct {
	base     accountMap
	modified map[database.PublicKey]*AccountState
}

func newAccountsDelta(base accountMap) *AccountsDelta {
	return &AccountsDelta{
		base:     base,
		modified: make(map[database.PublicKey]*AccountState),
	}
}

// Find returns a copy of the account state.
func (d *AccountsDelta) Find(publicKey database.PublicKey) (AccountState, bool) {
	account := d.lookup(publicKey)
	if account == nil {
		return AccountState{}, false
	}

	return account.Clone(), true
}

// Importance returns the importance of the account at the importance height.
func (d *AccountsDelta) Importance(publicKey database.PublicKey, height database.ImportanceHeight) database.Importance {
	account := d.lookup(publicKey)
	if account == nil {
		return 0
	}

	return account.Importance(height)
}

// Contains reports whether the account exists.
func (d *AccountsDelta) Contains(publicKey database.PublicKey) bool {
	return d.lookup(publicKey) != nil
}

// Len returns the number of accounts.
func (d *AccountsDelta) Len() int {
	n := len(d.base)
	for key, account := range d.modified {
		_, inBase := d.base[key]
		switch {
		case account == nil && inBase:
			n--
		case account != nil && !inBase:
			n++
		}
	}

	return n
}

// Keys returns the account keys in ascending order.
func (d *AccountsDelta) Keys() []database.PublicKey {
	keys := make([]database.PublicKey, 0, d.Len())
	for key := range d.base {
		if account, exists := d.modified[key]; exists && account == nil {
			continue
		}
		keys = append(keys, key)
	}

	for key, account := range d.modified {
		if _, inBase := d.base[key]; !inBase && account != nil {
			keys = append(keys, key)
		}
	}

	sortKeys(keys)
	return keys
}

// Get returns the account for modification.
func (d *AccountsDelta) Get(publicKey database.PublicKey) (*AccountState, bool) {
	if account, exists := d.modified[publicKey]; exists {
		return account, account != nil
	}

	account, exists := d.base[publicKey]
	if !exists {
		return nil, false
	}

	clone := account.Clone()
	d.modified[publicKey] = &clone

	return &clone, true
}

// Add creates the account if it does not already exist and returns it for
// modification.
func (d *AccountsDelta) Add(publicKey database.PublicKey, height database.Height) *AccountState {
	if account, exists := d.Get(publicKey); exists {
		return account
	}

	account := NewAccountState(publicKey, height)
	d.modified[publicKey] = &account

	return &account
}

// Remove deletes the account.
func (d *AccountsDelta) Remove(publicKey database.PublicKey) {
	if _, inBase := d.base[publicKey]; inBase {
		d.modified[publicKey] = nil
		return
	}

	delete(d.modified, publicKey)
}

// Root returns the merkle root over the account hashes ordered by key.
func (d *AccountsDelta) Root() database.Hash {
	keys := d.Keys()

	hashes := make([]database.Hash, len(keys))
	for i, key := range keys {
		hashes[i] = d.lookup(key).Hash()
	}

	return merkle.Root(hashes)
}

// RecalculateImportances records an importance snapshot at the importance
// height for every account holding at least the minimum balance of the
// harvesting mosaic. Importance is the share of the total eligible balance
// scaled to the total chain importance. Accounts that had importance and are
// no longer eligible get a zero snapshot.
func (d *AccountsDelta) RecalculateImportances(height database.ImportanceHeight, harvestingMosaicID database.MosaicID, minBalance database.Amount, totalImportance database.Importance) {
	keys := d.Keys()

	total := new(uint256.Int)
	eligible := make(map[database.PublicKey]database.Amount)
	for _, key := range keys {
		balance := d.lookup(key).Balance(harvestingMosaicID)
		if balance == 0 || balance < minBalance {
			continue
		}

		eligible[key] = balance
		total.Add(total, uint256.NewInt(uint64(balance)))
	}

	for _, key := range keys {
		balance, isEligible := eligible[key]
		if !isEligible && d.lookup(key).CurrentImportance().Importance == 0 {
			continue
		}

		var importance database.Importance
		if isEligible {
			v := uint256.NewInt(uint64(balance))
			v.Mul(v, uint256.NewInt(uint64(totalImportance)))
			v.Div(v, total)
			importance = database.Importance(v.Uint64())
		}

		account, _ := d.Get(key)
		account.PushImportance(ImportanceSnapshot{Importance: importance, Height: height})
	}
}

// RestoreImportances removes the snapshots recorded at the importance height.
func (d *AccountsDelta) RestoreImportances(height database.ImportanceHeight) {
	for _, key := range d.Keys() {
		if d.lookup(key).CurrentImportance().Height != height {
			continue
		}

		account, _ := d.Get(key)
		account.PopImportance(height)
	}
}

// =============================================================================

func (d *AccountsDelta) lookup(publicKey database.PublicKey) *AccountState {
	if account, exists := d.modified[publicKey]; exists {
		return account
	}

	return d.base[publicKey]
}

// merge returns the accounts of the next generation.
func (d *AccountsDelta) merge() accountMap {
	accounts := make(accountMap, d.Len())
	for key, account := range d.base {
		accounts[key] = account
	}

	for key, account := range d.modified {
		if account == nil {
			delete(accounts, key)
			continue
		}

		clone := account.Clone()
		accounts[key] = &clone
	}

	return accounts
}

func sortKeys(keys []database.PublicKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Compare(keys[j]) < 0
	})
}
