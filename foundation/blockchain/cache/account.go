package cache

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// importanceHistorySize is the number of importance snapshots kept per
// account so recalculations can be rolled back.
const importanceHistorySize = 3

// Set of errors returned when changing account balances.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// ImportanceSnapshot represents the importance of an account calculated at
// an importance height.
type ImportanceSnapshot struct {
	Importance database.Importance
	Height     database.ImportanceHeight
}

// Balance represents the amount of a mosaic held by an account.
type Balance struct {
	MosaicID database.MosaicID
	Amount   database.Amount
}

// AccountState represents the state of an account.
type AccountState struct {
	PublicKey   database.PublicKey
	Height      database.Height                       // Height the account was first seen at.
	Balances    map[database.MosaicID]database.Amount // Mosaic balances.
	Importances []ImportanceSnapshot                  // Newest first.
}

// NewAccountState constructs an account first seen at the specified height.
func NewAccountState(publicKey database.PublicKey, height database.Height) AccountState {
	return AccountState{
		PublicKey: publicKey,
		Height:    height,
		Balances:  make(map[database.MosaicID]database.Amount),
	}
}

// Clone returns a deep copy of the account.
func (a AccountState) Clone() AccountState {
	balances := make(map[database.MosaicID]database.Amount, len(a.Balances))
	for id, amount := range a.Balances {
		balances[id] = amount
	}

	a.Balances = balances
	a.Importances = append([]ImportanceSnapshot(nil), a.Importances...)

	return a
}

// Balance returns the amount of the mosaic held by the account.
func (a AccountState) Balance(mosaicID database.MosaicID) database.Amount {
	return a.Balances[mosaicID]
}

// Credit adds the amount to the mosaic balance.
func (a *AccountState) Credit(mosaicID database.MosaicID, amount database.Amount) error {
	current := a.Balances[mosaicID]
	if current > math.MaxUint64-amount {
		return fmt.Errorf("%w: account %s mosaic %d", ErrBalanceOverflow, a.PublicKey, mosaicID)
	}

	if a.Balances == nil {
		a.Balances = make(map[database.MosaicID]database.Amount)
	}
	a.Balances[mosaicID] = current + amount

	return nil
}

// Debit removes the amount from the mosaic balance.
func (a *AccountState) Debit(mosaicID database.MosaicID, amount database.Amount) error {
	current := a.Balances[mosaicID]
	if current < amount {
		return fmt.Errorf("%w: account %s mosaic %d has %d, needs %d", ErrInsufficientBalance, a.PublicKey, mosaicID, current, amount)
	}

	if current == amount {
		delete(a.Balances, mosaicID)
		return nil
	}

	a.Balances[mosaicID] = current - amount
	return nil
}

// Importance returns the importance of the account calculated at the
// importance height. An account without a snapshot at that height has no
// importance.
func (a AccountState) Importance(height database.ImportanceHeight) database.Importance {
	for _, snapshot := range a.Importances {
		if snapshot.Height == height {
			return snapshot.Importance
		}
	}

	return 0
}

// CurrentImportance returns the newest importance snapshot.
func (a AccountState) CurrentImportance() ImportanceSnapshot {
	if len(a.Importances) == 0 {
		return ImportanceSnapshot{}
	}

	return a.Importances[0]
}

// PushImportance records a new importance snapshot, dropping the oldest one
// when the history is full.
func (a *AccountState) PushImportance(snapshot ImportanceSnapshot) {
	importances := make([]ImportanceSnapshot, 0, importanceHistorySize)
	importances = append(importances, snapshot)
	importances = append(importances, a.Importances...)

	if len(importances) > importanceHistorySize {
		importances = importances[:importanceHistorySize]
	}

	a.Importances = importances
}

// PopImportance removes the newest snapshot if it was calculated at the
// importance height.
func (a *AccountState) PopImportance(height database.ImportanceHeight) bool {
	if len(a.Importances) == 0 || a.Importances[0].Height != height {
		return false
	}

	a.Importances = append([]ImportanceSnapshot(nil), a.Importances[1:]...)
	return true
}

// SortedBalances returns the non zero balances ordered by mosaic id.
func (a AccountState) SortedBalances() []Balance {
	balances := make([]Balance, 0, len(a.Balances))
	for id, amount := range a.Balances {
		if amount == 0 {
			continue
		}
		balances = append(balances, Balance{MosaicID: id, Amount: amount})
	}

	sort.Slice(balances, func(i, j int) bool {
		return balances[i].MosaicID < balances[j].MosaicID
	})

	return balances
}

// Hash returns the hash of the canonical encoding of the account.
func (a AccountState) Hash() database.Hash {
	data, err := rlp.EncodeToBytes(newAccountRecord(a))
	if err != nil {

		// The record only holds fixed size values and slices of them.
		panic(fmt.Sprintf("encoding account %s: %s", a.PublicKey, err))
	}

	return crypto.Keccak256Hash(data)
}

// =============================================================================

// accountRecord is the canonical encoding of an account used for hashing and
// the persisted state files.
type accountRecord struct {
	PublicKey   database.PublicKey
	Height      database.Height
	Balances    []Balance
	Importances []ImportanceSnapshot
}

func newAccountRecord(a AccountState) accountRecord {
	importances := a.Importances
	if importances == nil {
		importances = []ImportanceSnapshot{}
	}

	return accountRecord{
		PublicKey:   a.PublicKey,
		Height:      a.Height,
		Balances:    a.SortedBalances(),
		Importances: importances,
	}
}

func (r accountRecord) toAccountState() AccountState {
	a := NewAccountState(r.PublicKey, r.Height)
	for _, b := range r.Balances {
		a.Balances[b.MosaicID] = b.Amount
	}

	if len(r.Importances) > 0 {
		a.Importances = append([]ImportanceSnapshot(nil), r.Importances...)
	}

	return a
}
