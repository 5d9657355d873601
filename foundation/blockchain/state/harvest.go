package state

import (
	"crypto/ecdsa"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/harvesting"
)

// HarvestNextBlock runs one harvesting attempt. A block produced by one of
// the unlocked accounts is processed before the call returns.
func (s *State) HarvestNextBlock() error {
	s.metrics.HarvestAttempt()
	return s.task.Harvest()
}

// IsHarvestingAllowed reports whether the node harvests blocks.
func (s *State) IsHarvestingAllowed() bool {
	return s.harvestingAllowed.Load()
}

// SetHarvestingAllowed turns harvesting on or off.
func (s *State) SetHarvestingAllowed(allowed bool) {
	s.evHandler("state: SetHarvestingAllowed: %t", allowed)
	s.harvestingAllowed.Store(allowed)
}

// UnlockAccount adds the account to the harvesting accounts. The key is
// saved in the data directory so it is unlocked again on restart.
func (s *State) UnlockAccount(privateKey *ecdsa.PrivateKey) (database.PublicKey, error) {
	account := harvesting.NewAccount(privateKey)

	if err := s.unlocked.Modifier().Add(account); err != nil {
		return database.PublicKey{}, err
	}

	if s.keyStore != nil {
		if err := s.keyStore.Save(s.unlocked.View(), nil); err != nil {
			return database.PublicKey{}, err
		}
	}

	s.evHandler("state: UnlockAccount: unlocked account %s", account.PublicKey)

	return account.PublicKey, nil
}

// LockAccount removes the account from the harvesting accounts. It reports
// whether the account was unlocked.
func (s *State) LockAccount(publicKey database.PublicKey) (bool, error) {
	if !s.unlocked.Modifier().Remove(publicKey) {
		return false, nil
	}

	if s.keyStore != nil {
		if err := s.keyStore.Remove(publicKey); err != nil {
			return true, err
		}
	}

	s.evHandler("state: LockAccount: locked account %s", publicKey)

	return true, nil
}
