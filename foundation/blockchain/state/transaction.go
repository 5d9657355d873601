package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Set of errors returned when a transaction is submitted.
var (
	ErrTxExpired   = errors.New("transaction deadline has passed")
	ErrTxDeadline  = errors.New("transaction deadline is beyond the transaction lifetime")
	ErrTxConfirmed = errors.New("transaction is already confirmed")
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion.
func (s *State) UpsertWalletTransaction(signedTx database.SignedTx) (database.Hash, error) {
	if err := s.validateTransaction(signedTx); err != nil {
		return database.Hash{}, err
	}

	hash := s.mempool.Upsert(signedTx)
	s.metrics.SetMempoolSize(s.mempool.Count())

	s.evHandler("state: UpsertWalletTransaction: added tx[%s]: %s", hash, signedTx)

	if s.Worker != nil {
		s.Worker.SignalHarvest()
	}

	return hash, nil
}

// =============================================================================

// validateTransaction takes the signed transaction and validates it has
// a proper signature and a deadline a block harvested now accepts.
func (s *State) validateTransaction(signedTx database.SignedTx) error {
	if err := signedTx.Validate(); err != nil {
		return err
	}

	now := s.now()
	if signedTx.Deadline < now {
		return fmt.Errorf("%w: deadline %d, now %d", ErrTxExpired, signedTx.Deadline, now)
	}

	if limit := now.Add(s.genesis.Config.MaxTransactionLifetime.D()); signedTx.Deadline > limit {
		return fmt.Errorf("%w: deadline %d, limit %d", ErrTxDeadline, signedTx.Deadline, limit)
	}

	if s.cache.CreateView().Hashes().Contains(signedTx.Hash()) {
		return fmt.Errorf("%w: %s", ErrTxConfirmed, signedTx.Hash())
	}

	return nil
}
