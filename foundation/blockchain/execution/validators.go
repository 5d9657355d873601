package execution

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// Set of validation outcomes. A validator returning an error wrapping
// ErrNeutral rejects the entity without judging it invalid, like a
// transaction that is already confirmed.
var (
	ErrNeutral = errors.New("neutral")
	ErrFailure = errors.New("failure")
)

// Result represents the outcome of validating an entity.
type Result int

// Set of validation results.
const (
	Success Result = iota
	Neutral
	Failure
)

// String implements the Stringer interface.
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Neutral:
		return "neutral"
	default:
		return "failure"
	}
}

// ResultOf maps a validation error to its result.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrNeutral):
		return Neutral
	default:
		return Failure
	}
}

func neutral(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNeutral, fmt.Sprintf(format, args...))
}

func failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFailure, fmt.Sprintf(format, args...))
}

// =============================================================================

// ValidatorContext provides the state a validator checks against.
type ValidatorContext struct {
	Height    database.Height
	Timestamp database.Timestamp
	Config    genesis.Config
	Accounts  cache.ReadOnlyAccounts
	Hashes    interface{ Contains(database.Hash) bool }
}

// Validator checks a notification. A nil error is a success.
type Validator interface {
	Validate(n Notification, ctx ValidatorContext) error
}

// ValidatorFunc adapts a function into a Validator.
type ValidatorFunc func(n Notification, ctx ValidatorContext) error

// Validate implements the Validator interface.
func (f ValidatorFunc) Validate(n Notification, ctx ValidatorContext) error {
	return f(n, ctx)
}

// AggregateValidator runs validators in order and stops at the first one
// that does not succeed.
type AggregateValidator []Validator

// Validate implements the Validator interface.
func (av AggregateValidator) Validate(n Notification, ctx ValidatorContext) error {
	for _, v := range av {
		if err := v.Validate(n, ctx); err != nil {
			return err
		}
	}

	return nil
}

// DefaultValidators returns the validators every block is checked with.
func DefaultValidators() AggregateValidator {
	return AggregateValidator{
		ValidatorFunc(validateAccountKey),
		ValidatorFunc(validateSignature),
		ValidatorFunc(validateDeadline),
		ValidatorFunc(validateUniqueHash),
		ValidatorFunc(validateBalanceDebit),
		ValidatorFunc(validateMaxTransactions),
	}
}

// =============================================================================

func validateAccountKey(n Notification, ctx ValidatorContext) error {
	if n, ok := n.(AccountKeyNotification); ok && n.PublicKey.IsZero() {
		return failure("zero account key")
	}

	return nil
}

func validateSignature(n Notification, ctx ValidatorContext) error {
	sn, ok := n.(SignatureNotification)
	if !ok {
		return nil
	}

	if err := sn.Tx.Validate(); err != nil {
		return failure("%s", err)
	}

	return nil
}

func validateDeadline(n Notification, ctx ValidatorContext) error {
	dn, ok := n.(DeadlineNotification)
	if !ok {
		return nil
	}

	if dn.Deadline < ctx.Timestamp {
		return failure("transaction deadline %d is before block time %d", dn.Deadline, ctx.Timestamp)
	}

	if limit := ctx.Timestamp.Add(ctx.Config.MaxTransactionLifetime.D()); dn.Deadline > limit {
		return failure("transaction deadline %d is after the lifetime limit %d", dn.Deadline, limit)
	}

	return nil
}

func validateUniqueHash(n Notification, ctx ValidatorContext) error {
	hn, ok := n.(TransactionHashNotification)
	if !ok || ctx.Hashes == nil {
		return nil
	}

	if ctx.Hashes.Contains(hn.Hash) {
		return neutral("transaction %s is already confirmed", hn.Hash)
	}

	return nil
}

func validateBalanceDebit(n Notification, ctx ValidatorContext) error {
	dn, ok := n.(BalanceDebitNotification)
	if !ok || dn.Amount == 0 {
		return nil
	}

	account, exists := ctx.Accounts.Find(dn.Account)
	if !exists {
		return failure("account %s does not exist", dn.Account)
	}

	if balance := account.Balance(dn.MosaicID); balance < dn.Amount {
		return failure("account %s has %d of mosaic %d, needs %d", dn.Account, balance, dn.MosaicID, dn.Amount)
	}

	return nil
}

func validateMaxTransactions(n Notification, ctx ValidatorContext) error {
	bn, ok := n.(BlockNotification)
	if !ok {
		return nil
	}

	if bn.NumTransactions > ctx.Config.MaxTransactionsPerBlock {
		return failure("block has %d transactions, max is %d", bn.NumTransactions, ctx.Config.MaxTransactionsPerBlock)
	}

	return nil
}
