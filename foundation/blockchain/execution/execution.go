package execution

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// Set of errors returned when executing blocks.
var (
	ErrRejected        = errors.New("block rejected by validation")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Executor runs blocks through the validators and observers.
type Executor struct {
	cfg       genesis.Config
	publisher publisher
	validator Validator
	permanent Observer
	transient Observer
}

// New constructs an executor with the default validators and observers.
func New(gen genesis.Genesis) *Executor {
	return NewWith(gen, DefaultValidators(), PermanentObservers(), TransientObservers())
}

// NewWith constructs an executor with the specified validator and
// observers.
func NewWith(gen genesis.Genesis, validator Validator, permanent Observer, transient Observer) *Executor {
	return &Executor{
		cfg: gen.Config,
		publisher: publisher{
			cfg:     gen.Config,
			nemesis: gen.Accounts,
		},
		validator: validator,
		permanent: permanent,
		transient: transient,
	}
}

// Config returns the chain configuration.
func (e *Executor) Config() genesis.Config {
	return e.cfg
}

// Observer returns the observer for the variant.
func (e *Executor) Observer(variant ObserverVariant) Observer {
	if variant == Transient {
		return e.transient
	}
	return e.permanent
}

// ExecuteBlock validates and observes the transactions of the block followed
// by the block itself. Each entity is fully validated before it is observed.
// Processing stops at the first entity that does not validate and the
// returned error wraps ErrRejected and the validation error.
func (e *Executor) ExecuteBlock(element database.BlockElement, delta *cache.Delta, observer Observer) (*Receipts, error) {
	header := element.Block.Header
	receipts := new(Receipts)

	vctx := ValidatorContext{
		Height:    header.Height,
		Timestamp: header.Timestamp,
		Config:    e.cfg,
		Accounts:  delta.Accounts(),
		Hashes:    delta.Hashes(),
	}

	octx := ObserverContext{
		Mode:      Commit,
		Height:    header.Height,
		Timestamp: header.Timestamp,
		Config:    e.cfg,
		Delta:     delta,
		Receipts:  receipts,
	}

	for i, tx := range element.Transactions {
		ns := e.publisher.publishTransaction(tx, header.FeeMultiplier)
		if err := e.process(ns, vctx, &octx, observer); err != nil {
			return nil, fmt.Errorf("block %d transaction %d %s: %w", header.Height, i, tx.EntityHash, err)
		}
	}

	ns := e.publisher.publishBlock(element)
	if err := e.process(ns, vctx, &octx, observer); err != nil {
		return nil, fmt.Errorf("block %d: %w", header.Height, err)
	}

	return receipts, nil
}

// RollbackBlock undoes the effects of the block. The block and its
// transactions are observed in the reverse order they were executed in.
func (e *Executor) RollbackBlock(element database.BlockElement, delta *cache.Delta, observer Observer) error {
	header := element.Block.Header

	octx := ObserverContext{
		Mode:      Rollback,
		Height:    header.Height,
		Timestamp: header.Timestamp,
		Config:    e.cfg,
		Delta:     delta,
	}

	if err := e.undo(e.publisher.publishBlock(element), &octx, observer); err != nil {
		return fmt.Errorf("rolling back block %d: %w", header.Height, err)
	}

	for i := len(element.Transactions) - 1; i >= 0; i-- {
		ns := e.publisher.publishTransaction(element.Transactions[i], header.FeeMultiplier)
		if err := e.undo(ns, &octx, observer); err != nil {
			return fmt.Errorf("rolling back block %d transaction %d: %w", header.Height, i, err)
		}
	}

	return nil
}

// =============================================================================

func (e *Executor) process(ns []Notification, vctx ValidatorContext, octx *ObserverContext, observer Observer) error {
	for _, n := range ns {
		if err := e.validator.Validate(n, vctx); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRejected, ResultOf(err), err)
		}
	}

	for _, n := range ns {
		if err := observer.Notify(n, octx); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) undo(ns []Notification, octx *ObserverContext, observer Observer) error {
	for i := len(ns) - 1; i >= 0; i-- {
		if err := observer.Notify(ns[i], octx); err != nil {
			return err
		}
	}

	return nil
}
