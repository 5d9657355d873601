package execution

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// NotifyMode represents the direction notifications are observed in.
type NotifyMode int

// Set of notify modes.
const (
	Commit NotifyMode = iota
	Rollback
)

// ObserverVariant selects which observers a block is applied with.
// Transient observers also populate the short lived caches.
type ObserverVariant int

// Set of observer variants.
const (
	Permanent ObserverVariant = iota
	Transient
)

// String implements the Stringer interface.
func (v ObserverVariant) String() string {
	if v == Transient {
		return "transient"
	}
	return "permanent"
}

// ObserverContext provides the state an observer changes.
type ObserverContext struct {
	Mode      NotifyMode
	Height    database.Height
	Timestamp database.Timestamp
	Config    genesis.Config
	Delta     *cache.Delta
	Receipts  *Receipts
}

// Observer applies the effect of a notification to the state.
type Observer interface {
	Notify(n Notification, ctx *ObserverContext) error
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(n Notification, ctx *ObserverContext) error

// Notify implements the Observer interface.
func (f ObserverFunc) Notify(n Notification, ctx *ObserverContext) error {
	return f(n, ctx)
}

// AggregateObserver runs observers in order on commit and in reverse order
// on rollback.
type AggregateObserver []Observer

// Notify implements the Observer interface.
func (ao AggregateObserver) Notify(n Notification, ctx *ObserverContext) error {
	if ctx.Mode == Rollback {
		for i := len(ao) - 1; i >= 0; i-- {
			if err := ao[i].Notify(n, ctx); err != nil {
				return err
			}
		}
		return nil
	}

	for _, o := range ao {
		if err := o.Notify(n, ctx); err != nil {
			return err
		}
	}

	return nil
}

// PermanentObservers returns the observers that maintain durable state.
func PermanentObservers() AggregateObserver {
	return AggregateObserver{
		ObserverFunc(observeAccountKey),
		ObserverFunc(observeBalanceCredit),
		ObserverFunc(observeTransactionFee),
		ObserverFunc(observeBalanceTransfer),
		ObserverFunc(observeHarvestFee),
		ObserverFunc(observeDifficulty),
		ObserverFunc(observeImportance),
	}
}

// TransientObservers returns the permanent observers plus the observers
// that maintain the short lived caches.
func TransientObservers() AggregateObserver {
	return append(PermanentObservers(),
		ObserverFunc(observeTransactionHash),
		ObserverFunc(observeHashPruning),
	)
}

// =============================================================================

func observeAccountKey(n Notification, ctx *ObserverContext) error {
	an, ok := n.(AccountKeyNotification)
	if !ok {
		return nil
	}

	accounts := ctx.Delta.Accounts()

	switch ctx.Mode {
	case Commit:
		accounts.Add(an.PublicKey, ctx.Height)

	case Rollback:
		account, exists := accounts.Find(an.PublicKey)
		if exists && account.Height == ctx.Height && len(account.SortedBalances()) == 0 {
			accounts.Remove(an.PublicKey)
		}
	}

	return nil
}

func observeBalanceCredit(n Notification, ctx *ObserverContext) error {
	cn, ok := n.(BalanceCreditNotification)
	if !ok {
		return nil
	}

	account, err := getAccount(ctx, cn.Account)
	if err != nil {
		return err
	}

	if ctx.Mode == Rollback {
		return account.Debit(cn.MosaicID, cn.Amount)
	}

	return account.Credit(cn.MosaicID, cn.Amount)
}

func observeTransactionFee(n Notification, ctx *ObserverContext) error {
	fn, ok := n.(TransactionFeeNotification)
	if !ok || fn.Fee == 0 {
		return nil
	}

	account, err := getAccount(ctx, fn.Signer)
	if err != nil {
		return err
	}

	if ctx.Mode == Rollback {
		return account.Credit(ctx.Config.CurrencyMosaicID, fn.Fee)
	}

	return account.Debit(ctx.Config.CurrencyMosaicID, fn.Fee)
}

func observeBalanceTransfer(n Notification, ctx *ObserverContext) error {
	tn, ok := n.(BalanceTransferNotification)
	if !ok || tn.Amount == 0 {
		return nil
	}

	sender, err := getAccount(ctx, tn.Sender)
	if err != nil {
		return err
	}

	recipient, err := getAccount(ctx, tn.Recipient)
	if err != nil {
		return err
	}

	if ctx.Mode == Rollback {
		sender, recipient = recipient, sender
	}

	if err := sender.Debit(tn.MosaicID, tn.Amount); err != nil {
		return err
	}

	return recipient.Credit(tn.MosaicID, tn.Amount)
}

func observeHarvestFee(n Notification, ctx *ObserverContext) error {
	bn, ok := n.(BlockNotification)
	if !ok {
		return nil
	}

	beneficiary := bn.Beneficiary
	if beneficiary.IsZero() {
		beneficiary = bn.Signer
	}

	if bn.TotalFee > 0 {
		account, err := getAccount(ctx, beneficiary)
		if err != nil {
			return err
		}

		if ctx.Mode == Rollback {
			if err := account.Debit(ctx.Config.CurrencyMosaicID, bn.TotalFee); err != nil {
				return err
			}
		} else {
			if err := account.Credit(ctx.Config.CurrencyMosaicID, bn.TotalFee); err != nil {
				return err
			}
		}
	}

	if ctx.Mode == Commit && ctx.Receipts != nil {
		ctx.Receipts.Add(Receipt{
			Type:     HarvestFeeReceipt,
			Account:  beneficiary,
			MosaicID: ctx.Config.CurrencyMosaicID,
			Amount:   bn.TotalFee,
		})
	}

	return nil
}

func observeDifficulty(n Notification, ctx *ObserverContext) error {
	bn, ok := n.(BlockNotification)
	if !ok {
		return nil
	}

	history := ctx.Delta.Difficulty()

	if ctx.Mode == Rollback {
		info, err := history.RemoveNewest()
		if err != nil {
			return err
		}
		if info.Height != bn.Height {
			return fmt.Errorf("removed difficulty for height %d while rolling back %d", info.Height, bn.Height)
		}
		return nil
	}

	return history.Insert(difficulty.Info{
		Height:     bn.Height,
		Timestamp:  bn.Timestamp,
		Difficulty: bn.Difficulty,
	})
}

func observeImportance(n Notification, ctx *ObserverContext) error {
	bn, ok := n.(BlockNotification)
	if !ok {
		return nil
	}

	if ctx.Mode == Rollback {
		ctx.Delta.RestoreImportances(bn.Height)
		return nil
	}

	ctx.Delta.RecalculateImportances(bn.Height)
	return nil
}

func observeTransactionHash(n Notification, ctx *ObserverContext) error {
	hn, ok := n.(TransactionHashNotification)
	if !ok {
		return nil
	}

	if ctx.Mode == Rollback {
		ctx.Delta.Hashes().Remove(hn.Hash)
		return nil
	}

	ctx.Delta.Hashes().Insert(hn.Hash, hn.Deadline)
	return nil
}

func observeHashPruning(n Notification, ctx *ObserverContext) error {
	bn, ok := n.(BlockNotification)
	if !ok || ctx.Mode != Commit {
		return nil
	}

	ctx.Delta.Hashes().Prune(bn.Timestamp.SubSaturating(ctx.Config.TransactionCacheDuration()))
	return nil
}

func getAccount(ctx *ObserverContext, publicKey database.PublicKey) (*cache.AccountState, error) {
	account, exists := ctx.Delta.Accounts().Get(publicKey)
	if !exists {
		return nil, fmt.Errorf("account %s does not exist", publicKey)
	}

	return account, nil
}
