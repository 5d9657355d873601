// Package execution runs blocks through the validation and observation
// pipeline that applies their effects to the state cache.
package execution

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// Notification represents one effect of a transaction or block that is
// validated and then observed.
type Notification interface {
	notification()
}

// AccountKeyNotification announces an account referenced by an entity.
type AccountKeyNotification struct {
	PublicKey database.PublicKey
}

// SignatureNotification carries a transaction whose signature must verify.
type SignatureNotification struct {
	Tx database.SignedTx
}

// DeadlineNotification carries the deadline of a transaction.
type DeadlineNotification struct {
	Deadline database.Timestamp
}

// TransactionHashNotification carries the entity hash of a transaction.
type TransactionHashNotification struct {
	Hash     database.Hash
	Deadline database.Timestamp
}

// BalanceDebitNotification carries the total amount of a mosaic an entity
// takes from an account.
type BalanceDebitNotification struct {
	Account  database.PublicKey
	MosaicID database.MosaicID
	Amount   database.Amount
}

// BalanceTransferNotification moves a mosaic between accounts.
type BalanceTransferNotification struct {
	Sender    database.PublicKey
	Recipient database.PublicKey
	MosaicID  database.MosaicID
	Amount    database.Amount
}

// BalanceCreditNotification seeds an account balance from the nemesis block.
type BalanceCreditNotification struct {
	Account  database.PublicKey
	MosaicID database.MosaicID
	Amount   database.Amount
}

// TransactionFeeNotification charges a transaction fee to its signer.
type TransactionFeeNotification struct {
	Signer database.PublicKey
	Fee    database.Amount
}

// BlockNotification carries the block values observed after its
// transactions.
type BlockNotification struct {
	Height          database.Height
	Timestamp       database.Timestamp
	Difficulty      database.Difficulty
	Signer          database.PublicKey
	Beneficiary     database.PublicKey
	TotalFee        database.Amount
	NumTransactions uint32
}

func (AccountKeyNotification) notification()      {}
func (SignatureNotification) notification()       {}
func (DeadlineNotification) notification()        {}
func (TransactionHashNotification) notification() {}
func (BalanceDebitNotification) notification()    {}
func (BalanceTransferNotification) notification() {}
func (BalanceCreditNotification) notification()   {}
func (TransactionFeeNotification) notification()  {}
func (BlockNotification) notification()           {}

// =============================================================================

// publisher produces the notifications of transactions and blocks.
type publisher struct {
	cfg     genesis.Config
	nemesis []genesis.Account
}

// publishTransaction returns the notifications of a transaction included in
// a block with the specified fee multiplier.
func (p publisher) publishTransaction(tx database.TransactionElement, multiplier database.FeeMultiplier) []Notification {
	fee := tx.Tx.Fee(multiplier)

	ns := []Notification{
		AccountKeyNotification{PublicKey: tx.Tx.SignerPublicKey},
		AccountKeyNotification{PublicKey: tx.Tx.RecipientPublicKey},
		SignatureNotification{Tx: tx.Tx},
		DeadlineNotification{Deadline: tx.Tx.Deadline},
		TransactionHashNotification{Hash: tx.EntityHash, Deadline: tx.Tx.Deadline},
	}

	debits := map[database.MosaicID]database.Amount{
		p.cfg.CurrencyMosaicID: fee,
	}
	debits[tx.Tx.MosaicID] += tx.Tx.Amount

	ids := []database.MosaicID{p.cfg.CurrencyMosaicID}
	if tx.Tx.MosaicID != p.cfg.CurrencyMosaicID {
		ids = append(ids, tx.Tx.MosaicID)
	}

	for _, id := range ids {
		ns = append(ns, BalanceDebitNotification{
			Account:  tx.Tx.SignerPublicKey,
			MosaicID: id,
			Amount:   debits[id],
		})
	}

	ns = append(ns,
		TransactionFeeNotification{Signer: tx.Tx.SignerPublicKey, Fee: fee},
		BalanceTransferNotification{
			Sender:    tx.Tx.SignerPublicKey,
			Recipient: tx.Tx.RecipientPublicKey,
			MosaicID:  tx.Tx.MosaicID,
			Amount:    tx.Tx.Amount,
		},
	)

	return ns
}

// publishBlock returns the notifications of the block itself. The nemesis
// block seeds the genesis balances.
func (p publisher) publishBlock(element database.BlockElement) []Notification {
	header := element.Block.Header

	var ns []Notification
	if header.Height == 1 {
		for _, account := range p.nemesis {
			ns = append(ns, AccountKeyNotification{PublicKey: account.PublicKey})
			for _, balance := range account.Balances {
				ns = append(ns, BalanceCreditNotification{
					Account:  account.PublicKey,
					MosaicID: balance.MosaicID,
					Amount:   balance.Amount,
				})
			}
		}
	}

	if !header.SignerPublicKey.IsZero() {
		ns = append(ns, AccountKeyNotification{PublicKey: header.SignerPublicKey})
	}
	if !header.BeneficiaryPublicKey.IsZero() && header.BeneficiaryPublicKey != header.SignerPublicKey {
		ns = append(ns, AccountKeyNotification{PublicKey: header.BeneficiaryPublicKey})
	}

	var totalFee database.Amount
	for _, tx := range element.Block.Transactions {
		totalFee += tx.Fee(header.FeeMultiplier)
	}

	ns = append(ns, BlockNotification{
		Height:          header.Height,
		Timestamp:       header.Timestamp,
		Difficulty:      header.Difficulty,
		Signer:          header.SignerPublicKey,
		Beneficiary:     header.BeneficiaryPublicKey,
		TotalFee:        totalFee,
		NumTransactions: uint32(len(element.Block.Transactions)),
	})

	return ns
}
