// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyOldest = "oldest"
	StrategyMinFee = "minfee"
	StrategyMaxFee = "maxfee"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyOldest: oldestSelect,
	StrategyMinFee: minFeeSelect,
	StrategyMaxFee: maxFeeSelect,
}

// Entry represents a pending transaction with the order it arrived in.
type Entry struct {
	Tx   database.SignedTx
	Hash database.Hash
	Seq  uint64
}

// FeePerByte returns the fee per byte the transaction is willing to pay.
func (e Entry) FeePerByte() database.Amount {
	return e.Tx.MaxFee / database.TxSize
}

// Func defines a function that takes a mempool of transactions grouped by
// signer and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST keep the arrival order of the
// transactions of one signer. Receiving -1 for howMany must return all the
// transactions in the strategies ordering.
type Func func(transactions map[database.PublicKey][]Entry, howMany int) []Entry

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// bySeq provides sorting support by the arrival order.
type bySeq []Entry

// Len returns the number of transactions in the list.
func (bs bySeq) Len() int {
	return len(bs)
}

// Less helps to sort the list by arrival in ascending order to keep the
// transactions in the right order of processing.
func (bs bySeq) Less(i, j int) bool {
	return bs[i].Seq < bs[j].Seq
}

// Swap moves transactions in the order of arrival.
func (bs bySeq) Swap(i, j int) {
	bs[i], bs[j] = bs[j], bs[i]
}

// =============================================================================

// byFee provides sorting support by the fee per byte, ties broken by
// arrival.
type byFee struct {
	entries    []Entry
	descending bool
}

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf.entries)
}

// Less orders the list by fee per byte in the configured direction.
func (bf byFee) Less(i, j int) bool {
	fi, fj := bf.entries[i].FeePerByte(), bf.entries[j].FeePerByte()
	if fi == fj {
		return bf.entries[i].Seq < bf.entries[j].Seq
	}
	if bf.descending {
		return fi > fj
	}
	return fi < fj
}

// Swap moves transactions in the order of the fee.
func (bf byFee) Swap(i, j int) {
	bf.entries[i], bf.entries[j] = bf.entries[j], bf.entries[i]
}
