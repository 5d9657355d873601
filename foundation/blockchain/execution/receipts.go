package execution

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ReceiptType identifies what a receipt records.
type ReceiptType uint16

// Set of receipt types.
const (
	HarvestFeeReceipt ReceiptType = 0x2143
)

// Receipt records a balance change that is not visible from the block
// content alone.
type Receipt struct {
	Type     ReceiptType
	Account  database.PublicKey
	MosaicID database.MosaicID
	Amount   database.Amount
}

// Hash returns the hash of the canonical encoding of the receipt.
func (r Receipt) Hash() database.Hash {
	data, err := rlp.EncodeToBytes(r)
	if err != nil {
		panic(fmt.Sprintf("encoding receipt: %s", err))
	}

	return crypto.Keccak256Hash(data)
}

// Receipts collects the receipts produced while observing a block.
type Receipts struct {
	receipts []Receipt
}

// Add appends a receipt.
func (rs *Receipts) Add(r Receipt) {
	rs.receipts = append(rs.receipts, r)
}

// Len returns the number of receipts.
func (rs *Receipts) Len() int {
	return len(rs.receipts)
}

// Values returns a copy of the receipts.
func (rs *Receipts) Values() []Receipt {
	return append([]Receipt(nil), rs.receipts...)
}

// Hash returns the merkle root of the receipt hashes.
func (rs *Receipts) Hash() database.Hash {
	return merkle.NewTree(rs.receipts).MerkleRoot
}
