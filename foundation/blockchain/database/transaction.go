package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxSize is the number of bytes a transfer transaction occupies when fees
// are calculated.
const TxSize = 168

// Tx is the transactional information between two parties.
type Tx struct {
	SignerPublicKey    PublicKey `json:"signer"`    // Account paying for the transfer and the fee.
	RecipientPublicKey PublicKey `json:"recipient"` // Account receiving the transfer.
	MosaicID           MosaicID  `json:"mosaic_id"` // Mosaic being transferred.
	Amount             Amount    `json:"amount"`    // Amount of the mosaic being transferred.
	MaxFee             Amount    `json:"max_fee"`   // Maximum fee the signer is willing to pay.
	Deadline           Timestamp `json:"deadline"`  // Transaction is invalid in blocks after this time.
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	if PublicKeyFromPrivate(privateKey) != tx.SignerPublicKey {
		return SignedTx{}, errors.New("private key does not match the transaction signer")
	}

	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx,
		Signature: sig,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain.
type SignedTx struct {
	Tx
	Signature hexutil.Bytes `json:"signature"`
}

// Validate verifies the transaction has a proper signature that conforms to
// our standards and was signed by the declared signer.
func (tx SignedTx) Validate() error {
	if tx.SignerPublicKey == tx.RecipientPublicKey {
		return errors.New("transaction invalid, sending money to yourself")
	}

	if err := signature.VerifySignature(tx.Tx, tx.Signature, tx.SignerPublicKey[:]); err != nil {
		return fmt.Errorf("transaction invalid: %w", err)
	}

	return nil
}

// Hash returns the entity hash of the transaction. The signature is not
// part of the hash.
func (tx SignedTx) Hash() Hash {
	return signature.Hash(tx.Tx)
}

// Fee returns the fee charged for the transaction when included in a block
// with the specified fee multiplier.
func (tx SignedTx) Fee(multiplier FeeMultiplier) Amount {
	fee := Amount(multiplier) * TxSize
	if fee > tx.MaxFee {
		return tx.MaxFee
	}

	return fee
}

// String implements the Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%s:%d", tx.SignerPublicKey, tx.RecipientPublicKey, tx.Amount)
}
