package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrHashMismatch is returned when a stored block does not hash to the
// value recorded beside it.
var ErrHashMismatch = errors.New("block hash mismatch")

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Height               Height        `json:"height"`              // Position of the block in the chain.
	Timestamp            Timestamp     `json:"timestamp"`           // Milliseconds since the network epoch.
	Difficulty           Difficulty    `json:"difficulty"`          // Difficulty the block was harvested with.
	FeeMultiplier        FeeMultiplier `json:"fee_multiplier"`      // Fee per byte charged to the transactions.
	PreviousBlockHash    Hash          `json:"previous_block_hash"` // Entity hash of the parent block.
	TransactionsHash     Hash          `json:"transactions_hash"`   // Merkle root of the transaction hashes.
	ReceiptsHash         Hash          `json:"receipts_hash"`       // Merkle root of the receipts produced by execution.
	StateHash            Hash          `json:"state_hash"`          // State hash after execution.
	SignerPublicKey      PublicKey     `json:"signer"`              // Harvester that produced the block.
	BeneficiaryPublicKey PublicKey     `json:"beneficiary"`         // Account receiving the harvest fees.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header       BlockHeader
	Signature    hexutil.Bytes
	Transactions []SignedTx
}

// Hash returns the entity hash for the block. Only the header is hashed so
// the chain can be verified with headers alone.
func (b Block) Hash() Hash {
	return signature.Hash(b.Header)
}

// Sign uses the specified private key to sign the block header.
func (b *Block) Sign(privateKey *ecdsa.PrivateKey) error {
	if PublicKeyFromPrivate(privateKey) != b.Header.SignerPublicKey {
		return errors.New("private key does not match the block signer")
	}

	sig, err := signature.Sign(b.Header, privateKey)
	if err != nil {
		return err
	}

	b.Signature = sig
	return nil
}

// VerifySignature checks the block was signed by the declared signer.
func (b Block) VerifySignature() error {
	if err := signature.VerifySignature(b.Header, b.Signature, b.Header.SignerPublicKey[:]); err != nil {
		return fmt.Errorf("block %d: %w", b.Header.Height, err)
	}

	return nil
}

// TransactionHashes returns the entity hashes of the block's transactions.
func (b Block) TransactionHashes() []Hash {
	hashes := make([]Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}

	return hashes
}

// CalculateTransactionsHash returns the merkle root of the transaction hashes.
func CalculateTransactionsHash(hashes []Hash) Hash {
	return merkle.Root(hashes)
}

// =============================================================================

// TransactionElement pairs a transaction with its entity hash.
type TransactionElement struct {
	Tx         SignedTx
	EntityHash Hash
}

// BlockElement represents a block with the hashes calculated for it.
type BlockElement struct {
	Block          Block
	EntityHash     Hash
	GenerationHash Hash
	Transactions   []TransactionElement
}

// NewBlockElement calculates the hashes for the block. The generation hash
// chains the parent's generation hash with the block signer.
func NewBlockElement(block Block, parentGenerationHash Hash) BlockElement {
	return newBlockElement(block, signature.GenerationHash(parentGenerationHash, block.Header.SignerPublicKey[:]))
}

// NewNemesisBlockElement calculates the hashes for the nemesis block which
// uses the network generation hash seed directly.
func NewNemesisBlockElement(block Block, generationHashSeed Hash) BlockElement {
	return newBlockElement(block, generationHashSeed)
}

func newBlockElement(block Block, generationHash Hash) BlockElement {
	txs := make([]TransactionElement, len(block.Transactions))
	for i, tx := range block.Transactions {
		txs[i] = TransactionElement{
			Tx:         tx,
			EntityHash: tx.Hash(),
		}
	}

	return BlockElement{
		Block:          block,
		EntityHash:     block.Hash(),
		GenerationHash: generationHash,
		Transactions:   txs,
	}
}

// TransactionHashes returns the entity hashes of the element transactions.
func (be BlockElement) TransactionHashes() []Hash {
	hashes := make([]Hash, len(be.Transactions))
	for i, tx := range be.Transactions {
		hashes[i] = tx.EntityHash
	}

	return hashes
}

// =============================================================================

// BlockData represents what can be serialized to disk and over the network.
type BlockData struct {
	Hash           Hash          `json:"hash"`
	GenerationHash Hash          `json:"generation_hash"`
	Header         BlockHeader   `json:"block"`
	Signature      hexutil.Bytes `json:"signature"`
	Trans          []SignedTx    `json:"trans"`
}

// NewBlockData constructs block data from a block element.
func NewBlockData(element BlockElement) BlockData {
	return BlockData{
		Hash:           element.EntityHash,
		GenerationHash: element.GenerationHash,
		Header:         element.Block.Header,
		Signature:      element.Block.Signature,
		Trans:          element.Block.Transactions,
	}
}

// ToBlockElement converts a storage block into a block element, checking
// the stored hash still matches the block content.
func ToBlockElement(blockData BlockData) (BlockElement, error) {
	block := Block{
		Header:       blockData.Header,
		Signature:    blockData.Signature,
		Transactions: blockData.Trans,
	}

	element := newBlockElement(block, blockData.GenerationHash)
	if element.EntityHash != blockData.Hash {
		return BlockElement{}, fmt.Errorf("%w: height %d", ErrHashMismatch, blockData.Header.Height)
	}

	return element, nil
}
