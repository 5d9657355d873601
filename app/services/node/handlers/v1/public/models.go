package public

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/nameservice"
)

type tx struct {
	Hash          database.Hash      `json:"hash"`
	Signer        database.PublicKey `json:"signer"`
	SignerName    string             `json:"signer_name"`
	Recipient     database.PublicKey `json:"recipient"`
	RecipientName string             `json:"recipient_name"`
	MosaicID      database.MosaicID  `json:"mosaic_id"`
	Amount        database.Amount    `json:"amount"`
	MaxFee        database.Amount    `json:"max_fee"`
	Deadline      database.Timestamp `json:"deadline"`
	Sig           string             `json:"sig"`
}

func toTx(ns *nameservice.NameService, signedTx database.SignedTx) tx {
	return tx{
		Hash:          signedTx.Hash(),
		Signer:        signedTx.SignerPublicKey,
		SignerName:    ns.Lookup(signedTx.SignerPublicKey),
		Recipient:     signedTx.RecipientPublicKey,
		RecipientName: ns.Lookup(signedTx.RecipientPublicKey),
		MosaicID:      signedTx.MosaicID,
		Amount:        signedTx.Amount,
		MaxFee:        signedTx.MaxFee,
		Deadline:      signedTx.Deadline,
		Sig:           signedTx.Signature.String(),
	}
}

type block struct {
	Hash              database.Hash          `json:"hash"`
	GenerationHash    database.Hash          `json:"generation_hash"`
	Height            database.Height        `json:"height"`
	Timestamp         database.Timestamp     `json:"timestamp"`
	Difficulty        database.Difficulty    `json:"difficulty"`
	FeeMultiplier     database.FeeMultiplier `json:"fee_multiplier"`
	PreviousBlockHash database.Hash          `json:"previous_block_hash"`
	StateHash         database.Hash          `json:"state_hash"`
	Signer            database.PublicKey     `json:"signer"`
	SignerName        string                 `json:"signer_name"`
	Beneficiary       database.PublicKey     `json:"beneficiary"`
	Transactions      []tx                   `json:"transactions"`
}

func toBlock(ns *nameservice.NameService, element database.BlockElement) block {
	trans := make([]tx, len(element.Block.Transactions))
	for i, signedTx := range element.Block.Transactions {
		trans[i] = toTx(ns, signedTx)
	}

	header := element.Block.Header
	return block{
		Hash:              element.EntityHash,
		GenerationHash:    element.GenerationHash,
		Height:            header.Height,
		Timestamp:         header.Timestamp,
		Difficulty:        header.Difficulty,
		FeeMultiplier:     header.FeeMultiplier,
		PreviousBlockHash: header.PreviousBlockHash,
		StateHash:         header.StateHash,
		Signer:            header.SignerPublicKey,
		SignerName:        ns.Lookup(header.SignerPublicKey),
		Beneficiary:       header.BeneficiaryPublicKey,
		Transactions:      trans,
	}
}

type balance struct {
	MosaicID database.MosaicID `json:"mosaic_id"`
	Amount   database.Amount   `json:"amount"`
}

type account struct {
	PublicKey  database.PublicKey  `json:"public_key"`
	Name       string              `json:"name"`
	Height     database.Height     `json:"height"`
	Balances   []balance           `json:"balances"`
	Importance database.Importance `json:"importance"`
}
