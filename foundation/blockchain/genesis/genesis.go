// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/validate"
)

// Balance represents an amount of a mosaic held by a seeded account.
type Balance struct {
	MosaicID database.MosaicID `json:"mosaic_id" validate:"required"`
	Amount   database.Amount   `json:"amount"`
}

// Account represents an account seeded by the nemesis block.
type Account struct {
	PublicKey database.PublicKey `json:"public_key"`
	Balances  []Balance          `json:"balances" validate:"required,dive"`
}

// Genesis represents the genesis file.
type Genesis struct {
	Date               time.Time     `json:"date" validate:"required"` // Epoch that block timestamps are measured from.
	ChainID            uint16        `json:"chain_id"`                 // The chain id represents an unique id for this running instance.
	GenerationHashSeed database.Hash `json:"generation_hash_seed"`     // Generation hash of the nemesis block.
	Config             Config        `json:"config"`
	Accounts           []Account     `json:"accounts" validate:"required,dive"`
}

// =============================================================================

// Load opens, consumes and validates the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis %s: %w", path, err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("validating genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Validate checks the genesis values and the chain configuration.
func (g Genesis) Validate() error {
	if err := validate.Check(g); err != nil {
		return err
	}

	if err := g.Config.Validate(); err != nil {
		return err
	}

	seen := make(map[database.PublicKey]struct{}, len(g.Accounts))
	for _, account := range g.Accounts {
		if account.PublicKey.IsZero() {
			return errors.New("seeded account is missing a public key")
		}
		if _, exists := seen[account.PublicKey]; exists {
			return fmt.Errorf("account %s is seeded more than once", account.PublicKey)
		}
		seen[account.PublicKey] = struct{}{}
	}

	return nil
}

// Timestamp converts the wall clock time into a network timestamp.
func (g Genesis) Timestamp(t time.Time) database.Timestamp {
	return database.TimestampFromTime(g.Date, t)
}

// Time converts a network timestamp into wall clock time.
func (g Genesis) Time(ts database.Timestamp) time.Time {
	return g.Date.Add(time.Duration(ts) * time.Millisecond)
}

// NemesisBlock returns the first block of the chain. The nemesis block
// carries no transactions and is not signed; its effects are the seeded
// account balances.
func (g Genesis) NemesisBlock() database.BlockElement {
	block := database.Block{
		Header: database.BlockHeader{
			Height:     1,
			Timestamp:  0,
			Difficulty: database.BaseDifficulty,
		},
	}

	return database.NewNemesisBlockElement(block, g.GenerationHashSeed)
}
