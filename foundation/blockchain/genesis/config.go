package genesis

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/validate"
)

// Duration wraps time.Duration so it can be written as "15s" in the
// genesis file.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalText implements the TextMarshaler interface.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements the TextUnmarshaler interface.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}

	*d = Duration(v)
	return nil
}

// =============================================================================

// Config represents the chain configuration consumed by consensus, replay
// and harvesting.
type Config struct {
	MaxDifficultyBlocks            uint64              `json:"max_difficulty_blocks" validate:"required,min=2"`       // Number of blocks the difficulty is calculated over.
	MaxRollbackBlocks              uint64              `json:"max_rollback_blocks"`                                   // Number of blocks that can be rolled back.
	BlockGenerationTargetTime      Duration            `json:"block_generation_target_time" validate:"gte=1000000"`   // Targeted time between blocks, at least a millisecond.
	BlockTimeSmoothingFactor       uint32              `json:"block_time_smoothing_factor"`                           // Smoothing factor in thousandths, zero disables it.
	ImportanceGrouping             uint64              `json:"importance_grouping" validate:"required"`               // Number of blocks that share an importance snapshot.
	MaxTransactionLifetime         Duration            `json:"max_transaction_lifetime" validate:"gte=1000000"`       // Maximum time a transaction can be pending.
	TotalChainImportance           database.Importance `json:"total_chain_importance" validate:"required"`            // Sum of the importances of all eligible accounts.
	MinHarvesterBalance            database.Amount     `json:"min_harvester_balance"`                                 // Harvesting mosaic balance required to harvest.
	MaxTransactionsPerBlock        uint32              `json:"max_transactions_per_block" validate:"required"`        // Maximum number of transactions in a block.
	MaxUnlockedAccounts            uint32              `json:"max_unlocked_accounts" validate:"required"`             // Maximum number of harvesting keys a node holds.
	ShouldEnableVerifiableState    bool                `json:"should_enable_verifiable_state"`                        // Blocks carry a state hash.
	ShouldEnableVerifiableReceipts bool                `json:"should_enable_verifiable_receipts"`                     // Blocks carry a receipts hash.
	CurrencyMosaicID               database.MosaicID   `json:"currency_mosaic_id" validate:"required"`                // Mosaic used to pay fees.
	HarvestingMosaicID             database.MosaicID   `json:"harvesting_mosaic_id" validate:"required"`              // Mosaic importance is calculated from.
}

// DefaultConfig returns a configuration usable for tests and local
// networks.
func DefaultConfig() Config {
	return Config{
		MaxDifficultyBlocks:            60,
		MaxRollbackBlocks:              40,
		BlockGenerationTargetTime:      Duration(15 * time.Second),
		BlockTimeSmoothingFactor:       3000,
		ImportanceGrouping:             180,
		MaxTransactionLifetime:         Duration(6 * time.Hour),
		TotalChainImportance:           8_999_999_998_000_000,
		MinHarvesterBalance:            500,
		MaxTransactionsPerBlock:        200,
		MaxUnlockedAccounts:            5,
		ShouldEnableVerifiableState:    true,
		ShouldEnableVerifiableReceipts: true,
		CurrencyMosaicID:               0x6BED913FA20223F8,
		HarvestingMosaicID:             0x6BED913FA20223F8,
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if err := validate.Check(c); err != nil {
		return err
	}

	if c.BlockGenerationTargetTime.D()%time.Millisecond != 0 {
		return errors.New("block generation target time must be a whole number of milliseconds")
	}

	return nil
}

// FullRollbackDuration returns the time it takes to produce the maximum
// number of blocks that can be rolled back.
func (c Config) FullRollbackDuration() time.Duration {
	return c.BlockGenerationTargetTime.D() * time.Duration(c.MaxRollbackBlocks)
}

// RollbackVariabilityBuffer returns the extra time kept on top of the full
// rollback duration to absorb block time variance.
func (c Config) RollbackVariabilityBuffer() time.Duration {
	return max(time.Hour, c.FullRollbackDuration()/4)
}

// TransactionCacheDuration returns how long transaction hashes must be
// remembered to reject duplicates.
func (c Config) TransactionCacheDuration() time.Duration {
	return max(c.MaxTransactionLifetime.D(), c.FullRollbackDuration()+c.RollbackVariabilityBuffer())
}

// ImportanceHeight returns the importance height for the specified height.
func (c Config) ImportanceHeight(height database.Height) database.ImportanceHeight {
	return database.ConvertToImportanceHeight(height, c.ImportanceGrouping)
}
