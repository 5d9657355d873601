package database

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Hash represents a 32 byte entity, generation, or state hash.
type Hash = common.Hash

// ZeroHash represents a hash code of zeros.
var ZeroHash Hash

// =============================================================================

// Height represents the 1-based position of a block in the chain.
type Height uint64

// Next returns the height that follows this height.
func (h Height) Next() Height {
	return h + 1
}

// ImportanceHeight represents the height bucket used for importance snapshots.
type ImportanceHeight uint64

// ConvertToImportanceHeight maps a height to the first height of the
// importance grouping bucket it belongs to.
func ConvertToImportanceHeight(height Height, grouping uint64) ImportanceHeight {
	if height == 0 || grouping == 0 {
		return 0
	}

	return ImportanceHeight((uint64(height)-1)/grouping*grouping + 1)
}

// IsImportanceBoundary reports whether the height opens a new importance
// grouping bucket.
func IsImportanceBoundary(height Height, grouping uint64) bool {
	return ConvertToImportanceHeight(height, grouping) == ImportanceHeight(height)
}

// =============================================================================

// Timestamp represents the milliseconds elapsed since the network epoch.
type Timestamp uint64

// TimestampFromTime converts a wall clock time into a network timestamp
// relative to the specified epoch. Times before the epoch map to zero.
func TimestampFromTime(epoch time.Time, t time.Time) Timestamp {
	d := t.Sub(epoch)
	if d < 0 {
		return 0
	}

	return Timestamp(d.Milliseconds())
}

// Add returns the timestamp moved forward by the duration.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return ts + Timestamp(d.Milliseconds())
}

// SubSaturating returns the timestamp moved back by the duration, stopping
// at zero instead of wrapping around.
func (ts Timestamp) SubSaturating(d time.Duration) Timestamp {
	ms := Timestamp(d.Milliseconds())
	if ms > ts {
		return 0
	}

	return ts - ms
}

// Elapsed returns the signed time between the two timestamps.
func Elapsed(from Timestamp, to Timestamp) time.Duration {
	return time.Duration(int64(to)-int64(from)) * time.Millisecond
}

// =============================================================================

// Difficulty represents the consensus difficulty of a block.
type Difficulty uint64

// Set of difficulty bounds. The nemesis block is created with the base
// difficulty.
const (
	BaseDifficulty Difficulty = 100_000_000_000_000
	MinDifficulty  Difficulty = BaseDifficulty / 10
	MaxDifficulty  Difficulty = BaseDifficulty * 10
)

// Importance represents the harvesting weight of an account.
type Importance uint64

// Amount represents a quantity of a mosaic.
type Amount uint64

// MosaicID identifies a mosaic (token) tracked by account balances.
type MosaicID uint64

// FeeMultiplier represents the fee paid per byte of transaction data.
type FeeMultiplier uint32
