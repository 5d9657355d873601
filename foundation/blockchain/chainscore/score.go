// Package chainscore maintains the chain score used to compare competing
// chains and the hit and target functions that decide which account may
// harvest the next block.
package chainscore

import (
	"fmt"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/holiman/uint256"
)

// ChainScore represents the cumulative weight of a chain. The value is held
// in 256 bits so large difficulty sums never overflow and is exposed as a
// 128 bit value.
type ChainScore struct {
	v uint256.Int
}

// NewChainScore constructs a chain score from a 64 bit value.
func NewChainScore(value uint64) ChainScore {
	var s ChainScore
	s.v.SetUint64(value)
	return s
}

// FromUint128 constructs a chain score from its high and low words.
func FromUint128(hi uint64, lo uint64) ChainScore {
	var s ChainScore
	s.v[0] = lo
	s.v[1] = hi
	return s
}

// Uint128 returns the high and low words of the score.
func (s ChainScore) Uint128() (hi uint64, lo uint64) {
	return s.v[1], s.v[0]
}

// IsZero reports whether the score is zero.
func (s ChainScore) IsZero() bool {
	return s.v.IsZero()
}

// Add returns the sum of the two scores.
func (s ChainScore) Add(other ChainScore) ChainScore {
	var r ChainScore
	r.v.Add(&s.v, &other.v)
	return r
}

// Sub returns the difference of the two scores, stopping at zero.
func (s ChainScore) Sub(other ChainScore) ChainScore {
	var r ChainScore
	if s.v.Lt(&other.v) {
		return r
	}

	r.v.Sub(&s.v, &other.v)
	return r
}

// Cmp compares the two scores and returns -1, 0 or +1.
func (s ChainScore) Cmp(other ChainScore) int {
	return s.v.Cmp(&other.v)
}

// String returns the decimal form of the score.
func (s ChainScore) String() string {
	return s.v.Dec()
}

// MarshalText implements the TextMarshaler interface.
func (s ChainScore) MarshalText() ([]byte, error) {
	return []byte(s.v.Dec()), nil
}

// UnmarshalText implements the TextUnmarshaler interface.
func (s *ChainScore) UnmarshalText(text []byte) error {
	if err := s.v.SetFromDecimal(string(text)); err != nil {
		return fmt.Errorf("invalid chain score %q: %w", text, err)
	}

	return nil
}

// =============================================================================

// CalculateScore returns the score contributed by a block given the
// timestamp of its parent. The score is the block difficulty less the whole
// seconds elapsed since the parent. A block that does not follow its parent
// in time contributes nothing.
func CalculateScore(parentTimestamp database.Timestamp, timestamp database.Timestamp, difficulty database.Difficulty) uint64 {
	if timestamp <= parentTimestamp {
		return 0
	}

	elapsed := uint64(timestamp-parentTimestamp) / 1000
	if elapsed >= uint64(difficulty) {
		return 0
	}

	return uint64(difficulty) - elapsed
}

// =============================================================================

// Accumulator maintains the score of the chain as blocks are appended and
// removed.
type Accumulator struct {
	mu    sync.RWMutex
	score ChainScore
}

// NewAccumulator constructs an accumulator starting at the specified score.
func NewAccumulator(score ChainScore) *Accumulator {
	return &Accumulator{score: score}
}

// Apply folds the score of an appended block into the chain score.
func (a *Accumulator) Apply(delta uint64) ChainScore {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.score = a.score.Add(NewChainScore(delta))
	return a.score
}

// Revert removes the score of a rolled back block from the chain score.
func (a *Accumulator) Revert(delta uint64) ChainScore {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.score = a.score.Sub(NewChainScore(delta))
	return a.score
}

// Add folds a score calculated elsewhere, like a replayed range, into the
// chain score.
func (a *Accumulator) Add(score ChainScore) ChainScore {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.score = a.score.Add(score)
	return a.score
}

// Score returns the current chain score.
func (a *Accumulator) Score() ChainScore {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.score
}

// Reset sets the chain score.
func (a *Accumulator) Reset(score ChainScore) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.score = score
}
