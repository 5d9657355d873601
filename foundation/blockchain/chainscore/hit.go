package chainscore

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/holiman/uint256"
)

const (
	two54 = float64(1 << 54)
	two64 = 18446744073709551616.0

	// maxSmoothing caps the multiplier applied when blocks are slow.
	maxSmoothing = 100.0
)

// CalculateHit derives the hit of a generation hash. The first 8 bytes of
// the hash are read as a big endian fraction of 2^64 and mapped through the
// natural log so hits are exponentially distributed.
func CalculateHit(generationHash database.Hash) uint64 {
	value := binary.BigEndian.Uint64(generationHash[:8])
	if value == 0 {
		return math.MaxUint64
	}

	temp := math.Abs(math.Log(float64(value) / two64))
	return uint64(temp * two54)
}

// CalculateTarget returns the target an account's hit must fall below. The
// target grows with the elapsed time and the account importance and shrinks
// with the difficulty.
func CalculateTarget(elapsed time.Duration, difficulty database.Difficulty, importance database.Importance, cfg genesis.Config) *uint256.Int {
	target := new(uint256.Int)
	if importance == 0 || elapsed.Milliseconds() <= 0 || difficulty == 0 {
		return target
	}

	seconds := uint64(elapsed / time.Second)

	target.SetUint64(seconds)
	target.Mul(target, new(uint256.Int).SetUint64(uint64(importance)))
	target.Mul(target, multiplier(seconds, cfg))
	target.Div(target, new(uint256.Int).SetUint64(uint64(difficulty)))

	return target
}

// multiplier returns 2^64 scaled by the smoothing applied for the elapsed
// seconds.
func multiplier(seconds uint64, cfg genesis.Config) *uint256.Int {
	if cfg.BlockTimeSmoothingFactor == 0 {
		return new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	}

	targetSeconds := int64(cfg.BlockGenerationTargetTime.D() / time.Second)
	if targetSeconds == 0 {
		targetSeconds = 1
	}

	power := float64(cfg.BlockTimeSmoothingFactor) / 1000 * float64(int64(seconds)-targetSeconds) / float64(targetSeconds)
	smoothing := min(math.Exp(power), maxSmoothing)

	m := uint256.NewInt(uint64(two54 * smoothing))
	return m.Lsh(m, 10)
}

// =============================================================================

// ImportanceLookup returns the importance of an account at a height.
type ImportanceLookup func(publicKey database.PublicKey, height database.Height) database.Importance

// HitContext represents the values tested for one account.
type HitContext struct {
	GenerationHash database.Hash
	ElapsedTime    time.Duration
	Signer         database.PublicKey
	Difficulty     database.Difficulty
	Height         database.Height
}

// HitPredicate decides whether an account is eligible to produce a block.
type HitPredicate struct {
	cfg    genesis.Config
	lookup ImportanceLookup
}

// NewHitPredicate constructs a predicate using the importance lookup.
func NewHitPredicate(cfg genesis.Config, lookup ImportanceLookup) HitPredicate {
	return HitPredicate{
		cfg:    cfg,
		lookup: lookup,
	}
}

// IsHit reports whether the hit derived from the context is below the
// target of the signer.
func (p HitPredicate) IsHit(ctx HitContext) bool {
	importance := p.lookup(ctx.Signer, ctx.Height)

	hit := uint256.NewInt(CalculateHit(ctx.GenerationHash))
	target := CalculateTarget(ctx.ElapsedTime, ctx.Difficulty, importance, p.cfg)

	return hit.Lt(target)
}

// IsBlockHit reports whether the block header is a hit given its parent.
func (p HitPredicate) IsBlockHit(parent database.BlockHeader, current database.BlockHeader, generationHash database.Hash) bool {
	ctx := HitContext{
		GenerationHash: generationHash,
		ElapsedTime:    database.Elapsed(parent.Timestamp, current.Timestamp),
		Signer:         current.SignerPublicKey,
		Difficulty:     current.Difficulty,
		Height:         current.Height,
	}

	return p.IsHit(ctx)
}
