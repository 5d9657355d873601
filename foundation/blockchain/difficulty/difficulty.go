package difficulty

import (
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/holiman/uint256"
)

// Calculate returns the difficulty of the block following the samples. The
// average difficulty of the samples is scaled by the ratio of the targeted
// to the observed block time. The result changes at most 5% from the newest
// sample and is clamped to the difficulty bounds.
func Calculate(infos []Info, targetTime time.Duration) database.Difficulty {
	if len(infos) < 2 {
		return database.BaseDifficulty
	}

	first := infos[0]
	last := infos[len(infos)-1]

	heightDiff := uint64(last.Height - first.Height)
	timeDiff := uint64(1)
	if last.Timestamp > first.Timestamp {
		timeDiff = uint64(last.Timestamp - first.Timestamp)
	}

	sum := new(uint256.Int)
	for _, info := range infos {
		sum.Add(sum, uint256.NewInt(uint64(info.Difficulty)))
	}

	d := new(uint256.Int).Div(sum, uint256.NewInt(uint64(len(infos))))
	d.Mul(d, uint256.NewInt(uint64(targetTime.Milliseconds())))
	d.Mul(d, uint256.NewInt(heightDiff))
	d.Div(d, uint256.NewInt(timeDiff))

	return clamp(d, last.Difficulty)
}

// CalculateAt returns the difficulty of the block following the specified
// height using the samples of the history. It returns false when the history
// has no sample for the height.
func CalculateAt(history *History, height database.Height, cfg genesis.Config) (database.Difficulty, bool) {
	infos, err := history.Infos(height, cfg.MaxDifficultyBlocks)
	if err != nil {
		return 0, false
	}

	return Calculate(infos, cfg.BlockGenerationTargetTime.D()), true
}

// =============================================================================

// clamp limits the change from the previous difficulty to 5% and then to the
// difficulty bounds.
func clamp(d *uint256.Int, previous database.Difficulty) database.Difficulty {
	prev := uint256.NewInt(uint64(previous))

	prev19 := new(uint256.Int).Mul(prev, uint256.NewInt(19))
	prev21 := new(uint256.Int).Mul(prev, uint256.NewInt(21))
	d20 := new(uint256.Int).Mul(d, uint256.NewInt(20))

	switch {
	case prev19.Gt(d20):
		d = prev19.Div(prev19, uint256.NewInt(20))
	case prev21.Lt(d20):
		d = prev21.Div(prev21, uint256.NewInt(20))
	}

	switch {
	case d.Lt(uint256.NewInt(uint64(database.MinDifficulty))):
		return database.MinDifficulty
	case d.Gt(uint256.NewInt(uint64(database.MaxDifficulty))):
		return database.MaxDifficulty
	}

	return database.Difficulty(d.Uint64())
}
