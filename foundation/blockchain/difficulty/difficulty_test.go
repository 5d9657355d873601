package difficulty_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func constantSpacing(target time.Duration, spacing database.Timestamp) database.Difficulty {
	var infos []difficulty.Info
	for i := database.Timestamp(0); i < 10; i++ {
		infos = append(infos, difficulty.Info{
			Height:     database.Height(100 + i),
			Timestamp:  12345 + i*spacing,
			Difficulty: database.BaseDifficulty,
		})
	}

	return difficulty.Calculate(infos, target)
}

func Test_Calculate(t *testing.T) {
	t.Log("Given the need to calculate the next difficulty.")
	{
		t.Logf("\tTest 0:\tWhen there are not enough samples.")
		{
			require.Equal(t, database.BaseDifficulty, difficulty.Calculate(nil, time.Minute))
			require.Equal(t, database.BaseDifficulty, difficulty.Calculate([]difficulty.Info{{Height: 100, Timestamp: 10, Difficulty: 75_000_000_000_000}}, time.Minute))
			t.Logf("\t%s\tShould get the base difficulty.", success)
		}

		t.Logf("\tTest 1:\tWhen blocks are spaced evenly.")
		{
			require.Equal(t, database.BaseDifficulty, constantSpacing(75*time.Second, 75_000))
			t.Logf("\t%s\tShould not change the difficulty on target.", success)

			require.Less(t, database.BaseDifficulty, constantSpacing(75*time.Second, 74_000))
			t.Logf("\t%s\tShould increase the difficulty when blocks are fast.", success)

			require.Greater(t, database.BaseDifficulty, constantSpacing(75*time.Second, 76_000))
			t.Logf("\t%s\tShould decrease the difficulty when blocks are slow.", success)
		}
	}
}

func Test_PercentageChange(t *testing.T) {
	type table struct {
		name    string
		target  time.Duration
		spacing database.Timestamp
		exp     int
	}

	tt := []table{
		{name: "fast", target: time.Minute, spacing: 2_000, exp: 5},
		{name: "slow", target: time.Minute, spacing: 248_000, exp: -5},
	}

	t.Log("Given the need to limit how fast the difficulty changes.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				infos := []difficulty.Info{
					{Height: 100, Timestamp: 100, Difficulty: database.BaseDifficulty},
					{Height: 101, Timestamp: 100 + tst.spacing, Difficulty: database.BaseDifficulty},
				}

				previous := database.BaseDifficulty
				for i := 2; i < 102; i++ {
					d := difficulty.Calculate(infos, tst.target)
					if d == database.MinDifficulty || d == database.MaxDifficulty {
						require.LessOrEqual(t, 40, i)
						break
					}

					change := (float64(d) - float64(previous)) * 100 / float64(previous)
					if got := int(math.Round(change)); got != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould change by %d%% at sample %d: got %d%%", failed, testID, tst.exp, i, got)
					}

					infos = append(infos, difficulty.Info{
						Height:     database.Height(100 + i),
						Timestamp:  100 + tst.spacing*database.Timestamp(i),
						Difficulty: d,
					})
					previous = d
				}
				t.Logf("\t%s\tTest %d:\tShould change by %d%% per block until clamped.", success, testID, tst.exp)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Bounds(t *testing.T) {
	type table struct {
		name    string
		start   database.Difficulty
		spacing database.Timestamp
	}

	tt := []table{
		{name: "max", start: database.MaxDifficulty, spacing: 2_000},
		{name: "min", start: database.MinDifficulty, spacing: 120_000},
	}

	t.Log("Given the need to keep the difficulty inside its bounds.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				infos := []difficulty.Info{
					{Height: 100, Timestamp: 100, Difficulty: tst.start},
					{Height: 101, Timestamp: 100 + tst.spacing, Difficulty: tst.start},
				}

				for i := 2; i < 102; i++ {
					d := difficulty.Calculate(infos, time.Minute)
					require.Equal(t, tst.start, d)

					infos = append(infos, difficulty.Info{
						Height:     database.Height(100 + i),
						Timestamp:  100 + tst.spacing*database.Timestamp(i),
						Difficulty: d,
					})
				}
				t.Logf("\t%s\tTest %d:\tShould stay at the %s difficulty.", success, testID, tst.name)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_History(t *testing.T) {
	t.Log("Given the need to maintain a window of difficulty samples.")
	{
		t.Logf("\tTest 0:\tWhen inserting more samples than the capacity.")
		{
			h := difficulty.NewHistory(5)
			for i := database.Height(1); i <= 20; i++ {
				require.NoError(t, h.Insert(difficulty.Info{Height: i, Timestamp: database.Timestamp(i) * 1000, Difficulty: database.BaseDifficulty}))
			}

			infos := h.Range()
			require.Len(t, infos, 6)
			require.Equal(t, database.Height(1), infos[0].Height)
			require.Equal(t, database.Height(16), infos[1].Height)
			require.Equal(t, database.Height(20), infos[5].Height)
			t.Logf("\t%s\tShould keep the nemesis sample and the newest samples.", success)

			require.True(t, h.Contains(1))
			require.False(t, h.Contains(15))
			require.True(t, h.Contains(18))
			t.Logf("\t%s\tShould only contain the retained heights.", success)
		}

		t.Logf("\tTest 1:\tWhen inserting out of order.")
		{
			h := difficulty.NewHistory(5)
			require.NoError(t, h.Insert(difficulty.Info{Height: 10}))

			err := h.Insert(difficulty.Info{Height: 12})
			require.True(t, errors.Is(err, difficulty.ErrOutOfOrder))

			err = h.Insert(difficulty.Info{Height: 10})
			require.True(t, errors.Is(err, difficulty.ErrOutOfOrder))
			t.Logf("\t%s\tShould reject heights that do not follow the newest sample.", success)
		}

		t.Logf("\tTest 2:\tWhen removing and refilling samples.")
		{
			h := difficulty.NewHistory(3)
			for i := database.Height(1); i <= 6; i++ {
				require.NoError(t, h.Insert(difficulty.Info{Height: i}))
			}

			clone := h.Clone()

			info, err := h.RemoveNewest()
			require.NoError(t, err)
			require.Equal(t, database.Height(6), info.Height)
			require.False(t, h.Contains(6))
			require.True(t, clone.Contains(6))
			t.Logf("\t%s\tShould remove the newest sample without touching clones.", success)

			require.NoError(t, h.Prepend(difficulty.Info{Height: 3}))
			require.Equal(t, []database.Height{1, 3, 4, 5}, heights(h.Range()))
			t.Logf("\t%s\tShould refill the window from the old end.", success)

			require.NoError(t, h.Prepend(difficulty.Info{Height: 2}))
			require.Equal(t, []database.Height{1, 3, 4, 5}, heights(h.Range()))
			t.Logf("\t%s\tShould ignore samples beyond the capacity.", success)

			_, err = h.Infos(6, 3)
			require.True(t, errors.Is(err, difficulty.ErrNotFound))

			infos, err := h.Infos(5, 2)
			require.NoError(t, err)
			require.Equal(t, []database.Height{4, 5}, heights(infos))
			t.Logf("\t%s\tShould select the samples ending at a height.", success)
		}

		t.Logf("\tTest 3:\tWhen calculating at a height.")
		{
			cfg := genesis.DefaultConfig()
			h := difficulty.NewHistory(cfg.MaxDifficultyBlocks)
			require.NoError(t, h.Insert(difficulty.Info{Height: 1, Difficulty: database.BaseDifficulty}))

			_, ok := difficulty.CalculateAt(h, 2, cfg)
			require.False(t, ok)

			d, ok := difficulty.CalculateAt(h, 1, cfg)
			require.True(t, ok)
			require.Equal(t, database.BaseDifficulty, d)
			t.Logf("\t%s\tShould only calculate for heights in the history.", success)
		}

		t.Logf("\tTest 4:\tWhen rebuilding a history from its range.")
		{
			h := difficulty.NewHistory(3)
			for i := database.Height(1); i <= 6; i++ {
				require.NoError(t, h.Insert(difficulty.Info{Height: i, Timestamp: database.Timestamp(i) * 1000}))
			}
			require.Equal(t, []database.Height{1, 4, 5, 6}, heights(h.Range()))

			rebuilt, err := difficulty.NewHistoryFrom(3, h.Range())
			require.NoError(t, err)
			require.Equal(t, h.Range(), rebuilt.Range())
			require.NoError(t, rebuilt.Insert(difficulty.Info{Height: 7}))
			require.Equal(t, []database.Height{1, 5, 6, 7}, heights(rebuilt.Range()))
			t.Logf("\t%s\tShould restore the nemesis sample and the gap after it.", success)

			rebuilt, err = difficulty.NewHistoryFrom(2, h.Range())
			require.NoError(t, err)
			require.Equal(t, []database.Height{1, 5, 6}, heights(rebuilt.Range()))
			t.Logf("\t%s\tShould keep only the newest samples.", success)

			tail, err := difficulty.NewHistoryFrom(3, []difficulty.Info{{Height: 8}, {Height: 9}})
			require.NoError(t, err)
			require.Equal(t, []database.Height{8, 9}, heights(tail.Range()))
			t.Logf("\t%s\tShould accept a window without the nemesis sample.", success)

			_, err = difficulty.NewHistoryFrom(3, []difficulty.Info{{Height: 1}, {Height: 4}, {Height: 6}})
			require.True(t, errors.Is(err, difficulty.ErrOutOfOrder))

			_, err = difficulty.NewHistoryFrom(3, []difficulty.Info{{Height: 4}, {Height: 1}})
			require.True(t, errors.Is(err, difficulty.ErrOutOfOrder))
			t.Logf("\t%s\tShould reject gaps inside the window.", success)
		}
	}
}

func heights(infos []difficulty.Info) []database.Height {
	hs := make([]database.Height, len(infos))
	for i, info := range infos {
		hs[i] = info.Height
	}
	return hs
}
