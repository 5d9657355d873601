package genesis_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/validate"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newGenesis(t *testing.T) genesis.Genesis {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := genesis.DefaultConfig()

	return genesis.Genesis{
		Date:               time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:            1,
		GenerationHashSeed: crypto.Keccak256Hash([]byte("seed")),
		Config:             cfg,
		Accounts: []genesis.Account{
			{
				PublicKey: database.PublicKeyFromPrivate(pk),
				Balances:  []genesis.Balance{{MosaicID: cfg.CurrencyMosaicID, Amount: 1_000_000}},
			},
		},
	}
}

func Test_Load(t *testing.T) {
	t.Log("Given the need to load the genesis file.")
	{
		t.Logf("\tTest 0:\tWhen the file is valid.")
		{
			gen := newGenesis(t)

			data, err := json.MarshalIndent(gen, "", "  ")
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "genesis.json")
			require.NoError(t, os.WriteFile(path, data, 0600))

			got, err := genesis.Load(path)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to load the genesis file: %v", failed, err)
			}
			t.Logf("\t%s\tShould be able to load the genesis file.", success)

			require.Equal(t, gen.Config, got.Config)
			require.Equal(t, gen.Accounts, got.Accounts)
			require.True(t, gen.Date.Equal(got.Date))
			t.Logf("\t%s\tShould get back the same values.", success)

			nemesis := got.NemesisBlock()
			require.Equal(t, database.Height(1), nemesis.Block.Header.Height)
			require.Equal(t, gen.GenerationHashSeed, nemesis.GenerationHash)
			require.Equal(t, database.BaseDifficulty, nemesis.Block.Header.Difficulty)
			t.Logf("\t%s\tShould build the nemesis block from the seed.", success)
		}

		t.Logf("\tTest 1:\tWhen the configuration is missing values.")
		{
			gen := newGenesis(t)
			gen.Config.ImportanceGrouping = 0
			gen.Config.MaxDifficultyBlocks = 1

			err := gen.Validate()
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tShould get field errors: %v", failed, err)
			}

			fields := validate.GetFieldErrors(err).Fields()
			require.Contains(t, fields, "importance_grouping")
			require.Contains(t, fields, "max_difficulty_blocks")
			t.Logf("\t%s\tShould get field errors naming the bad values.", success)
		}

		t.Logf("\tTest 2:\tWhen an account is seeded twice.")
		{
			gen := newGenesis(t)
			gen.Accounts = append(gen.Accounts, gen.Accounts[0])

			if err := gen.Validate(); err == nil {
				t.Fatalf("\t%s\tShould reject the duplicate account.", failed)
			}
			t.Logf("\t%s\tShould reject the duplicate account.", success)
		}
	}
}

func Test_TransactionCacheDuration(t *testing.T) {
	type table struct {
		name      string
		lifetime  time.Duration
		target    time.Duration
		rollbacks uint64
		exp       time.Duration
	}

	tt := []table{
		{name: "hour buffer", lifetime: time.Hour, target: 2 * time.Second, rollbacks: 22, exp: time.Hour + 44*time.Second},
		{name: "quarter buffer", lifetime: time.Hour, target: 15 * time.Second, rollbacks: 1000, exp: 15000*time.Second + 15000*time.Second/4},
		{name: "lifetime wins", lifetime: 24 * time.Hour, target: 2 * time.Second, rollbacks: 22, exp: 24 * time.Hour},
	}

	t.Log("Given the need to know how long transaction hashes are cached.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				cfg := genesis.DefaultConfig()
				cfg.MaxTransactionLifetime = genesis.Duration(tst.lifetime)
				cfg.BlockGenerationTargetTime = genesis.Duration(tst.target)
				cfg.MaxRollbackBlocks = tst.rollbacks

				got := cfg.TransactionCacheDuration()
				if got != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould get %v: got %v", failed, testID, tst.exp, got)
				}
				t.Logf("\t%s\tTest %d:\tShould get %v.", success, testID, tst.exp)
			}

			t.Run(tst.name, f)
		}
	}
}
