package chain_test

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/business/core/chain"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/loader"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// buildChain harvests blocks with a transfer in every other block and
// returns the storage and the node that wrote it.
func buildChain(t *testing.T, blocks int) (genesis.Genesis, *storage.Memory, *state.State) {
	t.Helper()

	cfg := genesis.DefaultConfig()
	gen := genesis.Genesis{
		Date:               time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		GenerationHashSeed: crypto.Keccak256Hash([]byte("chain")),
		Config:             cfg,
	}

	var keys []*ecdsa.PrivateKey
	for i := 0; i < 2; i++ {
		pk, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys = append(keys, pk)

		gen.Accounts = append(gen.Accounts, genesis.Account{
			PublicKey: database.PublicKeyFromPrivate(pk),
			Balances:  []genesis.Balance{{MosaicID: cfg.CurrencyMosaicID, Amount: 1_000_000_000}},
		})
	}

	now := gen.Date
	mem := storage.NewMemory()

	st, err := state.New(state.Config{
		Genesis: gen,
		Storage: mem,
		Clock:   func() time.Time { return now },
	})
	require.NoError(t, err)

	_, err = st.UnlockAccount(keys[0])
	require.NoError(t, err)

	for i := 0; i < blocks; i++ {
		now = now.Add(15 * time.Second)

		if i%2 == 0 {
			tx := database.Tx{
				SignerPublicKey:    database.PublicKeyFromPrivate(keys[1]),
				RecipientPublicKey: database.PublicKeyFromPrivate(keys[0]),
				MosaicID:           cfg.CurrencyMosaicID,
				Amount:             database.Amount(i + 1),
				MaxFee:             10 * database.TxSize,
				Deadline:           gen.Timestamp(now.Add(time.Hour)),
			}
			signedTx, err := tx.Sign(keys[1])
			require.NoError(t, err)

			_, err = st.UpsertWalletTransaction(signedTx)
			require.NoError(t, err)
		}

		require.NoError(t, st.HarvestNextBlock())
	}

	return gen, mem, st
}

func Test_Replay(t *testing.T) {
	t.Log("Given the need to replay a stored chain offline.")
	{
		gen, mem, st := buildChain(t, 6)

		status, err := st.QueryStatus()
		require.NoError(t, err)
		require.Equal(t, database.Height(7), status.Height)

		c, err := chain.Open(chain.Config{Genesis: gen, Storage: mem})
		require.NoError(t, err, "\t%s\tShould be able to open the stored chain.", failed)
		t.Logf("\t%s\tShould be able to open the stored chain.", success)

		var heights []database.Height
		r, err := c.Replay(0, func(status loader.Status) {
			heights = append(heights, status.Height)
		})
		require.NoError(t, err, "\t%s\tShould be able to replay the chain.", failed)
		require.Equal(t, []database.Height{2, 3, 4, 5, 6, 7}, heights)
		require.Equal(t, status.Height, r.Height)
		require.Equal(t, status.ChainScore, r.Score, "\t%s\tShould match the node chain score.", failed)
		require.Equal(t, status.StateHash, r.StateHash().StateHash, "\t%s\tShould match the node state hash.", failed)
		t.Logf("\t%s\tShould replay to the node score and state hash.", success)

		r, err = c.Replay(1, nil)
		require.NoError(t, err)
		require.True(t, r.Score.IsZero())
		t.Logf("\t%s\tShould replay only the nemesis block.", success)

		_, err = c.Replay(8, nil)
		require.ErrorIs(t, err, chain.ErrHeight, "\t%s\tShould not replay above the chain.", failed)
		t.Logf("\t%s\tShould not replay above the chain.", success)
	}
}

func Test_ExecutionHashes(t *testing.T) {
	t.Log("Given the need to recalculate the execution hashes of stored blocks.")
	{
		gen, mem, _ := buildChain(t, 4)

		c, err := chain.Open(chain.Config{Genesis: gen, Storage: mem})
		require.NoError(t, err)

		for height := database.Height(2); height <= c.Height(); height++ {
			hashes, element, err := c.ExecutionHashes(height)
			require.NoError(t, err, "\t%s\tShould calculate the hashes of block %d.", failed, height)
			require.True(t, hashes.IsExecutionSuccess)
			require.Equal(t, element.Block.Header.StateHash, hashes.StateHash, "\t%s\tShould match the state hash of block %d.", failed, height)
			require.Equal(t, element.Block.Header.ReceiptsHash, hashes.ReceiptsHash, "\t%s\tShould match the receipts hash of block %d.", failed, height)
			t.Logf("\t%s\tShould match the hashes of block %d.", success, height)
		}

		_, _, err = c.ExecutionHashes(1)
		require.ErrorIs(t, err, chain.ErrHeight, "\t%s\tShould not calculate the hashes of the nemesis block.", failed)
		t.Logf("\t%s\tShould not calculate the hashes of the nemesis block.", success)
	}
}

func Test_NextDifficulty(t *testing.T) {
	t.Log("Given the need to calculate the next difficulty of a stored chain.")
	{
		gen, mem, st := buildChain(t, 3)

		status, err := st.QueryStatus()
		require.NoError(t, err)

		c, err := chain.Open(chain.Config{Genesis: gen, Storage: mem})
		require.NoError(t, err)

		diff, err := c.NextDifficulty(0)
		require.NoError(t, err)
		require.Equal(t, status.NextDifficulty, diff, "\t%s\tShould match the node next difficulty.", failed)
		t.Logf("\t%s\tShould match the node next difficulty.", success)

		diff, err = c.NextDifficulty(1)
		require.NoError(t, err)
		require.Equal(t, database.BaseDifficulty, diff, "\t%s\tShould use the base difficulty after the nemesis block.", failed)
		t.Logf("\t%s\tShould use the base difficulty after the nemesis block.", success)
	}
}

func Test_OpenEmpty(t *testing.T) {
	t.Log("Given the need to reject empty storage.")
	{
		gen, _, _ := buildChain(t, 0)

		_, err := chain.Open(chain.Config{Genesis: gen, Storage: storage.NewMemory()})
		require.ErrorIs(t, err, database.ErrEmptyChain, "\t%s\tShould reject empty storage.", failed)
		t.Logf("\t%s\tShould reject empty storage.", success)
	}
}
