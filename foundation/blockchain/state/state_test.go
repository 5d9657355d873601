package state_test

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/metrics"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	numAccounts = 3
	balance     = database.Amount(1_000_000_000)
	blockTime   = 15 * time.Second
)

type node struct {
	gen     genesis.Genesis
	keys    []*ecdsa.PrivateKey
	storage *storage.Memory
	dataDir string
	now     time.Time
}

func newNode(t *testing.T) *node {
	t.Helper()

	cfg := genesis.DefaultConfig()

	n := node{
		gen: genesis.Genesis{
			Date:               time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			GenerationHashSeed: crypto.Keccak256Hash([]byte("state")),
			Config:             cfg,
		},
		storage: storage.NewMemory(),
		dataDir: t.TempDir(),
	}
	n.now = n.gen.Date

	for i := 0; i < numAccounts; i++ {
		pk, err := crypto.GenerateKey()
		require.NoError(t, err)
		n.keys = append(n.keys, pk)

		n.gen.Accounts = append(n.gen.Accounts, genesis.Account{
			PublicKey: database.PublicKeyFromPrivate(pk),
			Balances:  []genesis.Balance{{MosaicID: cfg.CurrencyMosaicID, Amount: balance}},
		})
	}

	return &n
}

func (n *node) start(t *testing.T, dataDir string) *state.State {
	t.Helper()

	s, err := n.open(dataDir)
	require.NoError(t, err)

	return s
}

func (n *node) open(dataDir string) (*state.State, error) {
	return state.New(state.Config{
		Genesis: n.gen,
		Storage: n.storage,
		DataDir: dataDir,
		Metrics: metrics.New(),
		Clock:   func() time.Time { return n.now },
	})
}

func (n *node) key(i int) database.PublicKey {
	return database.PublicKeyFromPrivate(n.keys[i])
}

func (n *node) transfer(t *testing.T, from int, to int, amount database.Amount) database.SignedTx {
	t.Helper()

	return n.transferUntil(t, from, to, amount, n.gen.Timestamp(n.now.Add(time.Hour)))
}

func (n *node) transferUntil(t *testing.T, from int, to int, amount database.Amount, deadline database.Timestamp) database.SignedTx {
	t.Helper()

	tx := database.Tx{
		SignerPublicKey:    n.key(from),
		RecipientPublicKey: n.key(to),
		MosaicID:           n.gen.Config.CurrencyMosaicID,
		Amount:             amount,
		MaxFee:             10 * database.TxSize,
		Deadline:           deadline,
	}

	signedTx, err := tx.Sign(n.keys[from])
	require.NoError(t, err)

	return signedTx
}

// harvest moves the clock one block forward and harvests a block.
func (n *node) harvest(t *testing.T, s *state.State) {
	t.Helper()

	height := mustStatus(t, s).Height

	n.now = n.now.Add(blockTime)
	require.NoError(t, s.HarvestNextBlock())
	require.Equal(t, height+1, mustStatus(t, s).Height)
}

func mustStatus(t *testing.T, s *state.State) state.Status {
	t.Helper()

	status, err := s.QueryStatus()
	require.NoError(t, err)

	return status
}

func balanceOf(t *testing.T, s *state.State, publicKey database.PublicKey, mosaicID database.MosaicID) database.Amount {
	t.Helper()

	account, err := s.QueryAccount(publicKey)
	require.NoError(t, err)

	return account.Balance(mosaicID)
}

// =============================================================================

func Test_NewChain(t *testing.T) {
	t.Log("Given the need to start a node on empty storage.")
	{
		n := newNode(t)
		s := n.start(t, n.dataDir)

		status := mustStatus(t, s)
		require.Equal(t, database.Height(1), status.Height)
		require.True(t, status.ChainScore.IsZero())
		require.Equal(t, database.BaseDifficulty, status.NextDifficulty)
		require.True(t, status.HarvestingAllowed)
		t.Logf("\t%s\tShould start at the nemesis block.", success)

		height, err := n.storage.Height()
		require.NoError(t, err)
		require.Equal(t, database.Height(1), height)
		t.Logf("\t%s\tShould write the nemesis block to storage.", success)

		for i := range n.keys {
			require.Equal(t, balance, balanceOf(t, s, n.key(i), n.gen.Config.CurrencyMosaicID))
		}
		t.Logf("\t%s\tShould seed the nemesis balances.", success)

		_, err = s.QueryAccount(database.PublicKey{1})
		require.ErrorIs(t, err, state.ErrAccountNotFound)
		t.Logf("\t%s\tShould not find an unknown account.", success)

		require.NoError(t, s.HarvestNextBlock())
		require.Equal(t, database.Height(1), mustStatus(t, s).Height)
		t.Logf("\t%s\tShould not harvest without unlocked accounts.", success)
	}
}

func Test_HarvestTransactions(t *testing.T) {
	t.Log("Given the need to harvest blocks with transactions.")
	{
		n := newNode(t)
		s := n.start(t, n.dataDir)
		currency := n.gen.Config.CurrencyMosaicID

		_, err := s.UnlockAccount(n.keys[0])
		require.NoError(t, err)
		require.Equal(t, []database.PublicKey{n.key(0)}, s.QueryUnlockedAccounts())
		t.Logf("\t%s\tShould be able to unlock an account.", success)

		n.harvest(t, s)

		blocks, err := s.QueryBlocksByHeight(state.QueryLastest, state.QueryLastest)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		require.Equal(t, n.key(0), blocks[0].Block.Header.SignerPublicKey)
		require.NoError(t, blocks[0].Block.VerifySignature())

		exp := chainscore.CalculateScore(0, blocks[0].Block.Header.Timestamp, blocks[0].Block.Header.Difficulty)
		require.Equal(t, chainscore.NewChainScore(exp), s.QueryChainScore())
		t.Logf("\t%s\tShould harvest an empty block and add its score.", success)

		tx := n.transfer(t, 1, 2, 100)
		hash, err := s.UpsertWalletTransaction(tx)
		require.NoError(t, err)
		require.Equal(t, tx.Hash(), hash)
		require.Equal(t, 1, s.QueryMempoolLength())
		t.Logf("\t%s\tShould accept a wallet transaction.", success)

		n.harvest(t, s)

		blocks, err = s.QueryBlocksByHeight(3, 3)
		require.NoError(t, err)
		require.Equal(t, []database.SignedTx{tx}, blocks[0].Block.Transactions)
		require.Equal(t, database.FeeMultiplier(10), blocks[0].Block.Header.FeeMultiplier)
		require.Equal(t, 0, s.QueryMempoolLength())
		t.Logf("\t%s\tShould harvest the transaction and remove it from the mempool.", success)

		fee := database.Amount(10 * database.TxSize)
		require.Equal(t, balance-100-fee, balanceOf(t, s, n.key(1), currency))
		require.Equal(t, balance+100, balanceOf(t, s, n.key(2), currency))
		require.Equal(t, balance+fee, balanceOf(t, s, n.key(0), currency))
		t.Logf("\t%s\tShould move the amount and pay the fee to the harvester.", success)

		_, err = s.UpsertWalletTransaction(tx)
		require.ErrorIs(t, err, state.ErrTxConfirmed)
		t.Logf("\t%s\tShould reject a confirmed transaction.", success)

		blocks, err = s.QueryBlocksByAccount(n.key(2))
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		require.Equal(t, database.Height(3), blocks[0].Block.Header.Height)
		t.Logf("\t%s\tShould find the blocks of an account.", success)

		s.SetHarvestingAllowed(false)
		n.now = n.now.Add(blockTime)
		require.NoError(t, s.HarvestNextBlock())
		require.Equal(t, database.Height(3), mustStatus(t, s).Height)
		t.Logf("\t%s\tShould not harvest while harvesting is turned off.", success)

		locked, err := s.LockAccount(n.key(0))
		require.NoError(t, err)
		require.True(t, locked)
		require.Empty(t, s.QueryUnlockedAccounts())
		t.Logf("\t%s\tShould be able to lock an account.", success)
	}
}

func Test_InvalidTransactions(t *testing.T) {
	t.Log("Given the need to reject transactions a block can not include.")
	{
		n := newNode(t)
		s := n.start(t, "")

		tx := n.transfer(t, 1, 2, 100)
		tx.Amount = 200
		_, err := s.UpsertWalletTransaction(tx)
		require.Error(t, err)
		t.Logf("\t%s\tShould reject a transaction with a bad signature.", success)

		n.now = n.now.Add(2 * time.Hour)
		_, err = s.UpsertWalletTransaction(n.transfer(t, 1, 2, 100))
		require.NoError(t, err)

		tx = n.transfer(t, 1, 2, 50)
		n.now = n.now.Add(2 * time.Hour)
		_, err = s.UpsertWalletTransaction(tx)
		require.ErrorIs(t, err, state.ErrTxExpired)
		t.Logf("\t%s\tShould reject an expired transaction.", success)

		far := n.transferUntil(t, 1, 2, 50, n.gen.Timestamp(n.now.Add(7*time.Hour)))
		_, err = s.UpsertWalletTransaction(far)
		require.ErrorIs(t, err, state.ErrTxDeadline)
		t.Logf("\t%s\tShould reject a deadline beyond the transaction lifetime.", success)

		require.Equal(t, 1, s.QueryMempoolLength())
	}
}

func Test_ProcessInvalidBlock(t *testing.T) {
	t.Log("Given the need to reject blocks that do not follow the chain.")
	{
		n := newNode(t)
		s := n.start(t, "")

		nemesis, err := s.QueryBlocksByHeight(1, 1)
		require.NoError(t, err)

		header := database.BlockHeader{
			Height:            2,
			Timestamp:         15_000,
			Difficulty:        database.BaseDifficulty,
			PreviousBlockHash: nemesis[0].EntityHash,
			SignerPublicKey:   n.key(0),
		}

		tt := []struct {
			name      string
			signFirst bool
			modify    func(block *database.Block)
		}{
			{name: "height", modify: func(b *database.Block) { b.Header.Height = 3 }},
			{name: "previous", modify: func(b *database.Block) { b.Header.PreviousBlockHash = database.Hash{1} }},
			{name: "timestamp", modify: func(b *database.Block) { b.Header.Timestamp = 0 }},
			{name: "signature", signFirst: true, modify: func(b *database.Block) { b.Header.StateHash = database.Hash{1} }},
			{name: "transactions", modify: func(b *database.Block) { b.Transactions = []database.SignedTx{n.transfer(t, 1, 2, 1)} }},
			{name: "difficulty", modify: func(b *database.Block) { b.Header.Difficulty++ }},
		}

		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen the block has a bad %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					block := database.Block{Header: header}
					if tst.signFirst {
						require.NoError(t, block.Sign(n.keys[0]))
						tst.modify(&block)
					} else {
						tst.modify(&block)
						require.NoError(t, block.Sign(n.keys[0]))
					}

					err := s.ProcessBlock(block)
					require.ErrorIs(t, err, state.ErrInvalidBlock)
					require.Equal(t, database.Height(1), mustStatus(t, s).Height)
					t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Rollback(t *testing.T) {
	t.Log("Given the need to roll back harvested blocks.")
	{
		n := newNode(t)
		s := n.start(t, "")
		currency := n.gen.Config.CurrencyMosaicID

		nemesis := mustStatus(t, s)

		_, err := s.UnlockAccount(n.keys[0])
		require.NoError(t, err)

		n.harvest(t, s)
		tx := n.transfer(t, 1, 2, 100)
		_, err = s.UpsertWalletTransaction(tx)
		require.NoError(t, err)
		n.harvest(t, s)
		n.harvest(t, s)

		_, err = s.Rollback(4)
		require.Error(t, err)
		_, err = s.Rollback(0)
		require.Error(t, err)
		t.Logf("\t%s\tShould not roll back to the chain height or zero.", success)

		score := s.QueryChainScore()
		removed, err := s.Rollback(1)
		require.NoError(t, err)
		require.Equal(t, score, removed)
		t.Logf("\t%s\tShould return the score of the removed blocks.", success)

		status := mustStatus(t, s)
		require.Equal(t, database.Height(1), status.Height)
		require.True(t, status.ChainScore.IsZero())
		require.Equal(t, nemesis.StateHash, status.StateHash)
		require.Equal(t, balance, balanceOf(t, s, n.key(1), currency))
		t.Logf("\t%s\tShould restore the nemesis state.", success)

		require.Equal(t, []database.SignedTx{tx}, s.QueryMempool())
		t.Logf("\t%s\tShould return the transactions to the mempool.", success)

		n.harvest(t, s)
		blocks, err := s.QueryBlocksByHeight(2, 2)
		require.NoError(t, err)
		require.Equal(t, []database.SignedTx{tx}, blocks[0].Block.Transactions)
		t.Logf("\t%s\tShould harvest on top of the rolled back chain.", success)
	}
}

func Test_RollbackLimit(t *testing.T) {
	t.Log("Given the need to limit the depth of a rollback.")
	{
		n := newNode(t)
		n.gen.Config.MaxRollbackBlocks = 1
		s := n.start(t, "")

		_, err := s.UnlockAccount(n.keys[0])
		require.NoError(t, err)
		n.harvest(t, s)
		n.harvest(t, s)

		_, err = s.Rollback(1)
		require.ErrorIs(t, err, state.ErrRollbackLimit)
		t.Logf("\t%s\tShould not roll back more than the limit.", success)

		_, err = s.Rollback(2)
		require.NoError(t, err)
		t.Logf("\t%s\tShould roll back within the limit.", success)
	}
}

func Test_Restart(t *testing.T) {
	t.Log("Given the need to restart a node.")
	{
		n := newNode(t)
		s := n.start(t, n.dataDir)

		_, err := s.UnlockAccount(n.keys[0])
		require.NoError(t, err)
		n.harvest(t, s)
		_, err = s.UpsertWalletTransaction(n.transfer(t, 1, 2, 100))
		require.NoError(t, err)
		n.harvest(t, s)

		before := mustStatus(t, s)
		require.NoError(t, s.Shutdown())

		s = n.start(t, n.dataDir)
		after := mustStatus(t, s)
		require.Equal(t, before.Height, after.Height)
		require.Equal(t, before.ChainScore, after.ChainScore)
		require.Equal(t, before.StateHash, after.StateHash)
		require.Equal(t, []database.PublicKey{n.key(0)}, s.QueryUnlockedAccounts())
		t.Logf("\t%s\tShould load the saved state and unlocked accounts.", success)

		replayed := n.start(t, t.TempDir())
		status := mustStatus(t, replayed)
		require.Equal(t, before.Height, status.Height)
		require.Equal(t, before.ChainScore, status.ChainScore)
		require.Equal(t, before.StateHash, status.StateHash)
		t.Logf("\t%s\tShould rebuild the same state by replaying storage.", success)

		require.NoError(t, s.SaveState())
		n.harvest(t, s)

		_, err = n.open(n.dataDir)
		require.ErrorIs(t, err, state.ErrHeightMismatch)
		t.Logf("\t%s\tShould fail when the saved state is behind storage.", success)
	}
}

func Test_RestartPastWindow(t *testing.T) {
	t.Log("Given the need to restart a node whose chain is longer than the difficulty window.")
	{
		n := newNode(t)
		n.gen.Config.MaxDifficultyBlocks = 3
		s := n.start(t, n.dataDir)

		_, err := s.UnlockAccount(n.keys[0])
		require.NoError(t, err)
		for i := 0; i < 6; i++ {
			n.harvest(t, s)
		}

		before := mustStatus(t, s)
		require.Equal(t, database.Height(7), before.Height)
		require.NoError(t, s.Shutdown())

		s, err = n.open(n.dataDir)
		if err != nil {
			t.Fatalf("\t%s\tShould restart from the saved state: %v", failed, err)
		}
		t.Logf("\t%s\tShould restart from the saved state.", success)

		after := mustStatus(t, s)
		require.Equal(t, before.Height, after.Height)
		require.Equal(t, before.ChainScore, after.ChainScore)
		require.Equal(t, before.StateHash, after.StateHash)
		t.Logf("\t%s\tShould load the same state.", success)

		n.harvest(t, s)
		t.Logf("\t%s\tShould keep harvesting after the restart.", success)
	}
}
