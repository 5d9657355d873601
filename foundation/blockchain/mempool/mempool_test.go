package mempool_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool/selector"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func tx(signer byte, amount database.Amount, feePerByte database.Amount, deadline database.Timestamp) database.SignedTx {
	return database.SignedTx{
		Tx: database.Tx{
			SignerPublicKey:    database.PublicKey{signer},
			RecipientPublicKey: database.PublicKey{0xff},
			Amount:             amount,
			MaxFee:             feePerByte * database.TxSize,
			Deadline:           deadline,
		},
	}
}

func TestCRUD(t *testing.T) {
	txs := []database.SignedTx{
		tx(1, 10, 20, 5000),
		tx(2, 50, 10, 5000),
		tx(3, 100, 30, 1000),
		tx(1, 15, 40, 5000),
	}

	t.Log("Given the need to validate mempool api.")
	{
		t.Logf("\tTest 0:\tWhen handling a set of transaction.")
		{
			mp, err := mempool.New()
			require.NoError(t, err, "Should be able to construct the mempool.")

			hashes := make([]database.Hash, len(txs))
			for i, tx := range txs {
				hashes[i] = mp.Upsert(tx)
				require.Equal(t, tx.Hash(), hashes[i])
			}
			require.Equal(t, len(txs), mp.Count())
			t.Logf("\t%s\tTest 0:\tShould be able to add new transactions.", success)

			mp.Upsert(txs[0])
			require.Equal(t, len(txs), mp.Count())
			require.Equal(t, txs, mp.PickBest(-1))
			t.Logf("\t%s\tTest 0:\tShould keep the arrival order for a replaced transaction.", success)

			require.Equal(t, txs[:2], mp.PickBest(2))
			t.Logf("\t%s\tTest 0:\tShould get back the oldest transactions.", success)

			mp.Delete(hashes[1])
			require.False(t, mp.Contains(hashes[1]))
			require.Equal(t, 3, mp.Count())
			t.Logf("\t%s\tTest 0:\tShould be able to remove a transaction.", success)

			removed := mp.DeleteBlock(database.Block{Transactions: []database.SignedTx{txs[0], txs[1]}})
			require.Equal(t, 1, removed)
			require.Equal(t, 2, mp.Count())
			t.Logf("\t%s\tTest 0:\tShould be able to remove the transactions of a block.", success)

			require.Equal(t, 0, mp.Expire(1000))
			require.Equal(t, 1, mp.Expire(1001))
			require.Equal(t, []database.SignedTx{txs[3]}, mp.PickBest(-1))
			t.Logf("\t%s\tTest 0:\tShould be able to expire transactions past the deadline.", success)

			mp.Truncate()
			require.Equal(t, 0, mp.Count())
			t.Logf("\t%s\tTest 0:\tShould be able to truncate mempool.", success)
		}
	}
}

func TestTransactionsInfo(t *testing.T) {
	t.Log("Given the need to supply transactions to a harvester.")
	{
		t.Logf("\tTest 0:\tWhen selecting transactions for a block.")
		{
			mp, err := mempool.NewWithStrategy(selector.StrategyMaxFee)
			require.NoError(t, err)

			info := mp.TransactionsInfo(1000, 10)
			require.Empty(t, info.Transactions)
			require.Equal(t, database.ZeroHash, info.TransactionsHash)
			t.Logf("\t%s\tTest 0:\tShould supply nothing from an empty pool.", success)

			expired := tx(1, 1, 100, 999)
			a := tx(2, 2, 30, 2000)
			b := tx(3, 3, 10, 2000)
			c := tx(4, 4, 20, 2000)
			for _, tx := range []database.SignedTx{expired, a, b, c} {
				mp.Upsert(tx)
			}

			info = mp.TransactionsInfo(1000, 2)
			require.Equal(t, 3, mp.Count())
			t.Logf("\t%s\tTest 0:\tShould drop the expired transactions.", success)

			require.Equal(t, []database.SignedTx{a, c}, info.Transactions)
			require.Equal(t, []database.Hash{a.Hash(), c.Hash()}, info.TransactionHashes)
			require.Equal(t, database.CalculateTransactionsHash(info.TransactionHashes), info.TransactionsHash)
			t.Logf("\t%s\tTest 0:\tShould select the transactions paying the most.", success)

			require.Equal(t, database.FeeMultiplier(20), info.FeeMultiplier)
			for _, tx := range info.Transactions {
				require.Equal(t, database.Amount(info.FeeMultiplier)*database.TxSize, tx.Fee(info.FeeMultiplier))
			}
			t.Logf("\t%s\tTest 0:\tShould use a fee multiplier every transaction can pay.", success)

			info = mp.TransactionsInfo(1000, 0)
			require.Empty(t, info.Transactions)
			require.Equal(t, 3, mp.Count())
			t.Logf("\t%s\tTest 0:\tShould supply nothing when no transactions are allowed.", success)
		}

		t.Logf("\tTest 1:\tWhen constructing with an unknown strategy.")
		{
			_, err := mempool.NewWithStrategy("tip")
			require.Error(t, err)
			t.Logf("\t%s\tTest 1:\tShould not be able to construct the mempool.", success)
		}
	}
}
