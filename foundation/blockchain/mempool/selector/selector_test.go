package selector_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool/selector"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	pavel = database.PublicKey{1}
	bill  = database.PublicKey{2}
	ed    = database.PublicKey{3}
)

func entry(seq uint64, signer database.PublicKey, feePerByte database.Amount) selector.Entry {
	return selector.Entry{
		Tx: database.SignedTx{
			Tx: database.Tx{
				SignerPublicKey: signer,
				MaxFee:          feePerByte * database.TxSize,
			},
		},
		Seq: seq,
	}
}

// pool returns the transactions of three signers arriving interleaved.
//
//	Pavel: 1(25) 4(75) 7(50)
//	Bill:  2(10) 5(5)  8(75)
//	Ed:    3(5)  6(50) 9(25)
func pool() map[database.PublicKey][]selector.Entry {
	return map[database.PublicKey][]selector.Entry{
		pavel: {entry(7, pavel, 50), entry(1, pavel, 25), entry(4, pavel, 75)},
		bill:  {entry(2, bill, 10), entry(8, bill, 75), entry(5, bill, 5)},
		ed:    {entry(3, ed, 5), entry(6, ed, 50), entry(9, ed, 25)},
	}
}

func TestSelect(t *testing.T) {
	type test struct {
		name     string
		strategy string
		howMany  int
		best     []uint64
	}

	tt := []test{
		{name: "oldest first four", strategy: selector.StrategyOldest, howMany: 4, best: []uint64{1, 2, 3, 4}},
		{name: "oldest all", strategy: selector.StrategyOldest, howMany: -1, best: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{name: "oldest none", strategy: selector.StrategyOldest, howMany: 0, best: []uint64{}},
		{name: "maxfee one from second cycle", strategy: selector.StrategyMaxFee, howMany: 4, best: []uint64{1, 2, 3, 4}},
		{name: "maxfee two from second cycle", strategy: selector.StrategyMaxFee, howMany: 5, best: []uint64{1, 2, 3, 4, 6}},
		{name: "maxfee first two", strategy: selector.StrategyMaxFee, howMany: 2, best: []uint64{1, 2}},
		{name: "maxfee take all", strategy: selector.StrategyMaxFee, howMany: 15, best: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{name: "minfee one from second cycle", strategy: selector.StrategyMinFee, howMany: 4, best: []uint64{1, 2, 3, 5}},
		{name: "minfee first two", strategy: selector.StrategyMinFee, howMany: 2, best: []uint64{3, 2}},
		{name: "minfee all", strategy: selector.StrategyMinFee, howMany: -1, best: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}},
	}

	t.Log("Given the need to pick best transactions from mempool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction with %s.", testID, tst.strategy)
			{
				f := func(t *testing.T) {
					fn, err := selector.Retrieve(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get select strategy function: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to get select strategy function.", success, testID)

					entries := fn(pool(), tst.howMany)
					if len(entries) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get back %d transactions, got %d.", failed, testID, len(tst.best), len(entries))
					}
					t.Logf("\t%s\tTest %d:\tShould get back %d transactions.", success, testID, len(tst.best))

					for i, e := range entries {
						if e.Seq != tst.best[i] {
							t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, e.Seq)
							t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.best[i])
							t.Fatalf("\t%s\tTest %d:\tShould get back the right transaction at position %d.", failed, testID, i)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right transactions in order.", success, testID)

					seen := make(map[database.PublicKey]uint64)
					for _, e := range entries {
						if last, exists := seen[e.Tx.SignerPublicKey]; exists && last > e.Seq {
							t.Fatalf("\t%s\tTest %d:\tShould keep the arrival order of each signer.", failed, testID)
						}
						seen[e.Tx.SignerPublicKey] = e.Seq
					}
					t.Logf("\t%s\tTest %d:\tShould keep the arrival order of each signer.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestRetrieveUnknown(t *testing.T) {
	t.Log("Given the need to reject unknown select strategies.")
	{
		if _, err := selector.Retrieve("tip"); err == nil {
			t.Fatalf("\t%s\tShould not be able to retrieve an unknown strategy.", failed)
		}
		t.Logf("\t%s\tShould not be able to retrieve an unknown strategy.", success)
	}
}
