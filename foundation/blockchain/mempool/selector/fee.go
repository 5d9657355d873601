package selector

import (
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// oldestSelect returns the transactions in the order they arrived.
var oldestSelect = func(m map[database.PublicKey][]Entry, howMany int) []Entry {
	var all []Entry
	for _, entries := range m {
		all = append(all, entries...)
	}

	sort.Sort(bySeq(all))

	if howMany >= 0 && len(all) > howMany {
		all = all[:howMany]
	}

	return all
}

// maxFeeSelect returns the transactions paying the most per byte while
// keeping the order of each signer.
var maxFeeSelect = func(m map[database.PublicKey][]Entry, howMany int) []Entry {
	return feeSelect(m, howMany, true)
}

// minFeeSelect returns the transactions paying the least per byte while
// keeping the order of each signer. Blocks built from them charge the
// lowest fee multiplier.
var minFeeSelect = func(m map[database.PublicKey][]Entry, howMany int) []Entry {
	return feeSelect(m, howMany, false)
}

func feeSelect(m map[database.PublicKey][]Entry, howMany int, descending bool) []Entry {

	/*
		Bill: {Seq: 5, MaxFee: 250},
			  {Seq: 1, MaxFee: 150},
		Pavl: {Seq: 6, MaxFee: 200},
			  {Seq: 2, MaxFee: 75},
		Edua: {Seq: 4, MaxFee: 75},
			  {Seq: 3, MaxFee: 100},
	*/

	// Sort the transactions per signer by arrival.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(bySeq(m[key]))
		}
	}

	/*
		Bill: {Seq: 1, MaxFee: 150},
		      {Seq: 5, MaxFee: 250},
		Pavl: {Seq: 2, MaxFee: 75},
		      {Seq: 6, MaxFee: 200},
		Edua: {Seq: 3, MaxFee: 100},
		      {Seq: 4, MaxFee: 75},
	*/

	// Pick the first transaction in the slice for each signer. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// transactions have been selected.
	var rows [][]Entry
	for {
		var row []Entry
		for key := range m {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		sort.Sort(bySeq(row))
		rows = append(rows, row)
	}

	/*
		0: Bill: {Seq: 1, MaxFee: 150},
		0: Pavl: {Seq: 2, MaxFee: 75},
		0: Edua: {Seq: 3, MaxFee: 100},
		1: Edua: {Seq: 4, MaxFee: 75},
		1: Bill: {Seq: 5, MaxFee: 250},
		1: Pavl: {Seq: 6, MaxFee: 200},
	*/

	// Sort each row by fee unless we will take all transactions from that
	// row anyway. Then try to select the number of requested transactions.
	// Keep pulling transactions from each row until the amount is fulfilled
	// or there are no more transactions.
	final := []Entry{}
done:
	for _, row := range rows {
		need := howMany - len(final)
		if howMany >= 0 && len(row) > need {
			sort.Sort(byFee{entries: row, descending: descending})
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	/*
		maxfee, howMany 4:
		0: Bill: {Seq: 1, MaxFee: 150},
		1: Pavl: {Seq: 2, MaxFee: 75},
		2: Edua: {Seq: 3, MaxFee: 100},
		3: Bill: {Seq: 5, MaxFee: 250},
	*/

	return final
}
