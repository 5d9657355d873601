// Package mempool maintains the mempool for the blockchain. Harvesters pull
// the transactions for the next block from here.
package mempool

import (
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/harvesting"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool/selector"
)

// Mempool represents a cache of transactions keyed by entity hash.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[database.Hash]selector.Entry
	seq      uint64
	selectFn selector.Func
}

// New constructs a new mempool using the default oldest select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyOldest)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[database.Hash]selector.Entry),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether a transaction with the hash is in the pool.
func (mp *Mempool) Contains(hash database.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[hash]
	return exists
}

// Upsert adds or replaces a transaction from the mempool. A replaced
// transaction keeps its place in the arrival order.
func (mp *Mempool) Upsert(tx database.SignedTx) database.Hash {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	hash := tx.Hash()

	entry, exists := mp.pool[hash]
	if !exists {
		mp.seq++
		entry.Seq = mp.seq
		entry.Hash = hash
	}
	entry.Tx = tx

	mp.pool[hash] = entry

	return hash
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(hash database.Hash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, hash)
}

// DeleteBlock removes all the transactions included in the block.
func (mp *Mempool) DeleteBlock(block database.Block) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for _, tx := range block.Transactions {
		hash := tx.Hash()
		if _, exists := mp.pool[hash]; exists {
			delete(mp.pool, hash)
			removed++
		}
	}

	return removed
}

// Expire removes all the transactions with a deadline before the timestamp.
func (mp *Mempool) Expire(timestamp database.Timestamp) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.expire(timestamp)
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[database.Hash]selector.Entry)
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	entries := mp.pickBest(howMany)

	txs := make([]database.SignedTx, len(entries))
	for i, entry := range entries {
		txs[i] = entry.Tx
	}

	return txs
}

// TransactionsInfo drops the transactions expired at the timestamp and
// selects up to max of the remaining ones for a block harvested at that
// time. The fee multiplier is the highest one every selected transaction
// can pay.
func (mp *Mempool) TransactionsInfo(timestamp database.Timestamp, max uint32) harvesting.TransactionsInfo {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.expire(timestamp)

	if max == 0 {
		return harvesting.EmptyTransactionsInfo(timestamp, max)
	}

	entries := mp.pickBest(int(max))
	if len(entries) == 0 {
		return harvesting.EmptyTransactionsInfo(timestamp, max)
	}

	info := harvesting.TransactionsInfo{
		Transactions:      make([]database.SignedTx, len(entries)),
		TransactionHashes: make([]database.Hash, len(entries)),
		FeeMultiplier:     database.FeeMultiplier(entries[0].FeePerByte()),
	}

	for i, entry := range entries {
		info.Transactions[i] = entry.Tx
		info.TransactionHashes[i] = entry.Hash

		if fm := database.FeeMultiplier(entry.FeePerByte()); fm < info.FeeMultiplier {
			info.FeeMultiplier = fm
		}
	}

	info.TransactionsHash = database.CalculateTransactionsHash(info.TransactionHashes)

	return info
}

// =============================================================================

func (mp *Mempool) expire(timestamp database.Timestamp) int {
	var removed int
	for hash, entry := range mp.pool {
		if entry.Tx.Deadline < timestamp {
			delete(mp.pool, hash)
			removed++
		}
	}

	return removed
}

func (mp *Mempool) pickBest(howMany int) []selector.Entry {
	m := make(map[database.PublicKey][]selector.Entry)
	for _, entry := range mp.pool {
		key := entry.Tx.SignerPublicKey
		m[key] = append(m[key], entry)
	}

	return mp.selectFn(m, howMany)
}
