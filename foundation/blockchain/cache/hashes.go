package cache

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// hashMap holds the transaction hashes of a committed generation keyed to
// the transaction deadline.
type hashMap map[database.Hash]database.Timestamp

// HashesView provides read access to the transaction hashes of a committed
// generation.
type HashesView struct {
	hashes hashMap
}

// Contains reports whether the transaction hash is known.
func (v HashesView) Contains(hash database.Hash) bool {
	_, exists := v.hashes[hash]
	return exists
}

// Len returns the number of known transaction hashes.
func (v HashesView) Len() int {
	return len(v.hashes)
}

// =============================================================================

// HashesDelta provides read and write access to the transaction hashes on
// top of a committed generation.
type HashesDelta struct {
	base    hashMap
	added   hashMap
	removed map[database.Hash]struct{}
}

func newHashesDelta(base hashMap) *HashesDelta {
	return &HashesDelta{
		base:    base,
		added:   make(hashMap),
		removed: make(map[database.Hash]struct{}),
	}
}

// Contains reports whether the transaction hash is known.
func (d *HashesDelta) Contains(hash database.Hash) bool {
	if _, exists := d.added[hash]; exists {
		return true
	}

	if _, exists := d.removed[hash]; exists {
		return false
	}

	_, exists := d.base[hash]
	return exists
}

// Insert records the transaction hash until its deadline passes.
func (d *HashesDelta) Insert(hash database.Hash, deadline database.Timestamp) {
	delete(d.removed, hash)
	d.added[hash] = deadline
}

// Remove forgets the transaction hash.
func (d *HashesDelta) Remove(hash database.Hash) {
	delete(d.added, hash)
	if _, exists := d.base[hash]; exists {
		d.removed[hash] = struct{}{}
	}
}

// Prune forgets the transaction hashes with deadlines before the timestamp
// and returns how many were removed.
func (d *HashesDelta) Prune(before database.Timestamp) int {
	var pruned int
	for hash, deadline := range d.added {
		if deadline < before {
			delete(d.added, hash)
			pruned++
		}
	}

	for hash, deadline := range d.base {
		if _, exists := d.removed[hash]; exists {
			continue
		}
		if deadline < before {
			d.removed[hash] = struct{}{}
			pruned++
		}
	}

	return pruned
}

// Len returns the number of known transaction hashes.
func (d *HashesDelta) Len() int {
	n := len(d.base) - len(d.removed)
	for hash := range d.added {
		if _, inBase := d.base[hash]; !inBase {
			n++
		} else if _, removed := d.removed[hash]; removed {
			n++
		}
	}

	return n
}

// merge returns the hashes of the next generation.
func (d *HashesDelta) merge() hashMap {
	hashes := make(hashMap, len(d.base)+len(d.added))
	for hash, deadline := range d.base {
		if _, exists := d.removed[hash]; exists {
			continue
		}
		hashes[hash] = deadline
	}

	for hash, deadline := range d.added {
		hashes[hash] = deadline
	}

	return hashes
}
