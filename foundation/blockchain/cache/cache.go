// Package cache provides the versioned state store the chain is executed
// against. Committed generations are immutable snapshots that can be read
// concurrently through views. Changes are made through a delta that
// produces the next generation when committed.
package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
)

// Set of errors returned by the cache.
var (
	ErrDeltaInUse    = errors.New("a delta is already open")
	ErrDeltaClosed   = errors.New("delta was already committed or discarded")
	ErrDetached      = errors.New("detached delta can not be committed")
	ErrStaleDelta    = errors.New("delta is based on an old generation")
	ErrInvalidCommit = errors.New("invalid commit height")
)

// generation represents one committed version of the state.
type generation struct {
	height           database.Height
	importanceHeight database.ImportanceHeight
	accounts         accountMap
	history          *difficulty.History
	hashes           hashMap
}

// =============================================================================

// Cache manages the committed generations of the state.
type Cache struct {
	mu        sync.RWMutex
	cfg       genesis.Config
	gen       *generation
	deltaOpen bool
}

// New constructs an empty cache at height zero.
func New(cfg genesis.Config) *Cache {
	gen := generation{
		accounts: make(accountMap),
		history:  difficulty.NewHistory(cfg.MaxDifficultyBlocks),
		hashes:   make(hashMap),
	}

	return &Cache{
		cfg: cfg,
		gen: &gen,
	}
}

// Config returns the chain configuration the cache was created with.
func (c *Cache) Config() genesis.Config {
	return c.cfg
}

// Height returns the height of the committed generation.
func (c *Cache) Height() database.Height {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.gen.height
}

// CreateView returns a read only view of the committed generation.
func (c *Cache) CreateView() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return View{gen: c.gen}
}

// CreateDelta opens the exclusive delta used to produce the next
// generation. Only one delta can be open at a time.
func (c *Cache) CreateDelta() (*Delta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deltaOpen {
		return nil, ErrDeltaInUse
	}
	c.deltaOpen = true

	return newDelta(c, c.gen, c.cfg), nil
}

// CreateDetachedDelta opens a disposable delta over the committed
// generation. Detached deltas never change the cache and any number of them
// can be open at once.
func (c *Cache) CreateDetachedDelta() *Delta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return newDelta(nil, c.gen, c.cfg)
}

// =============================================================================

// View provides read access to one committed generation.
type View struct {
	gen *generation
}

// Height returns the height of the generation.
func (v View) Height() database.Height {
	return v.gen.height
}

// ImportanceHeight returns the importance height of the last importance
// recalculation.
func (v View) ImportanceHeight() database.ImportanceHeight {
	return v.gen.importanceHeight
}

// Accounts returns the accounts of the generation.
func (v View) Accounts() AccountsView {
	return AccountsView{accounts: v.gen.accounts}
}

// Difficulty returns a copy of the difficulty history of the generation.
func (v View) Difficulty() *difficulty.History {
	return v.gen.history.Clone()
}

// Hashes returns the transaction hashes of the generation.
func (v View) Hashes() HashesView {
	return HashesView{hashes: v.gen.hashes}
}

// CalculateStateHash returns the state hash of the generation.
func (v View) CalculateStateHash() StateHashInfo {
	return newStateHashInfo(v.Accounts().Root())
}

// =============================================================================

// Delta represents changes on top of a committed generation. A delta must
// not be used after it is committed or discarded.
type Delta struct {
	cache            *Cache
	cfg              genesis.Config
	base             *generation
	importanceHeight database.ImportanceHeight
	accounts         *AccountsDelta
	history          *difficulty.History
	hashes           *HashesDelta
	closed           bool
}

func newDelta(c *Cache, base *generation, cfg genesis.Config) *Delta {
	return &Delta{
		cache:            c,
		cfg:              cfg,
		base:             base,
		importanceHeight: base.importanceHeight,
		accounts:         newAccountsDelta(base.accounts),
		history:          base.history.Clone(),
		hashes:           newHashesDelta(base.hashes),
	}
}

// Height returns the height of the generation the delta is based on.
func (d *Delta) Height() database.Height {
	return d.base.height
}

// IsDetached reports whether the delta can never be committed.
func (d *Delta) IsDetached() bool {
	return d.cache == nil
}

// Accounts returns the accounts of the delta.
func (d *Delta) Accounts() *AccountsDelta {
	return d.accounts
}

// Difficulty returns the difficulty history of the delta.
func (d *Delta) Difficulty() *difficulty.History {
	return d.history
}

// Hashes returns the transaction hashes of the delta.
func (d *Delta) Hashes() *HashesDelta {
	return d.hashes
}

// ImportanceHeight returns the importance height of the last importance
// recalculation.
func (d *Delta) ImportanceHeight() database.ImportanceHeight {
	return d.importanceHeight
}

// SetImportanceHeight records the importance height of the last importance
// recalculation.
func (d *Delta) SetImportanceHeight(height database.ImportanceHeight) {
	d.importanceHeight = height
}

// RecalculateImportances brings the importances up to date for harvesting
// the block after the specified height. Importances are recalculated when
// that block opens a new importance grouping. It reports whether a
// recalculation happened.
func (d *Delta) RecalculateImportances(height database.Height) bool {
	cfg := d.cfg
	importanceHeight := cfg.ImportanceHeight(height.Next())
	if importanceHeight == d.importanceHeight {
		return false
	}

	d.accounts.RecalculateImportances(importanceHeight, cfg.HarvestingMosaicID, cfg.MinHarvesterBalance, cfg.TotalChainImportance)
	d.importanceHeight = importanceHeight

	return true
}

// RestoreImportances undoes the recalculation made when the block at the
// specified height was committed. It reports whether a recalculation was
// undone.
func (d *Delta) RestoreImportances(height database.Height) bool {
	cfg := d.cfg
	importanceHeight := cfg.ImportanceHeight(height.Next())
	previous := cfg.ImportanceHeight(height)
	if importanceHeight != d.importanceHeight || importanceHeight == previous {
		return false
	}

	d.accounts.RestoreImportances(importanceHeight)
	d.importanceHeight = previous

	return true
}

// CalculateStateHash returns the state hash of the delta at the height. The
// importances are brought up to date for the height first.
func (d *Delta) CalculateStateHash(height database.Height) StateHashInfo {
	d.RecalculateImportances(height)

	return newStateHashInfo(d.accounts.Root())
}

// Commit produces the generation at the specified height from the delta. A
// commit that fails drops the delta so a new one can be created.
func (d *Delta) Commit(height database.Height) error {
	if d.cache == nil {
		return ErrDetached
	}

	c := d.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if d.closed {
		return ErrDeltaClosed
	}

	if c.gen != d.base {
		d.release()
		return ErrStaleDelta
	}

	if height == 0 {
		d.release()
		return fmt.Errorf("%w: %d", ErrInvalidCommit, height)
	}

	c.gen = &generation{
		height:           height,
		importanceHeight: d.importanceHeight,
		accounts:         d.accounts.merge(),
		history:          d.history.Clone(),
		hashes:           d.hashes.merge(),
	}

	d.release()

	return nil
}

// Discard drops the changes of the delta.
func (d *Delta) Discard() {
	if d.cache == nil {
		d.closed = true
		return
	}

	c := d.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if d.closed {
		return
	}

	d.release()
}

// release closes the delta and frees the cache for the next delta. The cache
// lock must be held.
func (d *Delta) release() {
	d.closed = true
	d.cache.deltaOpen = false
}

// =============================================================================

// StateHashInfo represents the state hash and the roots it was built from.
type StateHashInfo struct {
	StateHash           database.Hash
	SubCacheMerkleRoots []database.Hash
}

func newStateHashInfo(roots ...database.Hash) StateHashInfo {
	return StateHashInfo{
		StateHash:           merkle.Root(roots),
		SubCacheMerkleRoots: roots,
	}
}
