// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/execution"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/harvesting"
	"github.com/ardanlabs/ledger/foundation/blockchain/loader"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/ledger/foundation/metrics"
	"go.uber.org/multierr"
)

// ErrHeightMismatch is returned when the persisted state was saved at a
// different height than the chain in storage. The node can not start until
// the state directory is removed or the storage is restored.
var ErrHeightMismatch = errors.New("state height does not match storage height")

// harvestersDir is the directory under the data directory the unlocked
// harvesting keys are kept in.
const harvestersDir = "harvesters"

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for harvesting.
type Worker interface {
	Shutdown()
	SignalHarvest()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis        genesis.Genesis
	Storage        database.Storage
	DataDir        string
	SelectStrategy string
	Beneficiary    database.PublicKey
	Metrics        *metrics.Metrics
	EvHandler      EventHandler
	Clock          func() time.Time
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	genesis   genesis.Genesis
	dataDir   string
	evHandler EventHandler
	clock     func() time.Time
	metrics   *metrics.Metrics

	db       *database.Database
	cache    *cache.Cache
	executor *execution.Executor
	score    *chainscore.Accumulator
	mempool  *mempool.Mempool
	unlocked *harvesting.UnlockedAccounts
	keyStore *harvesting.KeyStore
	task     *harvesting.ScheduledHarvesterTask

	harvestingAllowed atomic.Bool

	Worker Worker
}

// New constructs a new blockchain for data management. The nemesis block is
// written when the storage is empty. The state cache is loaded from the data
// directory when it was saved there, otherwise it is rebuilt by replaying
// every stored block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("validating genesis: %w", err)
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = selector.StrategyOldest
	}

	// Construct a mempool with the specified select strategy.
	mp, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	// Access the storage for the blockchain.
	db, err := database.New(cfg.Storage)
	if err != nil {
		return nil, err
	}

	if db.ChainHeight() == 0 {
		ev("state: New: writing nemesis block")
		if err := db.SaveBlock(cfg.Genesis.NemesisBlock()); err != nil {
			return nil, fmt.Errorf("writing nemesis block: %w", err)
		}
	}

	s := State{
		genesis:   cfg.Genesis,
		dataDir:   cfg.DataDir,
		evHandler: ev,
		clock:     clock,
		metrics:   cfg.Metrics,
		db:        db,
		executor:  execution.New(cfg.Genesis),
		mempool:   mp,
		unlocked:  harvesting.NewUnlockedAccounts(int(cfg.Genesis.Config.MaxUnlockedAccounts)),
	}

	if err := s.loadCache(); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.loadHarvesters(); err != nil {
		db.Close()
		return nil, err
	}

	harvester := harvesting.New(harvesting.Config{
		Cache:            s.cache,
		Accounts:         s.unlocked,
		Beneficiary:      cfg.Beneficiary,
		TransactionsInfo: s.mempool.TransactionsInfo,
		ExecutionHashes:  harvesting.NewExecutionHashesSupplier(s.executor, s.cache),
		EvHandler:        ev,
	})

	s.task = harvesting.NewScheduledHarvesterTask(harvesting.ScheduledHarvesterTaskOptions{
		HarvestingAllowed:        s.harvestingAllowed.Load,
		LastBlockElementSupplier: s.db.LastBlockElement,
		TimeSupplier:             s.now,
		BlockConsumer:            s.consumeHarvestedBlock,
	}, harvester)

	s.harvestingAllowed.Store(true)
	s.recordChain()

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &s, nil
}

// Shutdown cleanly brings the node down. The state cache is saved so the
// next start does not need to replay the chain.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return multierr.Combine(
		s.SaveState(),
		s.db.Close(),
	)
}

// SaveState writes the state cache and chain score to the data directory.
func (s *State) SaveState() error {
	if s.dataDir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.cache.CreateView()
	hi, lo := s.score.Score().Uint128()

	s.evHandler("state: SaveState: saving state at height %d", view.Height())

	if err := cache.Save(s.dataDir, view, cache.Supplemental{ScoreHigh: hi, ScoreLow: lo}); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	return nil
}

// =============================================================================

// loadCache restores the saved state or rebuilds it from storage.
func (s *State) loadCache() error {
	chainHeight := s.db.ChainHeight()

	if s.dataDir != "" && cache.HasState(s.dataDir) {
		s.evHandler("state: loadCache: loading saved state")

		c, sup, err := cache.Load(s.dataDir, s.genesis.Config)
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}

		if c.Height() != chainHeight {
			return fmt.Errorf("%w: state %d, storage %d", ErrHeightMismatch, c.Height(), chainHeight)
		}

		s.cache = c
		s.score = chainscore.NewAccumulator(chainscore.FromUint128(sup.ScoreHigh, sup.ScoreLow))

		return nil
	}

	s.evHandler("state: loadCache: replaying %d blocks", chainHeight)

	last, err := s.db.LastBlockElement()
	if err != nil {
		return err
	}

	s.cache = cache.New(s.genesis.Config)
	factory := loader.NewInflectionPointObserverFactory(
		last.Block.Header,
		s.genesis.Config,
		s.executor.Observer(execution.Permanent),
		s.executor.Observer(execution.Transient),
	)

	nemesis, err := s.db.LoadBlockElement(1)
	if err != nil {
		return err
	}

	delta, err := s.cache.CreateDelta()
	if err != nil {
		return err
	}

	if _, err := s.executor.ExecuteBlock(nemesis, delta, factory(nemesis.Block)); err != nil {
		delta.Discard()
		return fmt.Errorf("executing nemesis block: %w", err)
	}

	if err := delta.Commit(1); err != nil {
		delta.Discard()
		return err
	}

	status := func(status loader.Status) {
		s.metrics.BlockReplayed()
		s.evHandler("state: loadCache: loaded block %d: score %s", status.Height, status.ChainScore)
	}

	lds := loader.State{
		Executor: s.executor,
		Storage:  s.db,
		Cache:    s.cache,
	}

	score, err := loader.LoadBlockChain(factory, lds, 2, status)
	if err != nil {
		return err
	}

	s.score = chainscore.NewAccumulator(score)

	return nil
}

// loadHarvesters unlocks the harvesting keys saved in the data directory.
func (s *State) loadHarvesters() error {
	if s.dataDir == "" {
		return nil
	}

	ks, err := harvesting.NewKeyStore(filepath.Join(s.dataDir, harvestersDir))
	if err != nil {
		return err
	}
	s.keyStore = ks

	accounts, err := ks.Load()
	if err != nil {
		return err
	}

	modifier := s.unlocked.Modifier()
	for _, account := range accounts {
		if err := modifier.Add(account); err != nil {
			return fmt.Errorf("unlocking %s: %w", account.PublicKey, err)
		}
		s.evHandler("state: loadHarvesters: unlocked account %s", account.PublicKey)
	}

	return nil
}

// now returns the current network time.
func (s *State) now() database.Timestamp {
	return s.genesis.Timestamp(s.clock())
}

// recordChain updates the chain metrics.
func (s *State) recordChain() {
	hi, lo := s.score.Score().Uint128()
	s.metrics.SetChain(uint64(s.db.ChainHeight()), float64(hi)*(1<<64)+float64(lo))
	s.metrics.SetMempoolSize(s.mempool.Count())
}
