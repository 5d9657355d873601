// Package chain provides offline access to a stored chain for operator
// tooling. The stored blocks are replayed into a new state cache without
// starting a node.
package chain

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/execution"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/loader"
)

// ErrHeight is returned when a height is outside of the stored chain.
var ErrHeight = errors.New("height is outside of the stored chain")

// EventHandler defines a function that is called as blocks are replayed.
type EventHandler func(v string, args ...any)

// Config represents what is needed to open a stored chain.
type Config struct {
	Genesis   genesis.Genesis
	Storage   database.Storage
	EvHandler EventHandler
}

// Chain provides replay based queries over a stored chain.
type Chain struct {
	genesis   genesis.Genesis
	db        *database.Database
	executor  *execution.Executor
	evHandler EventHandler
}

// Open validates the genesis and opens the storage. The storage must hold
// at least the nemesis block. The storage is left open on error.
func Open(cfg Config) (*Chain, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("validating genesis: %w", err)
	}

	db, err := database.New(cfg.Storage)
	if err != nil {
		return nil, err
	}

	if db.ChainHeight() == 0 {
		return nil, database.ErrEmptyChain
	}

	c := Chain{
		genesis:   cfg.Genesis,
		db:        db,
		executor:  execution.New(cfg.Genesis),
		evHandler: ev,
	}

	return &c, nil
}

// Close closes the storage.
func (c *Chain) Close() error {
	return c.db.Close()
}

// Height returns the height of the last stored block.
func (c *Chain) Height() database.Height {
	return c.db.ChainHeight()
}

// =============================================================================

// Replayed represents the state of the chain after a replay.
type Replayed struct {
	Height database.Height
	Score  chainscore.ChainScore
	Cache  *cache.Cache
}

// StateHash returns the state hash of the replayed cache.
func (r Replayed) StateHash() cache.StateHashInfo {
	return r.Cache.CreateView().CalculateStateHash()
}

// Replay executes the nemesis block and the stored blocks through the
// specified height. A height of zero replays the whole chain.
func (c *Chain) Replay(height database.Height, statusFunc loader.StatusFunc) (Replayed, error) {
	chainHeight := c.db.ChainHeight()
	if height == 0 {
		height = chainHeight
	}

	if height > chainHeight {
		return Replayed{}, fmt.Errorf("%w: %d, chain height %d", ErrHeight, height, chainHeight)
	}

	c.evHandler("chain: Replay: started: height[%d]", height)

	last, err := c.db.LoadBlockElement(height)
	if err != nil {
		return Replayed{}, err
	}

	factory := loader.NewInflectionPointObserverFactory(
		last.Block.Header,
		c.genesis.Config,
		c.executor.Observer(execution.Permanent),
		c.executor.Observer(execution.Transient),
	)

	nemesis, err := c.db.LoadBlockElement(1)
	if err != nil {
		return Replayed{}, err
	}

	cch := cache.New(c.genesis.Config)

	delta, err := cch.CreateDelta()
	if err != nil {
		return Replayed{}, err
	}

	if _, err := c.executor.ExecuteBlock(nemesis, delta, factory(nemesis.Block)); err != nil {
		delta.Discard()
		return Replayed{}, fmt.Errorf("executing nemesis block: %w", err)
	}

	if err := delta.Commit(1); err != nil {
		delta.Discard()
		return Replayed{}, err
	}

	lds := loader.State{
		Executor: c.executor,
		Storage:  upTo{db: c.db, height: height},
		Cache:    cch,
	}

	score, err := loader.LoadBlockChain(factory, lds, 2, statusFunc)
	if err != nil {
		return Replayed{}, err
	}

	c.evHandler("chain: Replay: completed: height[%d]: score[%s]", height, score)

	r := Replayed{
		Height: height,
		Score:  score,
		Cache:  cch,
	}

	return r, nil
}

// ExecutionHashes replays the chain to the parent of the block at the
// specified height and calculates the execution hashes of the block.
func (c *Chain) ExecutionHashes(height database.Height) (execution.BlockExecutionHashes, database.BlockElement, error) {
	if height < 2 || height > c.db.ChainHeight() {
		return execution.BlockExecutionHashes{}, database.BlockElement{}, fmt.Errorf("%w: %d, chain height %d", ErrHeight, height, c.db.ChainHeight())
	}

	r, err := c.Replay(height-1, nil)
	if err != nil {
		return execution.BlockExecutionHashes{}, database.BlockElement{}, err
	}

	element, err := c.db.LoadBlockElement(height)
	if err != nil {
		return execution.BlockExecutionHashes{}, database.BlockElement{}, err
	}

	hashes, err := c.executor.CalculateBlockExecutionHashes(element.Block, element.TransactionHashes(), r.Cache)
	if err != nil {
		return execution.BlockExecutionHashes{}, database.BlockElement{}, err
	}

	return hashes, element, nil
}

// NextDifficulty replays the chain through the specified height and returns
// the difficulty of the block that follows it.
func (c *Chain) NextDifficulty(height database.Height) (database.Difficulty, error) {
	r, err := c.Replay(height, nil)
	if err != nil {
		return 0, err
	}

	diff, ok := difficulty.CalculateAt(r.Cache.CreateView().Difficulty(), r.Height, c.genesis.Config)
	if !ok {
		return 0, fmt.Errorf("%w: no difficulty sample for %d", ErrHeight, r.Height)
	}

	return diff, nil
}

// =============================================================================

// upTo limits the stored chain to a height.
type upTo struct {
	db     *database.Database
	height database.Height
}

func (u upTo) ChainHeight() database.Height {
	return u.height
}

func (u upTo) LoadBlockElement(height database.Height) (database.BlockElement, error) {
	return u.db.LoadBlockElement(height)
}
