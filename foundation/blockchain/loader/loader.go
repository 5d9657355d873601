// Package loader replays the blocks held in storage into the state cache and
// rolls blocks back out of it.
package loader

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/execution"
)

// ErrReplayRejected is returned when a stored block does not validate. Stored
// blocks were valid when they were saved so this means the storage is
// corrupt or the chain configuration changed.
var ErrReplayRejected = errors.New("stored block rejected during replay")

// Storage represents the block store the chain is loaded from.
type Storage interface {
	ChainHeight() database.Height
	LoadBlockElement(height database.Height) (database.BlockElement, error)
}

// State represents the collaborators a chain is loaded with.
type State struct {
	Executor *execution.Executor
	Storage  Storage
	Cache    *cache.Cache
}

// Status describes one block loaded into the cache.
type Status struct {
	Element    database.BlockElement
	Height     database.Height
	ScoreDelta uint64
	ChainScore chainscore.ChainScore
}

// StatusFunc is called after each block is loaded.
type StatusFunc func(status Status)

// =============================================================================

// LoadBlockChain executes the stored blocks from the start height through
// the chain height and commits the cache after every block. It returns the
// score of the loaded blocks, which is zero when there is nothing to load.
func LoadBlockChain(factory ObserverFactory, state State, startHeight database.Height, statusFunc StatusFunc) (chainscore.ChainScore, error) {
	if startHeight < 2 {
		return chainscore.ChainScore{}, fmt.Errorf("start height %d: nemesis block is loaded separately", startHeight)
	}

	chainHeight := state.Storage.ChainHeight()
	if startHeight > chainHeight {
		return chainscore.ChainScore{}, nil
	}

	parent, err := state.Storage.LoadBlockElement(startHeight - 1)
	if err != nil {
		return chainscore.ChainScore{}, fmt.Errorf("loading block %d: %w", startHeight-1, err)
	}
	parentTimestamp := parent.Block.Header.Timestamp

	score := chainscore.NewAccumulator(chainscore.ChainScore{})

	for height := startHeight; height <= chainHeight; height++ {
		element, err := state.Storage.LoadBlockElement(height)
		if err != nil {
			return chainscore.ChainScore{}, fmt.Errorf("loading block %d: %w", height, err)
		}

		if err := executeAndCommit(state, element, factory(element.Block)); err != nil {
			return chainscore.ChainScore{}, err
		}

		header := element.Block.Header
		scoreDelta := chainscore.CalculateScore(parentTimestamp, header.Timestamp, header.Difficulty)
		score.Apply(scoreDelta)
		parentTimestamp = header.Timestamp

		if statusFunc != nil {
			statusFunc(Status{
				Element:    element,
				Height:     height,
				ScoreDelta: scoreDelta,
				ChainScore: score.Score(),
			})
		}
	}

	return score.Score(), nil
}

// RollbackBlockChain undoes the blocks above the specified height, newest
// first, and commits the cache after every block. The difficulty window is
// refilled from storage as samples are removed. It returns the score of the
// removed blocks. Storage is not changed.
func RollbackBlockChain(state State, height database.Height) (chainscore.ChainScore, error) {
	chainHeight := state.Cache.Height()
	if height == 0 || height > chainHeight {
		return chainscore.ChainScore{}, fmt.Errorf("%w: rollback to %d with cache height %d", execution.ErrInvalidArgument, height, chainHeight)
	}

	score := chainscore.NewAccumulator(chainscore.ChainScore{})
	transient := state.Executor.Observer(execution.Transient)

	for h := chainHeight; h > height; h-- {
		element, err := state.Storage.LoadBlockElement(h)
		if err != nil {
			return chainscore.ChainScore{}, fmt.Errorf("loading block %d: %w", h, err)
		}

		parent, err := state.Storage.LoadBlockElement(h - 1)
		if err != nil {
			return chainscore.ChainScore{}, fmt.Errorf("loading block %d: %w", h-1, err)
		}

		delta, err := state.Cache.CreateDelta()
		if err != nil {
			return chainscore.ChainScore{}, err
		}

		if err := state.Executor.RollbackBlock(element, delta, transient); err != nil {
			delta.Discard()
			return chainscore.ChainScore{}, err
		}

		if err := refillDifficulties(state.Storage, delta.Difficulty()); err != nil {
			delta.Discard()
			return chainscore.ChainScore{}, err
		}

		if err := delta.Commit(h - 1); err != nil {
			delta.Discard()
			return chainscore.ChainScore{}, fmt.Errorf("committing height %d: %w", h-1, err)
		}

		header := element.Block.Header
		score.Apply(chainscore.CalculateScore(parent.Block.Header.Timestamp, header.Timestamp, header.Difficulty))
	}

	return score.Score(), nil
}

// =============================================================================

func executeAndCommit(state State, element database.BlockElement, observer execution.Observer) error {
	height := element.Block.Header.Height

	delta, err := state.Cache.CreateDelta()
	if err != nil {
		return err
	}

	if _, err := state.Executor.ExecuteBlock(element, delta, observer); err != nil {
		delta.Discard()
		if errors.Is(err, execution.ErrRejected) {
			return fmt.Errorf("%w: %w", ErrReplayRejected, err)
		}
		return fmt.Errorf("executing block %d: %w", height, err)
	}

	if err := delta.Commit(height); err != nil {
		delta.Discard()
		return fmt.Errorf("committing height %d: %w", height, err)
	}

	return nil
}

// refillDifficulties prepends stored samples until the window is full again
// or reaches the nemesis block.
func refillDifficulties(storage Storage, history *difficulty.History) error {
	for {
		oldest, exists := history.Oldest()
		if !exists || oldest.Height <= 2 || uint64(history.Len()) > history.Capacity() {
			return nil
		}

		element, err := storage.LoadBlockElement(oldest.Height - 1)
		if err != nil {
			return fmt.Errorf("loading block %d: %w", oldest.Height-1, err)
		}

		before := history.Len()
		if err := history.Prepend(difficulty.NewInfo(element.Block.Header)); err != nil {
			return err
		}
		if history.Len() == before {
			return nil
		}
	}
}
