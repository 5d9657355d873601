package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/loader"
)

// Set of errors returned by Rollback.
var (
	ErrRollbackLimit  = errors.New("rollback exceeds the rollback limit")
	ErrRollbackHeight = errors.New("rollback height must be below the chain height")
)

// Rollback removes the blocks above the specified height from the state
// cache and from storage. The transactions of the removed blocks go back
// into the mempool. It returns the score of the removed blocks.
func (s *State) Rollback(height database.Height) (chainscore.ChainScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chainHeight := s.db.ChainHeight()
	if height == 0 || height >= chainHeight {
		return chainscore.ChainScore{}, fmt.Errorf("%w: to %d, chain height %d", ErrRollbackHeight, height, chainHeight)
	}

	if limit := s.genesis.Config.MaxRollbackBlocks; uint64(chainHeight-height) > limit {
		return chainscore.ChainScore{}, fmt.Errorf("%w: %d blocks, limit %d", ErrRollbackLimit, chainHeight-height, limit)
	}

	s.evHandler("state: Rollback: started: from[%d]: to[%d]", chainHeight, height)
	defer s.evHandler("state: Rollback: completed: height[%d]", height)

	var txs []database.SignedTx
	for h := height + 1; h <= chainHeight; h++ {
		block, err := s.db.LoadBlock(h)
		if err != nil {
			return chainscore.ChainScore{}, err
		}
		txs = append(txs, block.Transactions...)
	}

	lds := loader.State{
		Executor: s.executor,
		Storage:  s.db,
		Cache:    s.cache,
	}

	removed, err := loader.RollbackBlockChain(lds, height)
	if err != nil {
		return chainscore.ChainScore{}, err
	}

	if err := s.db.DropBlocksAfter(height); err != nil {
		return chainscore.ChainScore{}, err
	}

	s.score.Reset(s.score.Score().Sub(removed))

	now := s.now()
	for _, tx := range txs {
		if tx.Deadline >= now {
			s.mempool.Upsert(tx)
		}
	}

	s.recordChain()

	return removed, nil
}
