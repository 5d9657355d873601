package loader

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/execution"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// ObserverFactory returns the observer a block is applied with.
type ObserverFactory func(block database.Block) execution.Observer

// SelectObserverVariant decides how the candidate block is applied when the
// chain ends at the last block. Only a block below both the height
// inflection of the difficulty window and the time inflection of the
// transaction cache is permanent. A block exactly at either inflection point
// is transient.
func SelectObserverVariant(last database.BlockHeader, candidate database.BlockHeader, cfg genesis.Config) execution.ObserverVariant {
	var heightInflection database.Height
	if uint64(last.Height) >= cfg.MaxDifficultyBlocks {
		heightInflection = last.Height - database.Height(cfg.MaxDifficultyBlocks) + 1
	}

	timeInflection := last.Timestamp.SubSaturating(cfg.TransactionCacheDuration())

	if candidate.Height < heightInflection && candidate.Timestamp < timeInflection {
		return execution.Permanent
	}

	return execution.Transient
}

// NewInflectionPointObserverFactory constructs a factory that picks the
// permanent or transient observer for each block relative to the last block.
func NewInflectionPointObserverFactory(last database.BlockHeader, cfg genesis.Config, permanent execution.Observer, transient execution.Observer) ObserverFactory {
	return func(block database.Block) execution.Observer {
		if SelectObserverVariant(last, block.Header, cfg) == execution.Permanent {
			return permanent
		}
		return transient
	}
}
