package execution

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// BlockExecutionHashes represents the proof of executing a block.
type BlockExecutionHashes struct {
	IsExecutionSuccess bool
	ReceiptsHash       database.Hash
	StateHash          database.Hash
}

// DeltaSource provides the disposable deltas blocks are executed against.
type DeltaSource interface {
	CreateDetachedDelta() *cache.Delta
}

// CalculateBlockExecutionHashes executes the block against a disposable delta
// and returns the receipts and state hashes it produces. The transaction
// hashes must match the block transactions one to one. The committed state
// is never changed.
func (e *Executor) CalculateBlockExecutionHashes(block database.Block, transactionHashes []database.Hash, source DeltaSource) (BlockExecutionHashes, error) {
	if len(transactionHashes) != len(block.Transactions) {
		return BlockExecutionHashes{}, fmt.Errorf("%w: %d transaction hashes for %d transactions", ErrInvalidArgument, len(transactionHashes), len(block.Transactions))
	}

	txs := make([]database.TransactionElement, len(block.Transactions))
	for i, tx := range block.Transactions {
		txs[i] = database.TransactionElement{
			Tx:         tx,
			EntityHash: transactionHashes[i],
		}
	}

	element := database.BlockElement{
		Block:        block,
		EntityHash:   block.Hash(),
		Transactions: txs,
	}

	delta := source.CreateDetachedDelta()
	defer delta.Discard()

	receipts, err := e.ExecuteBlock(element, delta, e.transient)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return BlockExecutionHashes{}, nil
		}
		return BlockExecutionHashes{}, err
	}

	hashes := BlockExecutionHashes{
		IsExecutionSuccess: true,
	}

	if e.cfg.ShouldEnableVerifiableReceipts {
		hashes.ReceiptsHash = receipts.Hash()
	}

	if e.cfg.ShouldEnableVerifiableState {
		hashes.StateHash = delta.CalculateStateHash(block.Header.Height).StateHash
	}

	return hashes, nil
}
