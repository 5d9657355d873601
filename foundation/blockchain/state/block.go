package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/execution"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
)

// ErrInvalidBlock is returned when a block can not become the next block in
// the chain.
var ErrInvalidBlock = errors.New("invalid block")

// =============================================================================

// ProcessBlock takes a block harvested locally or received from a client,
// validates it and if that passes, adds the block to the local blockchain.
func (s *State) ProcessBlock(block database.Block) error {
	s.evHandler("state: ProcessBlock: started: height[%d]: prevBlk[%s]: numTrans[%d]", block.Header.Height, block.Header.PreviousBlockHash, len(block.Transactions))
	defer s.evHandler("state: ProcessBlock: completed: height[%d]", block.Header.Height)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.processBlock(block)
	s.metrics.BlockProcessed(err == nil)

	return err
}

// =============================================================================

// processBlock validates the block against the consensus rules, executes it
// against the state cache and verifies the hashes it carries. If the block
// passes, the block is written to storage and the cache is committed.
func (s *State) processBlock(block database.Block) error {
	last, err := s.db.LastBlockElement()
	if err != nil {
		return err
	}

	s.evHandler("state: processBlock: validate block")

	if err := s.validateBlock(last, block); err != nil {
		return err
	}

	element := database.NewBlockElement(block, last.GenerationHash)
	header := block.Header

	delta, err := s.cache.CreateDelta()
	if err != nil {
		return err
	}

	s.evHandler("state: processBlock: execute block")

	start := time.Now()
	receipts, err := s.executor.ExecuteBlock(element, delta, s.executor.Observer(execution.Transient))
	s.metrics.ObserveExecution(time.Since(start))
	if err != nil {
		delta.Discard()
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}

	cfg := s.genesis.Config
	if cfg.ShouldEnableVerifiableReceipts && receipts.Hash() != header.ReceiptsHash {
		delta.Discard()
		return fmt.Errorf("%w: receipts hash %s, calculated %s", ErrInvalidBlock, header.ReceiptsHash, receipts.Hash())
	}

	if cfg.ShouldEnableVerifiableState {
		if stateHash := delta.CalculateStateHash(header.Height).StateHash; stateHash != header.StateHash {
			delta.Discard()
			return fmt.Errorf("%w: state hash %s, calculated %s", ErrInvalidBlock, header.StateHash, stateHash)
		}
	}

	s.evHandler("state: processBlock: write to disk")

	// Write the new block to the chain on disk.
	if err := s.db.SaveBlock(element); err != nil {
		delta.Discard()
		return err
	}

	// The block is in storage so a failed commit leaves the cache behind the
	// chain. Replaying the chain repairs it.
	if err := delta.Commit(header.Height); err != nil {
		delta.Discard()
		return fmt.Errorf("committing state at %d: %w", header.Height, err)
	}

	s.score.Apply(chainscore.CalculateScore(last.Block.Header.Timestamp, header.Timestamp, header.Difficulty))

	s.evHandler("state: processBlock: remove transactions from mempool")

	s.mempool.DeleteBlock(block)
	s.recordChain()

	// Send an event about this new block.
	s.blockEvent(element)

	return nil
}

// validateBlock checks the block links to the last block and was harvested
// by an account with a hit.
func (s *State) validateBlock(last database.BlockElement, block database.Block) error {
	parent := last.Block.Header
	header := block.Header
	cfg := s.genesis.Config

	if header.Height != parent.Height.Next() {
		return fmt.Errorf("%w: height %d, expected %d", ErrInvalidBlock, header.Height, parent.Height.Next())
	}

	if header.PreviousBlockHash != last.EntityHash {
		return fmt.Errorf("%w: previous block hash %s, expected %s", ErrInvalidBlock, header.PreviousBlockHash, last.EntityHash)
	}

	if header.Timestamp <= parent.Timestamp {
		return fmt.Errorf("%w: timestamp %d is not after parent timestamp %d", ErrInvalidBlock, header.Timestamp, parent.Timestamp)
	}

	if err := block.VerifySignature(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}

	if hash := database.CalculateTransactionsHash(block.TransactionHashes()); hash != header.TransactionsHash {
		return fmt.Errorf("%w: transactions hash %s, calculated %s", ErrInvalidBlock, header.TransactionsHash, hash)
	}

	view := s.cache.CreateView()

	diff, ok := difficulty.CalculateAt(view.Difficulty(), parent.Height, cfg)
	if !ok {
		return fmt.Errorf("%w: no difficulty info at height %d", ErrInvalidBlock, parent.Height)
	}

	if header.Difficulty != diff {
		return fmt.Errorf("%w: difficulty %d, expected %d", ErrInvalidBlock, header.Difficulty, diff)
	}

	accounts := view.Accounts()
	predicate := chainscore.NewHitPredicate(cfg, func(publicKey database.PublicKey, height database.Height) database.Importance {
		return accounts.Importance(publicKey, cfg.ImportanceHeight(height))
	})

	generationHash := signature.GenerationHash(last.GenerationHash, header.SignerPublicKey[:])
	if !predicate.IsBlockHit(parent, header, generationHash) {
		return fmt.Errorf("%w: signer %s does not have a hit", ErrInvalidBlock, header.SignerPublicKey)
	}

	return nil
}

// consumeHarvestedBlock processes a block harvested by this node.
func (s *State) consumeHarvestedBlock(block database.Block, processingComplete func()) {
	defer processingComplete()

	if err := s.ProcessBlock(block); err != nil {
		s.evHandler("state: consumeHarvestedBlock: ERROR: %s", err)
		return
	}

	s.metrics.BlockHarvested()
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(element database.BlockElement) {
	blockHeaderJSON, err := json.Marshal(element.Block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(element.Block.Transactions)
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"header":%s,"trans":%s}`, element.EntityHash, string(blockHeaderJSON), string(blockTransJSON))
}
