// Package harvesting produces new blocks with the unlocked accounts that are
// eligible to harvest.
package harvesting

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/execution"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
)

// TransactionsInfo represents the transactions selected for a new block.
type TransactionsInfo struct {
	Transactions      []database.SignedTx
	TransactionHashes []database.Hash
	TransactionsHash  database.Hash
	FeeMultiplier     database.FeeMultiplier
}

// TransactionsInfoSupplier selects up to max transactions for a block
// harvested at the timestamp.
type TransactionsInfoSupplier func(timestamp database.Timestamp, max uint32) TransactionsInfo

// ExecutionHashesSupplier calculates the execution hashes of a new block.
type ExecutionHashesSupplier func(block database.Block, transactionHashes []database.Hash) (execution.BlockExecutionHashes, error)

// NewExecutionHashesSupplier constructs a supplier that executes blocks
// against disposable deltas of the source.
func NewExecutionHashesSupplier(exec *execution.Executor, source execution.DeltaSource) ExecutionHashesSupplier {
	return func(block database.Block, transactionHashes []database.Hash) (execution.BlockExecutionHashes, error) {
		return exec.CalculateBlockExecutionHashes(block, transactionHashes, source)
	}
}

// ErrNoExecutionHashes is returned by a harvester constructed without an
// execution hashes supplier when one of its accounts has a hit.
var ErrNoExecutionHashes = errors.New("no execution hashes supplier")

// missingExecutionHashes fails every block so a hit never yields an
// unverified block.
func missingExecutionHashes(database.Block, []database.Hash) (execution.BlockExecutionHashes, error) {
	return execution.BlockExecutionHashes{}, ErrNoExecutionHashes
}

// EmptyTransactionsInfo is a supplier that never selects transactions.
func EmptyTransactionsInfo(database.Timestamp, uint32) TransactionsInfo {
	return TransactionsInfo{}
}

// =============================================================================

// Config represents the configuration required to construct a harvester.
type Config struct {
	Cache            *cache.Cache
	Accounts         *UnlockedAccounts
	Beneficiary      database.PublicKey
	TransactionsInfo TransactionsInfoSupplier
	ExecutionHashes  ExecutionHashesSupplier
	EvHandler        func(v string, args ...any)
}

// Harvester tests the unlocked accounts for a hit and assembles the block of
// the first account that has one.
type Harvester struct {
	cache       *cache.Cache
	accounts    *UnlockedAccounts
	beneficiary database.PublicKey
	txInfo      TransactionsInfoSupplier
	hashes      ExecutionHashesSupplier
	evHandler   func(v string, args ...any)
}

// New constructs a harvester.
func New(cfg Config) *Harvester {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	txInfo := cfg.TransactionsInfo
	if txInfo == nil {
		txInfo = EmptyTransactionsInfo
	}

	hashes := cfg.ExecutionHashes
	if hashes == nil {
		hashes = missingExecutionHashes
	}

	return &Harvester{
		cache:       cfg.Cache,
		accounts:    cfg.Accounts,
		beneficiary: cfg.Beneficiary,
		txInfo:      txInfo,
		hashes:      hashes,
		evHandler:   ev,
	}
}

// Harvest attempts to produce the block following the last block with the
// specified timestamp. It returns a nil block without an error when no
// account is eligible or the state does not match the last block.
func (h *Harvester) Harvest(last database.BlockElement, timestamp database.Timestamp) (*database.Block, error) {
	cfg := h.cache.Config()
	view := h.cache.CreateView()
	lastHeader := last.Block.Header

	if view.Height() != lastHeader.Height {
		h.evHandler("harvesting: Harvest: state height %d does not match last block height %d", view.Height(), lastHeader.Height)
		return nil, nil
	}

	diff, ok := difficulty.CalculateAt(view.Difficulty(), lastHeader.Height, cfg)
	if !ok {
		h.evHandler("harvesting: Harvest: no difficulty info at height %d", lastHeader.Height)
		return nil, nil
	}

	accounts := view.Accounts()
	predicate := chainscore.NewHitPredicate(cfg, func(publicKey database.PublicKey, height database.Height) database.Importance {
		return accounts.Importance(publicKey, cfg.ImportanceHeight(height))
	})

	hitContext := chainscore.HitContext{
		ElapsedTime: database.Elapsed(lastHeader.Timestamp, timestamp),
		Difficulty:  diff,
		Height:      lastHeader.Height.Next(),
	}

	var winner *Account
	h.accounts.View().ForEach(func(account Account) bool {
		if _, exists := accounts.Find(account.PublicKey); !exists {
			return true
		}

		hitContext.Signer = account.PublicKey
		hitContext.GenerationHash = signature.GenerationHash(last.GenerationHash, account.PublicKey[:])
		if !predicate.IsHit(hitContext) {
			return true
		}

		winner = &account
		return false
	})

	if winner == nil {
		return nil, nil
	}

	h.evHandler("harvesting: Harvest: account %s has a hit at height %d", winner.PublicKey, hitContext.Height)

	return h.assemble(last, *winner, timestamp, diff, cfg.MaxTransactionsPerBlock)
}

// =============================================================================

func (h *Harvester) assemble(last database.BlockElement, account Account, timestamp database.Timestamp, diff database.Difficulty, maxTransactions uint32) (*database.Block, error) {
	info := h.txInfo(timestamp, maxTransactions)
	if len(info.TransactionHashes) != len(info.Transactions) {
		return nil, fmt.Errorf("%w: %d transaction hashes for %d transactions", execution.ErrInvalidArgument, len(info.TransactionHashes), len(info.Transactions))
	}

	block := database.Block{
		Header: database.BlockHeader{
			Height:               last.Block.Header.Height.Next(),
			Timestamp:            timestamp,
			Difficulty:           diff,
			FeeMultiplier:        info.FeeMultiplier,
			PreviousBlockHash:    last.EntityHash,
			TransactionsHash:     info.TransactionsHash,
			SignerPublicKey:      account.PublicKey,
			BeneficiaryPublicKey: h.beneficiary,
		},
		Transactions: info.Transactions,
	}

	hashes, err := h.hashes(block, info.TransactionHashes)
	if err != nil {
		return nil, fmt.Errorf("calculating execution hashes: %w", err)
	}

	if !hashes.IsExecutionSuccess {
		h.evHandler("harvesting: Harvest: block at height %d failed execution", block.Header.Height)
		return nil, nil
	}

	block.Header.ReceiptsHash = hashes.ReceiptsHash
	block.Header.StateHash = hashes.StateHash

	if err := block.Sign(account.PrivateKey); err != nil {
		return nil, fmt.Errorf("signing block: %w", err)
	}

	return &block, nil
}
