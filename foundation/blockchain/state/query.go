package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/cache"
	"github.com/ardanlabs/ledger/foundation/blockchain/chainscore"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// QueryLastest represents to query the latest block in the chain.
const QueryLastest = database.Height(^uint64(0) >> 1)

// ErrAccountNotFound is returned when an account is not in the state cache.
var ErrAccountNotFound = errors.New("account not found")

// Status represents a summary of the node.
type Status struct {
	Height            database.Height       `json:"height"`
	ChainScore        chainscore.ChainScore `json:"chain_score"`
	LastBlockHash     database.Hash         `json:"last_block_hash"`
	StateHash         database.Hash         `json:"state_hash"`
	NextDifficulty    database.Difficulty   `json:"next_difficulty"`
	Mempool           int                   `json:"mempool"`
	UnlockedAccounts  int                   `json:"unlocked_accounts"`
	HarvestingAllowed bool                  `json:"harvesting_allowed"`
}

// =============================================================================

// QueryStatus returns a summary of the node.
func (s *State) QueryStatus() (Status, error) {
	last, err := s.db.LastBlockElement()
	if err != nil {
		return Status{}, err
	}

	view := s.cache.CreateView()
	diff, _ := difficulty.CalculateAt(view.Difficulty(), view.Height(), s.genesis.Config)

	status := Status{
		Height:            last.Block.Header.Height,
		ChainScore:        s.score.Score(),
		LastBlockHash:     last.EntityHash,
		StateHash:         view.CalculateStateHash().StateHash,
		NextDifficulty:    diff,
		Mempool:           s.mempool.Count(),
		UnlockedAccounts:  s.unlocked.View().Len(),
		HarvestingAllowed: s.harvestingAllowed.Load(),
	}

	return status, nil
}

// QueryChainScore returns the current chain score.
func (s *State) QueryChainScore() chainscore.ChainScore {
	return s.score.Score()
}

// QueryAccount returns a copy of the account from the state cache.
func (s *State) QueryAccount(publicKey database.PublicKey) (cache.AccountState, error) {
	account, exists := s.cache.CreateView().Accounts().Find(publicKey)
	if !exists {
		return cache.AccountState{}, fmt.Errorf("%w: %s", ErrAccountNotFound, publicKey)
	}

	return account, nil
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryMempool returns a copy of the mempool in selection order.
func (s *State) QueryMempool() []database.SignedTx {
	return s.mempool.PickBest(-1)
}

// QueryBlocksByHeight returns the set of blocks based on block heights. This
// function reads the blockchain from storage.
func (s *State) QueryBlocksByHeight(from database.Height, to database.Height) ([]database.BlockElement, error) {
	chainHeight := s.db.ChainHeight()
	if from == QueryLastest {
		from = chainHeight
		to = from
	}
	if to == QueryLastest || to > chainHeight {
		to = chainHeight
	}

	var out []database.BlockElement
	for h := from; h <= to; h++ {
		element, err := s.db.LoadBlockElement(h)
		if err != nil {
			return nil, err
		}
		out = append(out, element)
	}

	return out, nil
}

// QueryBlocksByAccount returns the blocks harvested by the account or holding
// a transaction the account signed or received.
func (s *State) QueryBlocksByAccount(publicKey database.PublicKey) ([]database.BlockElement, error) {
	var out []database.BlockElement

	for h := database.Height(1); h <= s.db.ChainHeight(); h++ {
		element, err := s.db.LoadBlockElement(h)
		if err != nil {
			return nil, err
		}

		if element.Block.Header.SignerPublicKey == publicKey || element.Block.Header.BeneficiaryPublicKey == publicKey {
			out = append(out, element)
			continue
		}

		for _, tx := range element.Block.Transactions {
			if tx.SignerPublicKey == publicKey || tx.RecipientPublicKey == publicKey {
				out = append(out, element)
				break
			}
		}
	}

	return out, nil
}

// QueryUnlockedAccounts returns the public keys of the harvesting accounts.
func (s *State) QueryUnlockedAccounts() []database.PublicKey {
	return s.unlocked.View().PublicKeys()
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}
