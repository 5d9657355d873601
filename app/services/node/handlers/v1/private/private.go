// Package private maintains the group of handlers for node to node and
// operator access.
package private

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"net/http"
	"strconv"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/harvesting"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// Status returns a summary of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status, err := h.State.QueryStatus()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// BlocksByHeight returns the blocks in the specified height range. The word
// latest can be used for either end of the range.
func (h Handlers) BlocksByHeight(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := parseHeight(web.Param(r, "from"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := parseHeight(web.Param(r, "to"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to && from != state.QueryLastest {
		return errs.Newf(http.StatusBadRequest, "from %d is greater than to %d", from, to)
	}

	elements, err := h.State.QueryBlocksByHeight(from, to)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	if len(elements) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(elements))
	for i, element := range elements {
		blockData[i] = database.NewBlockData(element)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// ProposeBlock accepts a block from another node and adds it to the chain
// when it is valid.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block := database.Block{
		Header:       blockData.Header,
		Signature:    blockData.Signature,
		Transactions: blockData.Trans,
	}

	if err := h.State.ProcessBlock(block); err != nil {
		if errors.Is(err, state.ErrInvalidBlock) {
			return errs.NewTrusted(err, http.StatusNotAcceptable)
		}
		return err
	}

	resp := struct {
		Status string        `json:"status"`
		Hash   database.Hash `json:"hash"`
	}{
		Status: "accepted",
		Hash:   block.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Rollback removes the blocks above the specified height.
func (h Handlers) Rollback(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := parseHeight(web.Param(r, "height"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	removed, err := h.State.Rollback(height)
	if err != nil {
		if errors.Is(err, state.ErrRollbackLimit) || errors.Is(err, state.ErrRollbackHeight) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	h.Log.Infow("rollback", "traceid", web.GetTraceID(ctx), "height", height, "removed_score", removed)

	resp := struct {
		Height       database.Height `json:"height"`
		RemovedScore string          `json:"removed_score"`
	}{
		Height:       height,
		RemovedScore: removed.String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Harvest runs one harvesting attempt and returns the node status.
func (h Handlers) Harvest(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.HarvestNextBlock(); err != nil {
		return err
	}

	status, err := h.State.QueryStatus()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// SetHarvesting turns harvesting on or off.
func (h Handlers) SetHarvesting(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	allowed, err := strconv.ParseBool(web.Param(r, "allowed"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.State.SetHarvestingAllowed(allowed)

	resp := struct {
		HarvestingAllowed bool `json:"harvesting_allowed"`
	}{
		HarvestingAllowed: h.State.IsHarvestingAllowed(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// UnlockedAccounts returns the accounts this node harvests with.
func (h Handlers) UnlockedAccounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	keys := h.State.QueryUnlockedAccounts()

	accounts := make([]unlocked, len(keys))
	for i, pk := range keys {
		accounts[i] = unlocked{
			PublicKey: pk,
			Name:      h.NS.Lookup(pk),
		}
	}

	return web.Respond(ctx, w, accounts, http.StatusOK)
}

// UnlockAccount adds an account to the harvesting accounts. The key is
// provided directly or by the name of an account known to the name service.
func (h Handlers) UnlockAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req unlockRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	var key *ecdsa.PrivateKey
	var err error
	switch {
	case req.PrivateKey != "":
		key, err = crypto.HexToECDSA(req.PrivateKey)
	default:
		key, err = h.NS.PrivateKey(req.Name)
	}
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	pk, err := h.State.UnlockAccount(key)
	if err != nil {
		if errors.Is(err, harvesting.ErrCapacity) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return err
	}

	resp := unlocked{
		PublicKey: pk,
		Name:      h.NS.Lookup(pk),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// LockAccount removes an account from the harvesting accounts.
func (h Handlers) LockAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pk, err := database.ToPublicKey(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	locked, err := h.State.LockAccount(pk)
	if err != nil {
		return err
	}

	if !locked {
		return errs.Newf(http.StatusNotFound, "account %s is not unlocked", pk)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// SaveState writes the state cache to the data directory.
func (h Handlers) SaveState(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.SaveState(); err != nil {
		return err
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// =============================================================================

type unlocked struct {
	PublicKey database.PublicKey `json:"public_key"`
	Name      string             `json:"name"`
}

type unlockRequest struct {
	Name       string `json:"name" validate:"required_without=PrivateKey"`
	PrivateKey string `json:"private_key" validate:"required_without=Name"`
}

func parseHeight(s string) (database.Height, error) {
	if s == "latest" {
		return state.QueryLastest, nil
	}

	h, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}

	return database.Height(h), nil
}
