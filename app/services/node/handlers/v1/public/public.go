// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	h.Log.Infow("events", "traceid", web.GetTraceID(ctx), "subscription", id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns a summary of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status, err := h.State.QueryStatus()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// SubmitWalletTransaction adds a new user transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tx", "traceid", web.GetTraceID(ctx), "tx", signedTx, "max_fee", signedTx.MaxFee, "deadline", signedTx.Deadline)

	hash, err := h.State.UpsertWalletTransaction(signedTx)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string        `json:"status"`
		Hash   database.Hash `json:"hash"`
	}{
		Status: "transaction added to mempool",
		Hash:   hash,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions. The list can be
// filtered to the transactions an account signed or receives.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var filter database.PublicKey
	if acct := web.Param(r, "account"); acct != "" {
		pk, err := database.ToPublicKey(acct)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		filter = pk
	}

	mempool := h.State.QueryMempool()

	trans := make([]tx, 0, len(mempool))
	for _, signedTx := range mempool {
		if !filter.IsZero() && filter != signedTx.SignerPublicKey && filter != signedTx.RecipientPublicKey {
			continue
		}
		trans = append(trans, toTx(h.NS, signedTx))
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Account returns the balances and importance of an account.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pk, err := database.ToPublicKey(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	acctState, err := h.State.QueryAccount(pk)
	if err != nil {
		if errors.Is(err, state.ErrAccountNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	sorted := acctState.SortedBalances()
	balances := make([]balance, len(sorted))
	for i, bal := range sorted {
		balances[i] = balance{
			MosaicID: bal.MosaicID,
			Amount:   bal.Amount,
		}
	}

	act := account{
		PublicKey:  acctState.PublicKey,
		Name:       h.NS.Lookup(acctState.PublicKey),
		Height:     acctState.Height,
		Balances:   balances,
		Importance: acctState.CurrentImportance().Importance,
	}

	return web.Respond(ctx, w, act, http.StatusOK)
}

// BlocksByAccount returns all the blocks an account signed or has
// transactions in.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pk, err := database.ToPublicKey(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	elements, err := h.State.QueryBlocksByAccount(pk)
	if err != nil {
		return err
	}

	if len(elements) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(elements))
	for i, element := range elements {
		blocks[i] = toBlock(h.NS, element)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}
