package handlers_test

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/metrics"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fixture struct {
	gen     genesis.Genesis
	keys    []*ecdsa.PrivateKey
	now     time.Time
	public  http.Handler
	private http.Handler
	debug   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := genesis.DefaultConfig()
	f := fixture{
		gen: genesis.Genesis{
			Date:               time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			GenerationHashSeed: crypto.Keccak256Hash([]byte("handlers")),
			Config:             cfg,
		},
	}
	f.now = f.gen.Date

	nsDir := t.TempDir()
	for i, name := range []string{"miner1", "bill"} {
		pk, err := crypto.GenerateKey()
		require.NoError(t, err)
		require.NoError(t, crypto.SaveECDSA(filepath.Join(nsDir, name+".ecdsa"), pk))
		f.keys = append(f.keys, pk)

		f.gen.Accounts = append(f.gen.Accounts, genesis.Account{
			PublicKey: database.PublicKeyFromPrivate(f.keys[i]),
			Balances:  []genesis.Balance{{MosaicID: cfg.CurrencyMosaicID, Amount: 1_000_000_000}},
		})
	}

	ns, err := nameservice.New(nsDir)
	require.NoError(t, err)

	m := metrics.New()
	st, err := state.New(state.Config{
		Genesis: f.gen,
		Storage: storage.NewMemory(),
		Metrics: m,
		Clock:   func() time.Time { return f.now },
	})
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	cfgMux := handlers.MuxConfig{
		Log:     log,
		State:   st,
		NS:      ns,
		Evts:    events.New(),
		Metrics: m,
	}
	f.public = handlers.PublicMux(cfgMux)
	f.private = handlers.PrivateMux(cfgMux)
	f.debug = handlers.DebugMux("test", log, st, m)

	return &f
}

func (f *fixture) call(t *testing.T, h http.Handler, method string, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))

	if out != nil && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}

	return w.Code
}

func (f *fixture) pk(i int) database.PublicKey {
	return database.PublicKeyFromPrivate(f.keys[i])
}

// =============================================================================

func Test_NodeAPI(t *testing.T) {
	t.Log("Given the need to run a node through its web api.")
	{
		f := newFixture(t)

		var status state.Status
		code := f.call(t, f.public, http.MethodGet, "/v1/status", nil, &status)
		require.Equal(t, http.StatusOK, code, "\t%s\tShould receive the node status.", failed)
		require.Equal(t, database.Height(1), status.Height)
		t.Logf("\t%s\tShould receive the node status.", success)

		var unlocked struct {
			PublicKey database.PublicKey `json:"public_key"`
			Name      string             `json:"name"`
		}
		code = f.call(t, f.private, http.MethodPost, "/v1/node/accounts/unlock", map[string]string{"name": "miner1"}, &unlocked)
		require.Equal(t, http.StatusOK, code, "\t%s\tShould unlock an account by name.", failed)
		require.Equal(t, f.pk(0), unlocked.PublicKey)
		require.Equal(t, "miner1", unlocked.Name)
		t.Logf("\t%s\tShould unlock an account by name.", success)

		code = f.call(t, f.private, http.MethodPost, "/v1/node/accounts/unlock", map[string]string{}, nil)
		require.Equal(t, http.StatusBadRequest, code, "\t%s\tShould require a name or a key.", failed)
		t.Logf("\t%s\tShould require a name or a key.", success)

		tx := database.Tx{
			SignerPublicKey:    f.pk(1),
			RecipientPublicKey: f.pk(0),
			MosaicID:           f.gen.Config.CurrencyMosaicID,
			Amount:             100,
			MaxFee:             10 * database.TxSize,
			Deadline:           f.gen.Timestamp(f.now.Add(time.Hour)),
		}
		signedTx, err := tx.Sign(f.keys[1])
		require.NoError(t, err)

		code = f.call(t, f.public, http.MethodPost, "/v1/tx/submit", signedTx, nil)
		require.Equal(t, http.StatusOK, code, "\t%s\tShould accept a wallet transaction.", failed)
		t.Logf("\t%s\tShould accept a wallet transaction.", success)

		var mempool []map[string]any
		code = f.call(t, f.public, http.MethodGet, "/v1/tx/uncommitted/list/"+f.pk(1).String(), nil, &mempool)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, mempool, 1, "\t%s\tShould list the pending transaction.", failed)
		require.Equal(t, "bill", mempool[0]["signer_name"])
		t.Logf("\t%s\tShould list the pending transaction.", success)

		f.now = f.now.Add(15 * time.Second)
		code = f.call(t, f.private, http.MethodPost, "/v1/node/harvest", nil, &status)
		require.Equal(t, http.StatusOK, code, "\t%s\tShould harvest a block.", failed)
		require.Equal(t, database.Height(2), status.Height)
		require.Zero(t, status.Mempool)
		t.Logf("\t%s\tShould harvest a block.", success)

		var blocks []database.BlockData
		code = f.call(t, f.private, http.MethodGet, "/v1/node/block/list/1/latest", nil, &blocks)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, blocks, 2, "\t%s\tShould list the blocks by height.", failed)
		require.Equal(t, []database.SignedTx{signedTx}, blocks[1].Trans)
		t.Logf("\t%s\tShould list the blocks by height.", success)

		var acct struct {
			Name     string `json:"name"`
			Balances []struct {
				Amount database.Amount `json:"amount"`
			} `json:"balances"`
		}
		code = f.call(t, f.public, http.MethodGet, "/v1/accounts/list/"+f.pk(1).String(), nil, &acct)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "bill", acct.Name)
		require.Equal(t, database.Amount(1_000_000_000-100-10*database.TxSize), acct.Balances[0].Amount)
		t.Logf("\t%s\tShould return the account balances.", success)

		code = f.call(t, f.public, http.MethodGet, "/v1/accounts/list/"+database.PublicKey{2}.String(), nil, nil)
		require.Equal(t, http.StatusNotFound, code, "\t%s\tShould not find an unknown account.", failed)
		code = f.call(t, f.public, http.MethodGet, "/v1/accounts/list/zzz", nil, nil)
		require.Equal(t, http.StatusBadRequest, code, "\t%s\tShould reject a malformed account.", failed)
		t.Logf("\t%s\tShould reject unknown and malformed accounts.", success)

		var byAccount []map[string]any
		code = f.call(t, f.public, http.MethodGet, "/v1/blocks/list/"+f.pk(1).String(), nil, &byAccount)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, byAccount, 1)
		t.Logf("\t%s\tShould list the blocks of an account.", success)

		code = f.call(t, f.private, http.MethodPost, "/v1/node/block/rollback/5", nil, nil)
		require.Equal(t, http.StatusBadRequest, code, "\t%s\tShould reject a rollback above the chain.", failed)
		t.Logf("\t%s\tShould reject a rollback above the chain.", success)

		var toggle struct {
			HarvestingAllowed bool `json:"harvesting_allowed"`
		}
		code = f.call(t, f.private, http.MethodPost, "/v1/node/harvesting/false", nil, &toggle)
		require.Equal(t, http.StatusOK, code)
		require.False(t, toggle.HarvestingAllowed, "\t%s\tShould turn harvesting off.", failed)
		t.Logf("\t%s\tShould turn harvesting off.", success)

		code = f.call(t, f.private, http.MethodPost, "/v1/node/accounts/lock/"+f.pk(0).String(), nil, nil)
		require.Equal(t, http.StatusNoContent, code, "\t%s\tShould lock the account.", failed)
		code = f.call(t, f.private, http.MethodPost, "/v1/node/accounts/lock/"+f.pk(0).String(), nil, nil)
		require.Equal(t, http.StatusNotFound, code)
		t.Logf("\t%s\tShould lock the account once.", success)
	}
}

func Test_DebugMux(t *testing.T) {
	t.Log("Given the need to check the health of a node.")
	{
		f := newFixture(t)

		var ready struct {
			Status string `json:"status"`
			Height uint64 `json:"height"`
		}
		code := f.call(t, f.debug, http.MethodGet, "/debug/readiness", nil, &ready)
		require.Equal(t, http.StatusOK, code, "\t%s\tShould be ready.", failed)
		require.Equal(t, "ok", ready.Status)
		require.Equal(t, uint64(1), ready.Height)
		t.Logf("\t%s\tShould be ready.", success)

		w := httptest.NewRecorder()
		f.debug.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "ledger_chain_height 1", "\t%s\tShould expose the chain metrics.", failed)
		t.Logf("\t%s\tShould expose the chain metrics.", success)
	}
}

func Test_Preflight(t *testing.T) {
	t.Log("Given the need to answer browser preflight requests.")
	{
		f := newFixture(t)

		w := httptest.NewRecorder()
		f.public.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/wallet", nil))
		require.Equal(t, http.StatusOK, w.Code, "\t%s\tShould accept the preflight request.", failed)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), "\t%s\tShould allow any origin by default.", failed)
		require.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		t.Logf("\t%s\tShould accept the preflight request.", success)
	}
}
