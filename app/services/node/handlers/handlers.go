// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/ardanlabs/ledger/app/services/node/handlers/debug/checkgrp"
	v1 "github.com/ardanlabs/ledger/app/services/node/handlers/v1"
	"github.com/ardanlabs/ledger/business/web/mid"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/metrics"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown   chan os.Signal
	Log        *zap.SugaredLogger
	State      *state.State
	NS         *nameservice.NameService
	Evts       *events.Events
	Metrics    *metrics.Metrics
	CORSOrigin string
}

// origin returns the configured CORS origin, allowing any origin when unset.
func (cfg MuxConfig) origin() string {
	if cfg.CORSOrigin == "" {
		return "*"
	}
	return cfg.CORSOrigin
}

// newApp constructs an app with the middleware shared by both API muxes. The
// metrics middleware wraps the error middleware so it counts final statuses.
func newApp(cfg MuxConfig, extra ...web.Middleware) *web.App {
	mw := []web.Middleware{
		mid.Logger(cfg.Log),
		mid.Metrics(cfg.Metrics),
		mid.Errors(cfg.Log),
	}
	mw = append(mw, extra...)
	mw = append(mw, mid.Panics())

	app := web.NewApp(cfg.Shutdown, mw...)

	// Accept CORS 'OPTIONS' preflight requests.
	preflight := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", preflight, mid.Cors(cfg.origin()))

	return app
}

// PublicMux constructs the handler for the routes wallets and explorers use.
func PublicMux(cfg MuxConfig) http.Handler {
	app := newApp(cfg, mid.Cors(cfg.origin()))

	v1.PublicRoutes(app, v1.Config{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	})

	return app
}

// PrivateMux constructs the handler for the operator routes that control
// harvesting, block processing and rollback.
func PrivateMux(cfg MuxConfig) http.Handler {
	app := newApp(cfg)

	v1.PrivateRoutes(app, v1.Config{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
	})

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service. This bypassing the use of the
// DefaultServerMux. Using the DefaultServerMux would be a security risk since
// a dependency could inject a handler into our service without us knowing it.
func DebugMux(build string, log *zap.SugaredLogger, st *state.State, m *metrics.Metrics) http.Handler {
	mux := DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
		State: st,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	// Register the prometheus collectors.
	mux.Handle("/metrics", m.Handler())

	return mux
}
