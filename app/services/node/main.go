package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/worker"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/logger"
	"github.com/ardanlabs/ledger/foundation/metrics"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

// config holds every setting of the node. Chain rules come from the genesis
// file instead.
type config struct {
	conf.Version
	Web struct {
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
		DebugHost       string        `conf:"default:0.0.0.0:7080"`
		PublicHost      string        `conf:"default:0.0.0.0:8080"`
		PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		CORSOrigin      string        `conf:"default:*"`
	}
	State struct {
		GenesisPath    string `conf:"default:zblock/genesis.json"`
		DataDir        string `conf:"default:zblock/data"`
		DBPath         string `conf:"default:zblock/blocks"`
		DBBackend      string `conf:"default:disk"`
		SelectStrategy string `conf:"default:maxfee"`
	}
	Harvesting struct {
		Beneficiary string        `conf:"default:miner1"`
		Accounts    []string      `conf:"default:miner1"`
		Interval    time.Duration `conf:"default:1s"`
		Disabled    bool          `conf:"default:false"`
	}
	NameService struct {
		Folder string `conf:"default:zblock/accounts/"`
	}
}

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := config{
		Version: conf.Version{
			Build: build,
			Desc:  "ledger node: replay, harvesting and block processing",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// Account names come from the key file names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Ledger Support

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	blockStorage, err := openStorage(cfg.State.DBBackend, cfg.State.DBPath)
	if err != nil {
		return err
	}

	// Ledger messages are logged and pushed to every websocket subscriber.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	m := metrics.New()

	// Starting the state loads the saved cache or replays the stored chain.
	st, err := state.New(state.Config{
		Genesis:        gen,
		Storage:        blockStorage,
		DataDir:        cfg.State.DataDir,
		SelectStrategy: cfg.State.SelectStrategy,
		Beneficiary:    beneficiary(ns, cfg.Harvesting.Beneficiary),
		Metrics:        m,
		EvHandler:      ev,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Shutdown(); err != nil {
			log.Errorw("shutdown", "status", "state shutdown", "ERROR", err)
		}
	}()

	if err := unlockHarvesters(log, st, ns, cfg.Harvesting.Accounts); err != nil {
		return err
	}
	st.SetHarvestingAllowed(!cfg.Harvesting.Disabled)

	// The worker registers itself with the state so Shutdown stops it.
	worker.Run(st, cfg.Harvesting.Interval, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	// Not concerned with shutting this down with load shedding.
	debugMux := handlers.DebugMux(build, log, st, m)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Services

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	muxCfg := handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		State:      st,
		NS:         ns,
		Evts:       evts,
		Metrics:    m,
		CORSOrigin: cfg.Web.CORSOrigin,
	}

	// The private API is stopped first so no block is proposed while the
	// public API drains.
	servers := []*http.Server{
		newServer(log, cfg, cfg.Web.PrivateHost, handlers.PrivateMux(muxCfg)),
		newServer(log, cfg, cfg.Web.PublicHost, handlers.PublicMux(muxCfg)),
	}

	serverErrors := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			log.Infow("startup", "status", "api router started", "host", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()
	}

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		var errs error
		for _, srv := range servers {
			log.Infow("shutdown", "status", "shutdown api started", "host", srv.Addr)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				errs = multierr.Append(errs, fmt.Errorf("could not stop %s gracefully: %w", srv.Addr, err))
			}
			cancel()
		}

		return errs
	}
}

// =============================================================================

// openStorage opens the block storage for the configured backend.
func openStorage(backend string, path string) (database.Storage, error) {
	var s database.Storage
	var err error

	switch backend {
	case "disk":
		s, err = storage.NewDisk(path)
	case "leveldb":
		s, err = storage.NewLevelDB(path)
	default:
		return nil, fmt.Errorf("unknown block storage backend %q", backend)
	}

	if err != nil {
		return nil, fmt.Errorf("unable to open %s block storage: %w", backend, err)
	}

	return s, nil
}

// beneficiary returns the account credited with the harvest fees. An unknown
// name leaves the fees with the harvester.
func beneficiary(ns *nameservice.NameService, name string) database.PublicKey {
	key, err := ns.PrivateKey(name)
	if err != nil {
		return database.PublicKey{}
	}

	return database.PublicKeyFromPrivate(key)
}

// unlockHarvesters unlocks the named accounts for harvesting.
func unlockHarvesters(log *zap.SugaredLogger, st *state.State, ns *nameservice.NameService, names []string) error {
	for _, name := range names {
		key, err := ns.PrivateKey(name)
		if err != nil {
			return fmt.Errorf("unable to unlock harvester %s: %w", name, err)
		}

		pk, err := st.UnlockAccount(key)
		if err != nil {
			return fmt.Errorf("unable to unlock harvester %s: %w", name, err)
		}

		log.Infow("startup", "status", "harvester unlocked", "name", name, "account", pk)
	}

	return nil
}

// newServer constructs an API server with the configured timeouts.
func newServer(log *zap.SugaredLogger, cfg config, host string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         host,
		Handler:      h,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}
}
