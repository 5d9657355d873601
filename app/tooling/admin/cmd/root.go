// Package cmd contains the admin commands.
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/ledger/business/core/chain"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const keyExtension = ".ecdsa"

var (
	genesisPath string
	dbPath      string
	dbBackend   string
	accountPath string
	verbose     bool
)

// log is set by Execute before any command runs.
var log *zap.SugaredLogger

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Administrative tasks for the ledger node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "zblock/blocks", "Path to the block storage.")
	rootCmd.PersistentFlags().StringVar(&dbBackend, "db-backend", "disk", "Block storage backend: disk or leveldb.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log the replay events.")
}

// Execute runs the command specified on the command line.
func Execute(build string, l *zap.SugaredLogger) error {
	log = l
	rootCmd.Version = build
	return rootCmd.Execute()
}

// =============================================================================

func keyPath(name string) string {
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}

func openStorage() (database.Storage, error) {
	switch dbBackend {
	case "leveldb":
		return storage.NewLevelDB(dbPath)
	case "disk":
		return storage.NewDisk(dbPath)
	}

	return nil, fmt.Errorf("unknown storage backend %q", dbBackend)
}

// openChain opens the stored chain for replay based commands.
func openChain() (*chain.Chain, error) {
	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return nil, err
	}

	strg, err := openStorage()
	if err != nil {
		return nil, err
	}

	ev := func(v string, args ...any) {
		if verbose {
			log.Infow(fmt.Sprintf(v, args...))
		}
	}

	c, err := chain.Open(chain.Config{
		Genesis:   gen,
		Storage:   strg,
		EvHandler: ev,
	})
	if err != nil {
		strg.Close()
		return nil, err
	}

	return c, nil
}
