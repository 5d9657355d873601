package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	seedBalance uint64
	seedPhrase  string
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Write a genesis file seeding every account in the account path",
	Args:  cobra.NoArgs,
	RunE:  genesisRun,
}

func init() {
	rootCmd.AddCommand(genesisCmd)
	genesisCmd.Flags().Uint64VarP(&seedBalance, "balance", "b", 1_000_000_000, "Currency balance of every seeded account.")
	genesisCmd.Flags().StringVarP(&seedPhrase, "seed", "s", "ledger", "Phrase the generation hash seed is derived from.")
}

func genesisRun(cmd *cobra.Command, args []string) error {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	cfg := genesis.DefaultConfig()
	gen := genesis.Genesis{
		Date:               time.Now().UTC().Truncate(time.Second),
		GenerationHashSeed: crypto.Keccak256Hash([]byte(seedPhrase)),
		Config:             cfg,
	}

	for publicKey := range ns.Copy() {
		gen.Accounts = append(gen.Accounts, genesis.Account{
			PublicKey: publicKey,
			Balances: []genesis.Balance{
				{MosaicID: cfg.CurrencyMosaicID, Amount: database.Amount(seedBalance)},
			},
		})
	}

	if err := gen.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(gen, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(genesisPath, data, 0600); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d accounts\n", genesisPath, len(gen.Accounts))
	return nil
}
