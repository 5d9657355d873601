package cmd

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey <name>",
	Short: "Generate a new account key pair",
	Args:  cobra.ExactArgs(1),
	RunE:  genkeyRun,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
}

func genkeyRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	path := keyPath(args[0])
	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", path, database.PublicKeyFromPrivate(privateKey))
	return nil
}
