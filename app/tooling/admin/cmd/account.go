package cmd

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account <name>",
	Short: "Print the public key of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(keyPath(args[0]))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), database.PublicKeyFromPrivate(privateKey))
	return nil
}
