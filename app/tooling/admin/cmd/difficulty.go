package cmd

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var difficultyHeight uint64

var difficultyCmd = &cobra.Command{
	Use:   "difficulty",
	Short: "Print the difficulty of the block following a height",
	Args:  cobra.NoArgs,
	RunE:  difficultyRun,
}

func init() {
	rootCmd.AddCommand(difficultyCmd)
	difficultyCmd.Flags().Uint64Var(&difficultyHeight, "height", 0, "Height the next difficulty is calculated after, zero for the chain height.")
}

func difficultyRun(cmd *cobra.Command, args []string) error {
	c, err := openChain()
	if err != nil {
		return err
	}
	defer c.Close()

	diff, err := c.NextDifficulty(database.Height(difficultyHeight))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), diff)
	return nil
}
