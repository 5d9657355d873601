package cmd

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/loader"
	"github.com/spf13/cobra"
)

var replayHeight uint64

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the stored chain and print the chain score and state hash",
	Args:  cobra.NoArgs,
	RunE:  replayRun,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Uint64Var(&replayHeight, "height", 0, "Height to replay to, zero for the whole chain.")
}

func replayRun(cmd *cobra.Command, args []string) error {
	c, err := openChain()
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()

	status := func(status loader.Status) {
		if verbose {
			fmt.Fprintf(out, "height: %d  delta: %d  score: %s\n", status.Height, status.ScoreDelta, status.ChainScore)
		}
	}

	r, err := c.Replay(database.Height(replayHeight), status)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Height:     %d\n", r.Height)
	fmt.Fprintf(out, "ChainScore: %s\n", r.Score)
	fmt.Fprintf(out, "StateHash:  %s\n", r.StateHash().StateHash)

	return nil
}
