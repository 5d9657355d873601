package cmd

import (
	"fmt"
	"strconv"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var hashesCmd = &cobra.Command{
	Use:   "hashes <height>",
	Short: "Recalculate the execution hashes of a stored block",
	Args:  cobra.ExactArgs(1),
	RunE:  hashesRun,
}

func init() {
	rootCmd.AddCommand(hashesCmd)
}

func hashesRun(cmd *cobra.Command, args []string) error {
	height, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}

	c, err := openChain()
	if err != nil {
		return err
	}
	defer c.Close()

	hashes, element, err := c.ExecutionHashes(database.Height(height))
	if err != nil {
		return err
	}

	header := element.Block.Header

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Block:        %d %s\n", header.Height, element.EntityHash)
	fmt.Fprintf(out, "Success:      %t\n", hashes.IsExecutionSuccess)
	fmt.Fprintf(out, "ReceiptsHash: %s (stored %s, match %t)\n", hashes.ReceiptsHash, header.ReceiptsHash, hashes.ReceiptsHash == header.ReceiptsHash)
	fmt.Fprintf(out, "StateHash:    %s (stored %s, match %t)\n", hashes.StateHash, header.StateHash, hashes.StateHash == header.StateHash)

	return nil
}
