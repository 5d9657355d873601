package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	url      string
	from     string
	to       string
	amount   uint64
	maxFee   uint64
	lifetime time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign a transfer and submit it to a node",
	Args:  cobra.NoArgs,
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&from, "from", "f", "", "Name of the signing account.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Public key of the recipient.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "a", 0, "Amount of currency to send.")
	sendCmd.Flags().Uint64Var(&maxFee, "max-fee", 10*database.TxSize, "Maximum fee to pay.")
	sendCmd.Flags().DurationVar(&lifetime, "lifetime", time.Hour, "Time until the transaction deadline.")
	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("to")
}

func sendRun(cmd *cobra.Command, args []string) error {
	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return err
	}

	privateKey, err := crypto.LoadECDSA(keyPath(from))
	if err != nil {
		return err
	}

	recipient, err := database.ToPublicKey(to)
	if err != nil {
		return err
	}

	tx := database.Tx{
		SignerPublicKey:    database.PublicKeyFromPrivate(privateKey),
		RecipientPublicKey: recipient,
		MosaicID:           gen.Config.CurrencyMosaicID,
		Amount:             database.Amount(amount),
		MaxFee:             database.Amount(maxFee),
		Deadline:           gen.Timestamp(time.Now().Add(lifetime)),
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		return err
	}

	data, err := json.Marshal(signedTx)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit failed: %s: %s", resp.Status, body)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}
