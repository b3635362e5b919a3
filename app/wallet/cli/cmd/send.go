package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/money"
	"github.com/spf13/cobra"
)

var (
	url   string
	nonce uint64
	to    string
	value uint64
	fee   uint64
)

type submitTxRequest struct {
	TxHex string `json:"tx_hex"`
}

type submitTxResponse struct {
	Accepted bool   `json:"accepted"`
	TxHash   string `json:"tx_hash"`
}

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a signed transfer to a node",
	Run: func(cmd *cobra.Command, args []string) {
		identity, err := loadIdentity()
		if err != nil {
			log.Fatal(err)
		}

		toAddr, err := crypto.ParseAddress(to)
		if err != nil {
			log.Fatal(err)
		}

		tx := ledger.Tx{
			Type:      ledger.TxTransfer,
			From:      identity.Address(),
			To:        toAddr,
			Amount:    money.FromUnits(value),
			Nonce:     nonce,
			Fee:       money.FromUnits(fee),
			Timestamp: float64(time.Now().UnixNano()) / 1e9,
		}

		signed, err := tx.Sign(identity)
		if err != nil {
			log.Fatal(err)
		}

		wire, err := signed.Encode()
		if err != nil {
			log.Fatal(err)
		}

		body, err := json.Marshal(submitTxRequest{TxHex: hex.EncodeToString(wire)})
		if err != nil {
			log.Fatal(err)
		}

		resp, err := http.Post(fmt.Sprintf("%s/v1/chain/transactions", url), "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		var out submitTxResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			log.Fatal(err)
		}

		fmt.Println("accepted:", out.Accepted)
		fmt.Println("tx_hash:", out.TxHash)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Account nonce for this transaction.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Recipient address.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send, in base units.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee to attach, in base units.")
}
