package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/spf13/cobra"
)

type accountResponse struct {
	Account ledger.Account `json:"account"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

func balanceRun(cmd *cobra.Command, args []string) {
	identity, err := loadIdentity()
	if err != nil {
		log.Fatal(err)
	}

	addr := identity.Address()
	fmt.Println("for account:", addr)

	resp, err := http.Get(fmt.Sprintf("%s/v1/chain/accounts/%s", url, addr))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("node returned status %d", resp.StatusCode)
	}

	var out accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatal(err)
	}

	fmt.Println("balance:", out.Account.Balance)
	fmt.Println("nonce:", out.Account.Nonce)
	fmt.Println("reputation:", out.Account.Reputation)
}
