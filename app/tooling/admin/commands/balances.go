package commands

import (
	"fmt"

	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/storage"
)

// Balances dumps every account in the index, optionally filtered to a
// single address when args[2] is present.
func Balances(args []string, idx *storage.Index) error {
	var onlyAddr string
	if len(args) == 3 {
		onlyAddr = args[2]
	}

	return idx.ForEachAccount(func(acct ledger.Account) error {
		addr := acct.Address.String()
		if onlyAddr != "" && addr != onlyAddr {
			return nil
		}
		fmt.Printf("Account: %s  Balance: %s  Nonce: %d  Reputation: %.2f\n",
			addr, acct.Balance, acct.Nonce, acct.Reputation)
		return nil
	})
}
