package commands

import (
	"fmt"

	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/storage"
)

// Contracts dumps every contract in the index, optionally filtered to a
// single state name when args[2] is present (e.g. "OPEN", "DISPUTED").
func Contracts(args []string, idx *storage.Index) error {
	var onlyState string
	if len(args) == 3 {
		onlyState = args[2]
	}

	return idx.ForEachContract(func(c contract.Contract) error {
		if onlyState != "" && c.State.String() != onlyState {
			return nil
		}
		fmt.Printf("ID: %x  State: %s  Creator: %s  Driver: %s  Escrow: %s\n",
			c.ID, c.State, c.Creator, c.Driver, c.Escrow)
		return nil
	})
}
