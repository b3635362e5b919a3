package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address for the specific wallet",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func loadIdentity() (crypto.Identity, error) {
	raw, err := os.ReadFile(getMnemonicPath())
	if err != nil {
		return nil, err
	}

	mnemonic := strings.TrimSpace(string(raw))
	if !crypto.ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("wallet: mnemonic file %q does not contain a valid BIP-39 mnemonic", getMnemonicPath())
	}

	return crypto.DeriveIdentity(mnemonic, "", crypto.SchemeECDSA)
}

func accountRun(cmd *cobra.Command, args []string) {
	identity, err := loadIdentity()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(identity.Address())
}
