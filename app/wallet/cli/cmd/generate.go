package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new BIP-39 mnemonic and print its address",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	mnemonic, err := crypto.NewMnemonic()
	if err != nil {
		log.Fatal(err)
	}

	identity, err := crypto.DeriveIdentity(mnemonic, "", crypto.SchemeECDSA)
	if err != nil {
		log.Fatal(err)
	}

	path := getMnemonicPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(mnemonic+"\n"), 0o600); err != nil {
		log.Fatal(err)
	}

	fmt.Println("mnemonic saved to:", path)
	fmt.Println("address:", identity.Address())
}
