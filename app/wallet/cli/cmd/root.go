// Package cmd contains wallet app
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
)

const (
	mnemonicExtension = ".mnemonic"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "default", "Name of the wallet's mnemonic file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with wallet mnemonics.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "LogiChain wallet",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getMnemonicPath() string {
	if !strings.HasSuffix(accountName, mnemonicExtension) {
		accountName += mnemonicExtension
	}

	return filepath.Join(accountPath, accountName)
}
