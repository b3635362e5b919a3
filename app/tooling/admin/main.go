// This program performs administrative tasks against a node's index.
package main

import (
	"fmt"
	"os"

	"github.com/caiorlm/logichain/app/tooling/admin/commands"
	"github.com/caiorlm/logichain/foundation/logger"
	"github.com/caiorlm/logichain/internal/storage"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	idx, err := storage.OpenIndex("zblock/index.db")
	if err != nil {
		return err
	}
	defer idx.Close()

	return processCommands(os.Args, idx)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, idx *storage.Index) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: admin [bals|contracts] [filter]")
	}

	switch args[1] {
	case "bals":
		if err := commands.Balances(args, idx); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}
	case "contracts":
		if err := commands.Contracts(args, idx); err != nil {
			return fmt.Errorf("getting contracts: %w", err)
		}
	}

	return nil
}
