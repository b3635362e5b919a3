// This program provides the cli wallet for client access.
package main

import "github.com/caiorlm/logichain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
