// Command nao compiles nao packages to pallet IR.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/nao/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nao:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
