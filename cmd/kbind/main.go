// Command kbind inspects, encodes, stores and exercises q values.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/kbind/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
