// Command conteo reconciles physical stock counts against expected lists.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/conteo/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
