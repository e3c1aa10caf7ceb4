// Command cyclelog is the command-line interface to the cycle event log.
package main

import (
	"os"

	"github.com/roach88/cyclelog/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
