package main

import (
	"os"

	"github.com/rust-lang/sync-team/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		cli.PrintErrorChain(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
