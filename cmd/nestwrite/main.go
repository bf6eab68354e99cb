package main

import (
	"context"
	"os"

	"github.com/roach88/nestwrite/internal/cli"
)

func main() {
	// Subcommands render their own errors; only the exit code is left.
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
