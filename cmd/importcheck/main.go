// Package main provides the entry point for the importcheck CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sumatoshi-tech/importcheck/cmd/importcheck/commands"
	"github.com/Sumatoshi-tech/importcheck/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, commands.FatalMessage(err))
		os.Exit(1)
	}
}
