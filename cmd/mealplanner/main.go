// Package main is the mealplanner binary. Every subcommand reads one JSON
// document from its argument or stdin and prints one JSON envelope on
// stdout; diagnostics go to stderr.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/haukened/mealplanner/cmd/mealplanner/commands"
	"github.com/haukened/mealplanner/internal/lambda"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, os.Args, commands.Streams{Stdin: os.Stdin, Stdout: os.Stdout})
	stop()
	if err == nil {
		return
	}
	if !errors.Is(err, lambda.ErrFailed) {
		slog.Error("command failed", "err", err)
		_ = lambda.WriteError(context.Background(), os.Stdout, "", err)
	}
	os.Exit(1)
}
