// Command trekctl reads and edits the shared documents of a treksync trip.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maruel/treksync/internal/cli"
	"github.com/maruel/treksync/internal/logging"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "trekctl: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := logging.Setup()
	app := &cli.App{Out: os.Stdout}
	err := cli.NewRootCommand(app, ll).ExecuteContext(ctx)
	return errors.Join(err, app.Close())
}
