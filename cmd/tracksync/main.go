// Package main is the entry point for the tracksync CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/cli"
	"github.com/runoshun/tracksync/internal/infra/config"
)

// version is set at build time using -ldflags.
var version = "dev"

// envFileName is read for TRACKSYNC_* overrides from the working
// directory and the data directory when present.
const envFileName = ".env"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.New(envFileName, filepath.Join(config.DefaultDataDir(), envFileName))
	if err != nil {
		// Allow help and version to work with a broken configuration
		if canRunWithoutContainer(os.Args[1:]) {
			return cli.NewRootCommand(nil, version).ExecuteContext(ctx)
		}
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = container.Close() }()

	rootCmd := cli.NewRootCommand(container, version)
	return rootCmd.ExecuteContext(ctx)
}

func canRunWithoutContainer(args []string) bool {
	if len(args) == 0 {
		return true
	}
	if args[0] == "help" {
		return true
	}
	for _, arg := range args {
		if arg == "--version" || arg == "-v" || arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}
