package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/systmms/credbroker/cmd/credbroker/commands"
	"github.com/systmms/credbroker/internal/config"
	dserrors "github.com/systmms/credbroker/internal/errors"
	"github.com/systmms/credbroker/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	memguard.CatchInterrupt()
	err := run()
	memguard.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.Config{}
	rt := commands.NewRuntime(cfg)

	rootCmd := commands.NewRootCommand(rt, commands.BuildInfo{Version: version, Commit: commit, Date: date})
	err := rootCmd.Execute()

	if cfg.Logger != nil {
		defer cfg.Logger.Sync()
	}
	if cfg.Definition != nil && cfg.Definition.Metrics.Textfile != "" {
		if werr := metrics.WriteTextfile(cfg.Definition.Metrics.Textfile); werr != nil && cfg.Logger != nil {
			cfg.Logger.Warn("writing metrics to %s failed: %v", cfg.Definition.Metrics.Textfile, werr)
		}
	}
	return err
}
