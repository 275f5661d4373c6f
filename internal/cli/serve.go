package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/daemon"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run the backend daemon in the foreground",
		Hidden: true, // Started automatically by other commands
		Long: `Run the backend daemon in the foreground.

This command is normally started automatically by other casetab commands.
You should not need to run this manually.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	return cmd
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if daemon.IsRunning(cfg.DataDir) {
		pid := daemon.GetRunningPID(cfg.DataDir)
		fmt.Fprintf(os.Stderr, "daemon already running (pid=%d)\n", pid)
		os.Exit(ExitDaemonError)
		return nil
	}

	return daemon.New(cfg).Run()
}

// ensureDaemon starts the daemon if it's not already running and waits for
// its HTTP API to come up. Called from PersistentPreRun.
func ensureDaemon() {
	c, cfg, err := getClient()
	if err != nil {
		return
	}

	ctx := context.Background()
	if c.IsRunning(ctx) {
		return
	}

	if _, err := daemon.StartInBackground(cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to start daemon: %v\n", err)
		return
	}

	if err := c.WaitForHealthy(ctx, 5*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "warning: daemon did not become healthy: %v\n", err)
	}
}
