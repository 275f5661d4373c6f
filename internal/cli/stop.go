package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/daemon"
)

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the backend daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStopDaemon()
		},
	}

	return cmd
}

func runStopDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !daemon.IsRunning(cfg.DataDir) {
		fmt.Println("daemon not running")
		return nil
	}

	pid := daemon.GetRunningPID(cfg.DataDir)
	if err := daemon.Kill(cfg.DataDir); err != nil {
		return err
	}

	fmt.Printf("stopped daemon (pid=%d)\n", pid)
	return nil
}
