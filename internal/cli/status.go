package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and Jira connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}

	return cmd
}

func runStatus() error {
	c, cfg, err := getClient()
	if err != nil {
		return err
	}

	type statusOutput struct {
		DaemonRunning bool   `json:"daemon_running"`
		DaemonPID     int    `json:"daemon_pid,omitempty"`
		ListenAddr    string `json:"listen_addr"`
		Connected     bool   `json:"connected"`
		CloudURL      string `json:"cloud_url,omitempty"`
	}

	out := statusOutput{ListenAddr: cfg.ListenAddr}
	out.DaemonRunning = daemon.IsRunning(cfg.DataDir)
	if out.DaemonRunning {
		out.DaemonPID = daemon.GetRunningPID(cfg.DataDir)
	}

	if out.DaemonRunning {
		if status, err := c.OAuthStatus(context.Background()); err == nil {
			out.Connected = status.Connected
			out.CloudURL = status.CloudURL
		}
	}

	if globalOpts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if out.DaemonRunning {
		fmt.Printf("daemon:  running (pid=%d) on %s\n", out.DaemonPID, out.ListenAddr)
	} else {
		fmt.Println("daemon:  not running")
	}
	if out.Connected {
		fmt.Printf("jira:    connected to %s\n", out.CloudURL)
	} else {
		fmt.Println("jira:    not connected")
	}
	return nil
}
