// Package cli implements the casetab command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/client"
	"github.com/s22625/casetab/internal/config"
)

// Exit codes
const (
	ExitOK            = 0
	ExitValidation    = 2
	ExitDaemonError   = 3
	ExitJiraError     = 4
	ExitInternalError = 10
)

// GlobalOptions holds options shared across all commands
type GlobalOptions struct {
	DataDir    string
	ListenAddr string
	JSON       bool
	LogLevel   string
}

var globalOpts = &GlobalOptions{}

// Commands that should NOT auto-start the daemon
var noDaemonCommands = map[string]bool{
	"serve":      true,
	"stop":       true,
	"status":     true,
	"help":       true,
	"completion": true,
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "casetab",
	Short: "Draft and bulk-create Jira test cases and bug reports",
	Long: `casetab is a table editor for drafting Jira test cases and bug reports.

Drafts autosave to a local SQLite database through a background daemon,
export to CSV, and bulk-create as Jira issues over Atlassian OAuth.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !noDaemonCommands[cmd.Name()] {
			ensureDaemon()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.DataDir, "data-dir", "", "Data directory for drafts and exports (or set CASETAB_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.ListenAddr, "addr", "", "Daemon listen address (host:port)")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&globalOpts.LogLevel, "log-level", "", "Daemon log level (error|warn|info|debug)")

	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newBulkCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStopCmd())
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitInternalError)
	}
}

// exit is swapped out in tests.
var exit = os.Exit

// fail prints the error to stderr and terminates with the given exit code.
func fail(code int, err error) error {
	fmt.Fprintln(os.Stderr, err)
	exit(code)
	return err
}

// loadConfig loads configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if globalOpts.DataDir != "" {
		cfg.DataDir = globalOpts.DataDir
	}
	if globalOpts.ListenAddr != "" {
		cfg.ListenAddr = globalOpts.ListenAddr
		cfg.BackendURL = "http://" + globalOpts.ListenAddr
	}
	if globalOpts.LogLevel != "" {
		cfg.LogLevel = globalOpts.LogLevel
	}
	return cfg, nil
}

// getClient returns a daemon API client for the configured address.
func getClient() (*client.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return client.New(cfg.ListenAddr), cfg, nil
}
