package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type loginOptions struct {
	Timeout time.Duration
}

func newLoginCmd() *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect to Jira via Atlassian OAuth",
		Long: `Start the Atlassian OAuth flow.

Prints the authorize URL to open in a browser, then waits for the
callback to land on the daemon.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 3*time.Minute, "How long to wait for the browser login")

	return cmd
}

func runLogin(opts *loginOptions) error {
	c, _, err := getClient()
	if err != nil {
		return err
	}

	ctx := context.Background()

	status, err := c.OAuthStatus(ctx)
	if err != nil {
		return err
	}
	if status.Connected {
		fmt.Printf("Already connected to %s\n", status.CloudURL)
		return nil
	}

	loginURL, err := c.LoginURL(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Open this URL in a browser to authorize:")
	fmt.Println()
	fmt.Printf("  %s\n", loginURL)
	fmt.Println()
	fmt.Println("Waiting for the callback...")

	deadline := time.Now().Add(opts.Timeout)
	for time.Now().Before(deadline) {
		time.Sleep(2 * time.Second)
		status, err := c.OAuthStatus(ctx)
		if err != nil {
			continue
		}
		if status.Connected {
			fmt.Printf("Connected to %s\n", status.CloudURL)
			return nil
		}
	}

	return fmt.Errorf("login timed out after %s", opts.Timeout)
}
