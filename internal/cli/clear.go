package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/model"
)

type clearOptions struct {
	IssueType string
	Yes       bool
}

func newClearCmd() *cobra.Command {
	opts := &clearOptions{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted draft",
		Long:  `Delete all persisted rows for an issue type. Asks for confirmation unless --yes is given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.IssueType, "type", "t", "Test", "Issue type (Test|Bug)")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runClear(opts *clearOptions) error {
	issueType, err := model.ParseIssueType(opts.IssueType)
	if err != nil {
		return err
	}

	if !opts.Yes {
		fmt.Printf("Delete the persisted %s draft? [y/N] ", issueType)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	c, _, err := getClient()
	if err != nil {
		return err
	}

	deleted, err := c.ClearDB(context.Background(), issueType)
	if err != nil {
		return fail(ExitDaemonError, err)
	}

	fmt.Printf("Deleted %d row(s)\n", deleted)
	return nil
}
