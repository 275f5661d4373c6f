package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/model"
	"github.com/s22625/casetab/internal/table"
)

type editOptions struct {
	IssueType string
}

func newEditCmd() *cobra.Command {
	opts := &editOptions{}

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Open the interactive draft editor",
		Long: `Open the interactive table editor for the current draft.

Edits autosave to the daemon after a short quiet period. The footer lists
keys for row actions, CSV export, and Jira bulk create.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.IssueType, "type", "t", "Test", "Issue type to draft (Test|Bug)")

	return cmd
}

func runEdit(opts *editOptions) error {
	issueType, err := model.ParseIssueType(opts.IssueType)
	if err != nil {
		return err
	}

	c, cfg, err := getClient()
	if err != nil {
		return err
	}

	m := table.New(c, table.Options{
		IssueType:     issueType,
		AutosaveDelay: time.Duration(cfg.AutosaveDelayMS) * time.Millisecond,
	})
	if err := m.Run(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}
