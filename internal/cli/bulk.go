package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/client"
	"github.com/s22625/casetab/internal/jira"
	"github.com/s22625/casetab/internal/model"
)

type bulkOptions struct {
	IssueType string
	NoLinks   bool
}

func newBulkCmd() *cobra.Command {
	opts := &bulkOptions{}

	cmd := &cobra.Command{
		Use:   "bulk-create",
		Short: "Create the persisted draft as Jira issues",
		Long: `Create all non-empty rows of the persisted draft as Jira issues in
one bulk request.

Each new issue is linked to the keys in its link column using the
configured link type (default "Relates" for Test rows, "Problem/Incident"
for Bug rows); --no-links skips link creation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.IssueType, "type", "t", "Test", "Issue type (Test|Bug)")
	cmd.Flags().BoolVar(&opts.NoLinks, "no-links", false, "Skip creating issue links")

	return cmd
}

func runBulk(opts *bulkOptions) error {
	issueType, err := model.ParseIssueType(opts.IssueType)
	if err != nil {
		return err
	}

	c, _, err := getClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	rows, err := c.LoadDB(ctx, issueType)
	if err != nil {
		return fail(ExitDaemonError, err)
	}

	res, err := c.BulkCreate(ctx, issueType, rows, !opts.NoLinks)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrNoRows), errors.Is(err, client.ErrTooManyRows):
			return fail(ExitValidation, fmt.Errorf("bulk create: %w", err))
		case errors.Is(err, client.ErrNotConnected):
			return fail(ExitJiraError, fmt.Errorf("not connected to Jira; run `casetab login` first"))
		default:
			return fail(ExitJiraError, fmt.Errorf("bulk create: %w", err))
		}
	}

	if globalOpts.JSON {
		output := struct {
			OK          bool                `json:"ok"`
			Issues      []jira.CreatedIssue `json:"issues"`
			JiraBaseURL string              `json:"jira_base_url,omitempty"`
		}{OK: true, Issues: res.Issues, JiraBaseURL: res.JiraBaseURL}
		return json.NewEncoder(os.Stdout).Encode(output)
	}

	fmt.Printf("Created %d issue(s)\n", len(res.Issues))
	for _, is := range res.Issues {
		if res.JiraBaseURL != "" {
			fmt.Printf("  %s  %s/browse/%s\n", is.Key, res.JiraBaseURL, is.Key)
		} else {
			fmt.Printf("  %s\n", is.Key)
		}
	}
	return nil
}
