package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/model"
)

type showOptions struct {
	IssueType string
}

func newShowCmd() *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the persisted draft",
		Long:  `Show the rows currently persisted for an issue type.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.IssueType, "type", "t", "Test", "Issue type (Test|Bug)")

	return cmd
}

func runShow(opts *showOptions) error {
	issueType, err := model.ParseIssueType(opts.IssueType)
	if err != nil {
		return err
	}

	c, _, err := getClient()
	if err != nil {
		return err
	}

	rows, err := c.LoadDB(context.Background(), issueType)
	if err != nil {
		return fail(ExitDaemonError, err)
	}

	if globalOpts.JSON {
		output := struct {
			OK        bool        `json:"ok"`
			IssueType string      `json:"issue_type"`
			Rows      []model.Row `json:"rows"`
		}{OK: true, IssueType: string(issueType), Rows: rows}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	if len(rows) == 0 {
		fmt.Printf("No %s draft saved\n", issueType)
		return nil
	}

	fmt.Printf("%s draft: %d row(s)\n\n", issueType, len(rows))
	for i, r := range rows {
		fmt.Printf("%3d. %s\n", i+1, firstLine(r.Summary))
		if r.Assignee != "" {
			fmt.Printf("     assignee: %s\n", r.Assignee)
		}
		if r.Labels != "" {
			fmt.Printf("     labels:   %s\n", r.Labels)
		}
		if r.Severity != "" {
			fmt.Printf("     severity: %s\n", r.Severity)
		}
	}
	return nil
}

func firstLine(s string) string {
	if s == "" {
		return "(no summary)"
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
