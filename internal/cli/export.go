package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/casetab/internal/model"
)

type exportOptions struct {
	IssueType string
	Output    string
}

func newExportCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the persisted draft to CSV",
		Long: `Export the persisted draft to a CSV file in the daemon's exports
directory. With --output the file is additionally downloaded to the given
local path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.IssueType, "type", "t", "Test", "Issue type (Test|Bug)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Download the CSV to this local path")

	return cmd
}

func runExport(opts *exportOptions) error {
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
	if len(rows) == 0 {
		return fail(ExitValidation, fmt.Errorf("no %s draft to export", issueType))
	}

	filename, err := c.SaveCSV(ctx, issueType, rows)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		data, err := c.DownloadCSV(ctx, filename)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return err
		}
	}

	if globalOpts.JSON {
		output := struct {
			OK       bool   `json:"ok"`
			Filename string `json:"filename"`
			Rows     int    `json:"rows"`
			Output   string `json:"output,omitempty"`
		}{OK: true, Filename: filename, Rows: len(rows), Output: opts.Output}
		return json.NewEncoder(os.Stdout).Encode(output)
	}

	fmt.Printf("Exported %d row(s) to %s\n", len(rows), filename)
	if opts.Output != "" {
		fmt.Printf("Downloaded to %s\n", opts.Output)
	}
	return nil
}
