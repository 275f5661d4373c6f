package jira

import (
	"strings"

	"github.com/s22625/casetab/internal/config"
	"github.com/s22625/casetab/internal/model"
)

// issueUpdate is one element of a bulk-create issueUpdates array.
type issueUpdate struct {
	Fields map[string]any `json:"fields"`
	Update map[string]any `json:"update"`
}

// bulkResponse is Jira's bulk-create response. failedElementNumber indexes
// are zero-based in the documented contract but observed one-based on some
// sites; parseBulkIndexMap tolerates both.
type bulkResponse struct {
	Issues []bulkIssue `json:"issues"`
	Errors []bulkError `json:"errors"`
}

type bulkIssue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type bulkError struct {
	FailedElementNumber *int `json:"failedElementNumber"`
}

// buildIssueUpdates converts rows into bulk-create issue updates. Rows with
// a blank summary are skipped; kept rows are returned aligned with the
// update indexes so links can be created afterwards.
func buildIssueUpdates(cfg config.JiraConfig, issueType model.IssueType, rows []model.Row) ([]issueUpdate, []model.Row) {
	updates := make([]issueUpdate, 0, len(rows))
	kept := make([]model.Row, 0, len(rows))

	for _, r := range rows {
		n := r.Normalize()
		if n.Summary == "" {
			continue
		}

		labels := model.ParseLabels(n.Labels)
		fields := map[string]any{
			"project":     map[string]string{"key": cfg.ProjectKey},
			"issuetype":   map[string]string{"name": string(issueType)},
			"summary":     n.Summary,
			"description": DocFromText(n.Description),
			"labels":      labels,
		}
		if n.Assignee != "" {
			fields["assignee"] = map[string]string{"accountId": n.Assignee}
		}
		if cfg.FieldNSOCTeam != "" && n.NSOCTeam != "" {
			fields[cfg.FieldNSOCTeam] = n.NSOCTeam
		}
		if cfg.FieldSeverity != "" && n.Severity != "" {
			fields[cfg.FieldSeverity] = n.Severity
		}

		updates = append(updates, issueUpdate{Fields: fields, Update: map[string]any{}})
		kept = append(kept, n)
	}

	return updates, kept
}

// parseBulkIndexMap maps submitted update indexes to created issue keys.
// Jira returns created issues in submission order with failed elements
// removed; failure indexes may be zero- or one-based.
func parseBulkIndexMap(resp *bulkResponse, nUpdates int) map[int]string {
	failedNums := make([]int, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		if e.FailedElementNumber != nil {
			failedNums = append(failedNums, *e.FailedElementNumber)
		}
	}

	oneBased := false
	for _, n := range failedNums {
		if n >= nUpdates {
			oneBased = true
			break
		}
	}

	failed := make(map[int]bool, len(failedNums))
	for _, n := range failedNums {
		if oneBased {
			failed[n-1] = true
		} else {
			failed[n] = true
		}
	}

	mapping := make(map[int]string)
	issueIdx := 0
	for i := 0; i < nUpdates && issueIdx < len(resp.Issues); i++ {
		if failed[i] {
			continue
		}
		if key := resp.Issues[issueIdx].Key; key != "" {
			mapping[i] = key
		}
		issueIdx++
	}
	return mapping
}

// SplitIssueKeys splits a link_relates value on commas and whitespace.
func SplitIssueKeys(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
