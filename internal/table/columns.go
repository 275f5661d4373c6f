package table

import (
	"github.com/s22625/casetab/internal/model"
)

// column binds a table column to a Row field
type column struct {
	key      string
	width    int
	multiRow bool // edited in the overlay editor rather than inline
	title    func(t model.IssueType) string
	get      func(r *model.Row) string
	set      func(r *model.Row, v string)
	editable func(t model.IssueType) bool
}

const (
	colSummary = iota
	colIssueType
	colDescription
	colLink
	colAssignee
	colLabels
	colTeam
	colSeverity
)

func always(model.IssueType) bool { return true }
func never(model.IssueType) bool  { return false }

func staticTitle(s string) func(model.IssueType) string {
	return func(model.IssueType) string { return s }
}

// tableColumns returns the column set in display order. The link column
// title and severity editability depend on the current issue type.
func tableColumns() []column {
	return []column{
		{
			key:      "summary",
			width:    24,
			multiRow: true,
			title:    staticTitle("Summary"),
			get:      func(r *model.Row) string { return r.Summary },
			set:      func(r *model.Row, v string) { r.Summary = v },
			editable: always,
		},
		{
			key:   "issue_type",
			width: 6,
			title: staticTitle("Type"),
			get:   func(r *model.Row) string { return r.IssueType },
			set:   func(r *model.Row, v string) {}, // mirrors the global selector
			editable: never,
		},
		{
			key:      "description",
			width:    28,
			multiRow: true,
			title:    staticTitle("Description"),
			get:      func(r *model.Row) string { return r.Description },
			set:      func(r *model.Row, v string) { r.Description = v },
			editable: always,
		},
		{
			key:   "link_relates",
			width: 16,
			title: func(t model.IssueType) string { return t.LinkColumnHeader() },
			get:   func(r *model.Row) string { return r.LinkRelates },
			set:   func(r *model.Row, v string) { r.LinkRelates = v },
			editable: always,
		},
		{
			key:   "assignee",
			width: 18,
			title: staticTitle("Assignee"),
			get:   func(r *model.Row) string { return r.Assignee },
			set:   func(r *model.Row, v string) { r.Assignee = v },
			editable: always,
		},
		{
			key:   "labels",
			width: 16,
			title: staticTitle("Labels"),
			get:   func(r *model.Row) string { return r.Labels },
			set: func(r *model.Row, v string) {
				// normalize to the space-joined set form
				r.Labels = model.JoinLabels(model.ParseLabels(v))
			},
			editable: always,
		},
		{
			key:   "nsoc_team",
			width: 12,
			title: staticTitle("NSOC Team"),
			get:   func(r *model.Row) string { return r.NSOCTeam },
			set:   func(r *model.Row, v string) { r.NSOCTeam = v },
			editable: always,
		},
		{
			key:   "severity",
			width: 9,
			title: staticTitle("Severity"),
			get:   func(r *model.Row) string { return r.Severity },
			set:   func(r *model.Row, v string) { r.Severity = v },
			editable: func(t model.IssueType) bool { return t.SeverityEnabled() },
		},
	}
}
