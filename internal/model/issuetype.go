package model

import "fmt"

// IssueType is the global classification applied uniformly to all rows in
// the current view.
type IssueType string

const (
	IssueTypeTest IssueType = "Test"
	IssueTypeBug  IssueType = "Bug"
)

// IssueTypes lists the valid issue types in display order.
var IssueTypes = []IssueType{IssueTypeTest, IssueTypeBug}

// ParseIssueType validates an issue type string.
func ParseIssueType(s string) (IssueType, error) {
	switch IssueType(s) {
	case IssueTypeTest, IssueTypeBug:
		return IssueType(s), nil
	}
	return "", fmt.Errorf(`issue_type must be "Test" or "Bug", got %q`, s)
}

// Toggle returns the other issue type.
func (t IssueType) Toggle() IssueType {
	if t == IssueTypeTest {
		return IssueTypeBug
	}
	return IssueTypeTest
}

// SeverityEnabled reports whether the severity field is editable for this
// issue type. Test cases carry no severity; selecting Test forces the field
// blank on every row.
func (t IssueType) SeverityEnabled() bool {
	return t != IssueTypeTest
}

// LinkColumnHeader returns the display header for the link column.
func (t IssueType) LinkColumnHeader() string {
	if t == IssueTypeTest {
		return `Link "Relates"`
	}
	return `Link "Problem/Incident"`
}

// CSVHeaders returns the per-type header row for draft CSV exports.
func (t IssueType) CSVHeaders() []string {
	return []string{
		"Summary",
		"Issue Type",
		"Description",
		t.LinkColumnHeader(),
		"Assignee",
		"Labels",
		"NSOC_Team",
		"Severity",
	}
}

// ApplyPolicy enforces the issue-type constraints on a row set in place:
// every row's issue_type mirrors the selector, and severity is cleared when
// the type disallows it. Applying the same type twice is a no-op.
func ApplyPolicy(rows []Row, t IssueType) {
	for i := range rows {
		rows[i].IssueType = string(t)
		if !t.SeverityEnabled() {
			rows[i].Severity = ""
		}
	}
}

const testTemplate = `Preconditions:
-

Steps:
1.
2.
3.

Expected result:
- `

const bugTemplate = `Environment:
-

Steps to reproduce:
1.
2.

Expected behavior:
-

Actual behavior:
- `

// DescriptionTemplate returns the fixed description skeleton inserted by the
// editor overlay for the given issue type.
func DescriptionTemplate(t IssueType) string {
	if t == IssueTypeTest {
		return testTemplate
	}
	return bugTemplate
}

// AppendTemplate appends the per-type template to existing text, separated
// by a blank line when the text is non-empty.
func AppendTemplate(text string, t IssueType) string {
	tmpl := DescriptionTemplate(t)
	if text == "" {
		return tmpl
	}
	return text + "\n\n" + tmpl
}
