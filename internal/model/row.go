package model

import (
	"strings"
)

// Row represents one draft issue in the table. All fields travel as plain
// strings on the wire; labels is a single space-joined string, not an array.
type Row struct {
	Summary     string `json:"summary"`
	IssueType   string `json:"issue_type"`
	Description string `json:"description"`
	LinkRelates string `json:"link_relates"`
	Assignee    string `json:"assignee"`
	Labels      string `json:"labels"`
	NSOCTeam    string `json:"nsoc_team"`
	Severity    string `json:"severity"`
}

// Normalize returns a copy of the row with all fields trimmed.
func (r Row) Normalize() Row {
	return Row{
		Summary:     strings.TrimSpace(r.Summary),
		IssueType:   strings.TrimSpace(r.IssueType),
		Description: strings.TrimSpace(r.Description),
		LinkRelates: strings.TrimSpace(r.LinkRelates),
		Assignee:    strings.TrimSpace(r.Assignee),
		Labels:      strings.TrimSpace(r.Labels),
		NSOCTeam:    strings.TrimSpace(r.NSOCTeam),
		Severity:    strings.TrimSpace(r.Severity),
	}
}

// IsEmpty reports whether every editable field is blank after trimming.
// IssueType is excluded: it mirrors the global selector and is stamped onto
// rows at serialization time, so it never makes a row non-empty by itself.
func (r Row) IsEmpty() bool {
	n := r.Normalize()
	return n.Summary == "" &&
		n.Description == "" &&
		n.LinkRelates == "" &&
		n.Assignee == "" &&
		n.Labels == "" &&
		n.NSOCTeam == "" &&
		n.Severity == ""
}

// FilterNonEmpty returns the normalized non-empty rows, each stamped with
// the given issue type. Order is preserved.
func FilterNonEmpty(rows []Row, issueType IssueType) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.IsEmpty() {
			continue
		}
		n := r.Normalize()
		n.IssueType = string(issueType)
		out = append(out, n)
	}
	return out
}

// ParseLabels splits a label string on commas and whitespace, dropping
// blanks and duplicates. First-seen order is preserved.
func ParseLabels(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// JoinLabels serializes a label set as a space-joined string.
// JoinLabels and ParseLabels round-trip for whitespace-free tokens.
func JoinLabels(labels []string) string {
	return strings.Join(labels, " ")
}

// CSVRecord returns the row's fields in the column order used by draft CSV
// exports.
func (r Row) CSVRecord() []string {
	return []string{
		r.Summary,
		r.IssueType,
		r.Description,
		r.LinkRelates,
		r.Assignee,
		r.Labels,
		r.NSOCTeam,
		r.Severity,
	}
}
