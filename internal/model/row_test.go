package model

import (
	"reflect"
	"testing"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "space separated",
			input: "auth regression smoke",
			want:  []string{"auth", "regression", "smoke"},
		},
		{
			name:  "comma separated",
			input: "auth,regression,smoke",
			want:  []string{"auth", "regression", "smoke"},
		},
		{
			name:  "mixed separators with extra whitespace",
			input: "  auth, regression\tsmoke \n",
			want:  []string{"auth", "regression", "smoke"},
		},
		{
			name:  "duplicates removed keeping first occurrence",
			input: "auth smoke auth regression smoke",
			want:  []string{"auth", "smoke", "regression"},
		},
		{
			name:  "empty string",
			input: "",
			want:  []string{},
		},
		{
			name:  "only separators",
			input: " , ,, ",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLabels(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLabels(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLabelsRoundTrip(t *testing.T) {
	sets := [][]string{
		{},
		{"one"},
		{"auth", "regression", "smoke"},
		{"a", "b", "c", "d", "e", "f"},
		{"with-dash", "with_underscore", "CamelCase"},
	}

	for _, set := range sets {
		got := ParseLabels(JoinLabels(set))
		if len(set) == 0 {
			if len(got) != 0 {
				t.Errorf("round-trip of empty set = %v", got)
			}
			continue
		}
		if !reflect.DeepEqual(got, set) {
			t.Errorf("ParseLabels(JoinLabels(%v)) = %v", set, got)
		}
	}
}

func TestRowIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want bool
	}{
		{
			name: "zero value",
			row:  Row{},
			want: true,
		},
		{
			name: "whitespace only",
			row:  Row{Summary: "   ", Description: "\n\t", Labels: "  "},
			want: true,
		},
		{
			name: "issue type alone does not count",
			row:  Row{IssueType: "Test"},
			want: true,
		},
		{
			name: "summary set",
			row:  Row{Summary: "Login fails"},
			want: false,
		},
		{
			name: "severity set",
			row:  Row{Severity: "High"},
			want: false,
		},
		{
			name: "assignee set with surrounding whitespace",
			row:  Row{Assignee: " dev@example.com "},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterNonEmpty(t *testing.T) {
	rows := []Row{
		{},
		{Summary: "  first  "},
		{Description: "\tsecond\n"},
		{Labels: "   "},
		{Summary: "third", Severity: "Low"},
	}

	got := FilterNonEmpty(rows, IssueTypeBug)
	if len(got) != 3 {
		t.Fatalf("FilterNonEmpty returned %d rows, want 3", len(got))
	}
	if got[0].Summary != "first" {
		t.Errorf("first row summary = %q, want trimmed %q", got[0].Summary, "first")
	}
	if got[1].Description != "second" {
		t.Errorf("second row description = %q", got[1].Description)
	}
	for i, r := range got {
		if r.IssueType != "Bug" {
			t.Errorf("row %d issue_type = %q, want Bug", i, r.IssueType)
		}
	}
}

func TestNormalizeTrimsAllFields(t *testing.T) {
	r := Row{
		Summary:     " s ",
		IssueType:   " Test ",
		Description: " d ",
		LinkRelates: " NSOC-1 ",
		Assignee:    " a@b.c ",
		Labels:      " l1 l2 ",
		NSOCTeam:    " team ",
		Severity:    " High ",
	}
	n := r.Normalize()
	want := Row{
		Summary:     "s",
		IssueType:   "Test",
		Description: "d",
		LinkRelates: "NSOC-1",
		Assignee:    "a@b.c",
		Labels:      "l1 l2",
		NSOCTeam:    "team",
		Severity:    "High",
	}
	if n != want {
		t.Errorf("Normalize() = %+v, want %+v", n, want)
	}
}
