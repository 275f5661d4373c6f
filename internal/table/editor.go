package table

import (
	"errors"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/s22625/casetab/internal/model"
)

type editorKind int

const (
	editorSummary editorKind = iota
	editorDescription
)

var errNoTemplateType = errors.New("select a template type first (ctrl+p)")

// editorState is the overlay for expanded editing of a single cell. Summary
// cells get a one-line input, description cells a multi-line area with
// template insertion. The template type context is chosen inside the
// overlay, independent of the global issue type.
type editorState struct {
	kind   editorKind
	rowIdx int
	col    int

	input textinput.Model
	area  textarea.Model

	templateType model.IssueType
	warning      string
}

func newSummaryEditor(rowIdx, col int, value string, width int) editorState {
	input := textinput.New()
	input.CharLimit = 512
	input.Width = width
	input.SetValue(value)
	input.Focus()
	input.CursorEnd()
	return editorState{
		kind:   editorSummary,
		rowIdx: rowIdx,
		col:    col,
		input:  input,
	}
}

func newDescriptionEditor(rowIdx, col int, value string, width, height int) editorState {
	area := textarea.New()
	area.CharLimit = 0
	area.ShowLineNumbers = false
	area.SetWidth(width)
	area.SetHeight(height)
	area.SetValue(value)
	area.Focus()
	return editorState{
		kind:   editorDescription,
		rowIdx: rowIdx,
		col:    col,
		area:   area,
	}
}

func (e *editorState) value() string {
	if e.kind == editorSummary {
		return e.input.Value()
	}
	return e.area.Value()
}

// cycleTemplateType advances the template context: none -> Test -> Bug -> none
func (e *editorState) cycleTemplateType() {
	switch e.templateType {
	case "":
		e.templateType = model.IssueTypeTest
	case model.IssueTypeTest:
		e.templateType = model.IssueTypeBug
	default:
		e.templateType = ""
	}
	e.warning = ""
}

// insertTemplate appends the template for the chosen type to the current
// content. Without a chosen type the content is left untouched.
func (e *editorState) insertTemplate() error {
	if e.kind != editorDescription {
		return errors.New("templates apply to descriptions only")
	}
	if e.templateType == "" {
		return errNoTemplateType
	}
	e.area.SetValue(model.AppendTemplate(e.area.Value(), e.templateType))
	e.area.CursorEnd()
	return nil
}

func (e *editorState) templateLabel() string {
	if e.templateType == "" {
		return "none"
	}
	return string(e.templateType)
}
