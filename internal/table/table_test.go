package table

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/s22625/casetab/internal/client"
	"github.com/s22625/casetab/internal/jira"
	"github.com/s22625/casetab/internal/model"
)

type fakeBackend struct {
	loadRows []model.Row
	loadErr  error

	saveCalls int
	saveRows  [][]model.Row
	saveErr   error

	clearCalls int
	exportName string
	exportErr  error

	status    *jira.StatusInfo
	bulkCalls int
	bulkErr   error
	users     []jira.User
}

func (f *fakeBackend) SaveDB(_ context.Context, issueType model.IssueType, rows []model.Row) (int, error) {
	if len(model.FilterNonEmpty(rows, issueType)) == 0 {
		return 0, client.ErrNoRows
	}
	f.saveCalls++
	f.saveRows = append(f.saveRows, rows)
	return len(rows), f.saveErr
}

func (f *fakeBackend) LoadDB(_ context.Context, _ model.IssueType) ([]model.Row, error) {
	return f.loadRows, f.loadErr
}

func (f *fakeBackend) ClearDB(_ context.Context, _ model.IssueType) (int, error) {
	f.clearCalls++
	return 0, nil
}

func (f *fakeBackend) SaveCSV(_ context.Context, _ model.IssueType, _ []model.Row) (string, error) {
	return f.exportName, f.exportErr
}

func (f *fakeBackend) OAuthStatus(_ context.Context) (*jira.StatusInfo, error) {
	if f.status == nil {
		return &jira.StatusInfo{Connected: true}, nil
	}
	return f.status, nil
}

func (f *fakeBackend) LoginURL(_ context.Context) (string, error) {
	return "https://auth.example.com/authorize", nil
}

func (f *fakeBackend) UserSearch(_ context.Context, _ string) ([]jira.User, error) {
	return f.users, nil
}

func (f *fakeBackend) BulkCreate(_ context.Context, issueType model.IssueType, rows []model.Row, _ bool) (*client.BulkResult, error) {
	kept := model.FilterNonEmpty(rows, issueType)
	if len(kept) > jira.BulkCreateLimit {
		return nil, client.ErrTooManyRows
	}
	f.bulkCalls++
	return &client.BulkResult{}, f.bulkErr
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain applies a command's message back to the model, following batches.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if msg == nil {
		return
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			drain(t, m, c)
		}
		return
	}
	_, next := m.Update(msg)
	drain(t, m, next)
}

func TestLoadEmptyDraftLeavesOneRow(t *testing.T) {
	m := New(&fakeBackend{}, Options{})

	_, cmd := m.Update(loadedMsg{rows: nil})
	if cmd != nil {
		t.Fatalf("unexpected command after load")
	}
	if len(m.Rows()) != 1 {
		t.Fatalf("rows = %d, want exactly 1", len(m.Rows()))
	}
	if !m.Rows()[0].IsEmpty() {
		t.Fatalf("expected a fresh empty row, got %+v", m.Rows()[0])
	}
}

func TestLoadHydratesRowsAndAppliesPolicy(t *testing.T) {
	m := New(&fakeBackend{}, Options{IssueType: model.IssueTypeTest})

	m.Update(loadedMsg{rows: []model.Row{
		{Summary: "a", Severity: "High"},
		{Summary: "b"},
	}})

	if len(m.Rows()) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.Rows()))
	}
	for _, r := range m.Rows() {
		if r.IssueType != "Test" {
			t.Errorf("row type = %q, want Test", r.IssueType)
		}
		if r.Severity != "" {
			t.Errorf("severity = %q, want cleared for Test", r.Severity)
		}
	}
}

func TestDuplicateRowInsertsAfterSource(t *testing.T) {
	m := New(&fakeBackend{}, Options{})
	m.rows = []model.Row{
		{IssueType: "Test", Summary: "first"},
		{IssueType: "Test", Summary: "second"},
	}
	m.cursor = 0

	m.Update(keyRunes("d"))

	if len(m.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(m.rows))
	}
	if m.rows[1].Summary != "first" {
		t.Fatalf("duplicate not inserted after source: %+v", m.rows)
	}
	if m.rows[2].Summary != "second" {
		t.Fatalf("trailing rows shifted wrong: %+v", m.rows)
	}
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1 (the duplicate)", m.cursor)
	}
}

func TestDeleteLastRowLeavesFreshRow(t *testing.T) {
	m := New(&fakeBackend{}, Options{})
	m.rows = []model.Row{{IssueType: "Test", Summary: "only"}}
	m.cursor = 0

	m.Update(keyRunes("x"))

	if len(m.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(m.rows))
	}
	if !m.rows[0].IsEmpty() {
		t.Fatalf("expected fresh empty row, got %+v", m.rows[0])
	}
}

func TestToggleTypeClearsSeverityWithoutRestore(t *testing.T) {
	m := New(&fakeBackend{}, Options{IssueType: model.IssueTypeBug})
	m.rows = []model.Row{{IssueType: "Bug", Summary: "boom", Severity: "High"}}

	m.Update(keyRunes("t")) // Bug -> Test
	if m.rows[0].Severity != "" {
		t.Fatalf("severity = %q, want cleared", m.rows[0].Severity)
	}

	m.Update(keyRunes("t")) // Test -> Bug: cleared value stays cleared
	if m.rows[0].Severity != "" {
		t.Fatalf("severity = %q, want still empty after re-enable", m.rows[0].Severity)
	}
	if m.rows[0].IssueType != "Bug" {
		t.Fatalf("issue type = %q, want Bug", m.rows[0].IssueType)
	}
}

func TestDebounceCollapsesRapidEdits(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend, Options{})
	m.rows = []model.Row{{IssueType: "Test", Summary: "seed"}}

	// Two edits in quick succession each restart the timer.
	m.Update(keyRunes("a"))
	firstSeq := m.saveSeq
	m.Update(keyRunes("a"))

	// The first timer fires with a stale sequence: dropped, no save.
	_, cmd := m.Update(autosaveMsg{seq: firstSeq})
	if cmd != nil {
		t.Fatal("stale debounce expiry must not trigger a save")
	}
	if backend.saveCalls != 0 {
		t.Fatalf("saves = %d, want 0 before current timer fires", backend.saveCalls)
	}

	// The current timer fires: exactly one save.
	_, cmd = m.Update(autosaveMsg{seq: m.saveSeq})
	if cmd == nil {
		t.Fatal("current debounce expiry must trigger a save")
	}
	drain(t, m, cmd)
	if backend.saveCalls != 1 {
		t.Fatalf("saves = %d, want exactly 1", backend.saveCalls)
	}
}

func TestSaveAllEmptyKeepsPersistedDraft(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend, Options{})

	// Only a fresh empty row on screen: a save attempt must not reach the
	// backend, so the persisted draft survives an accidental delete-all.
	_, cmd := m.Update(keyRunes("s"))
	drain(t, m, cmd)

	if backend.saveCalls != 0 {
		t.Fatalf("saves = %d, want 0 for an all-empty draft", backend.saveCalls)
	}
	if !strings.Contains(m.message, "all rows are empty") {
		t.Fatalf("message = %q, want the empty-draft notice", m.message)
	}
}

func TestStaleSaveResponseDropped(t *testing.T) {
	m := New(&fakeBackend{}, Options{})
	m.saveSeq = 5
	m.saving = true

	m.Update(savedMsg{seq: 3, err: nil})
	if !m.saving {
		t.Fatal("stale save response must not clear the saving state")
	}

	m.Update(savedMsg{seq: 5, err: nil})
	if m.saving {
		t.Fatal("current save response should clear the saving state")
	}
	if m.dirty {
		t.Fatal("successful save should clear dirty")
	}
}

func TestBulkCreateOverLimitShowsCeiling(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend, Options{})
	rows := make([]model.Row, 51)
	for i := range rows {
		rows[i] = model.Row{IssueType: "Test", Summary: "case"}
	}
	m.rows = rows

	_, cmd := m.Update(keyRunes("b"))
	drain(t, m, cmd)

	if backend.bulkCalls != 0 {
		t.Fatalf("bulk created %d times, want 0", backend.bulkCalls)
	}
	if !strings.Contains(m.message, "50") {
		t.Fatalf("message = %q, want mention of the 50-row ceiling", m.message)
	}
}

func TestTemplateWithoutTypeContextWarns(t *testing.T) {
	m := New(&fakeBackend{}, Options{IssueType: model.IssueTypeTest})
	m.rows = []model.Row{{IssueType: "Test", Summary: "Login fails"}}
	m.cursor = 0
	m.col = colDescription

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeEditor {
		t.Fatalf("mode = %v, want editor", m.mode)
	}

	// The overlay's template context starts unset regardless of the
	// global issue type.
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})

	if m.editor.warning == "" {
		t.Fatal("expected a warning when no template type is chosen")
	}
	if m.editor.area.Value() != "" {
		t.Fatalf("description changed: %q", m.editor.area.Value())
	}

	// Choosing a context makes insertion work.
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.editor.area.Value() == "" {
		t.Fatal("expected template content after choosing a type")
	}
}

func TestEditorSaveWritesBack(t *testing.T) {
	m := New(&fakeBackend{}, Options{})
	m.rows = []model.Row{{IssueType: "Test"}}
	m.cursor = 0
	m.col = colSummary

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeEditor || m.editor.kind != editorSummary {
		t.Fatalf("expected summary editor, mode=%v kind=%v", m.mode, m.editor.kind)
	}
	m.editor.input.SetValue("Login fails")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.rows[0].Summary != "Login fails" {
		t.Fatalf("summary = %q, want written back", m.rows[0].Summary)
	}
	if !m.dirty {
		t.Fatal("editor save should mark the draft dirty")
	}
}

func TestEditorEscapeDiscards(t *testing.T) {
	m := New(&fakeBackend{}, Options{})
	m.rows = []model.Row{{IssueType: "Test", Description: "keep me"}}
	m.cursor = 0
	m.col = colDescription

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.editor.area.SetValue("changed")
	m.Update(tea.KeyMsg{Type: tea.KeyEscape})

	if m.rows[0].Description != "keep me" {
		t.Fatalf("description = %q, want unchanged", m.rows[0].Description)
	}
}

func TestSeverityEditBlockedForTest(t *testing.T) {
	m := New(&fakeBackend{}, Options{IssueType: model.IssueTypeTest})
	m.rows = []model.Row{{IssueType: "Test"}}
	m.cursor = 0
	m.col = colSeverity

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeTable {
		t.Fatalf("mode = %v, want table (severity disabled for Test)", m.mode)
	}
	if m.message == "" {
		t.Fatal("expected an inline message about the disabled field")
	}
}

func TestClearAllRequiresConfirmation(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend, Options{})
	m.rows = []model.Row{
		{IssueType: "Test", Summary: "a"},
		{IssueType: "Test", Summary: "b"},
	}

	m.Update(keyRunes("C"))
	if m.mode != modeConfirmClear {
		t.Fatalf("mode = %v, want confirm", m.mode)
	}

	// Any non-confirm key cancels.
	m.Update(keyRunes("n"))
	if len(m.rows) != 2 || backend.clearCalls != 0 {
		t.Fatal("cancel must not clear anything")
	}

	m.Update(keyRunes("C"))
	_, cmd := m.Update(keyRunes("y"))
	drain(t, m, cmd)

	if len(m.rows) != 1 || !m.rows[0].IsEmpty() {
		t.Fatalf("rows after clear = %+v, want one fresh row", m.rows)
	}
	if backend.clearCalls != 1 {
		t.Fatalf("clear calls = %d, want 1", backend.clearCalls)
	}
}

func TestDisconnectedStartupEntersLoginMode(t *testing.T) {
	backend := &fakeBackend{status: &jira.StatusInfo{Connected: false}}
	m := New(backend, Options{})

	_, cmd := m.Update(statusMsg{info: &jira.StatusInfo{Connected: false}})
	if m.mode != modeLogin {
		t.Fatalf("mode = %v, want login on first disconnected status", m.mode)
	}
	drain(t, m, cmd)
	if m.loginURL == "" {
		t.Fatal("expected authorize URL to be fetched")
	}

	// A later connected status returns to the table.
	m.Update(statusMsg{info: &jira.StatusInfo{Connected: true}})
	if m.mode != modeTable {
		t.Fatalf("mode = %v, want table after connect", m.mode)
	}
}
