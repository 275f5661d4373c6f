// Package table implements the interactive draft editor: a row table with
// inline cell editing, an overlay editor for long text, debounced autosave
// against the daemon, and Jira bulk-create actions.
package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/s22625/casetab/internal/client"
	"github.com/s22625/casetab/internal/jira"
	"github.com/s22625/casetab/internal/model"
)

const (
	defaultAutosaveDelay  = 3000 * time.Millisecond
	defaultStatusInterval = 15 * time.Second
)

// Backend is the slice of the daemon API the editor uses. *client.Client
// implements it; tests substitute a fake.
type Backend interface {
	SaveDB(ctx context.Context, issueType model.IssueType, rows []model.Row) (int, error)
	LoadDB(ctx context.Context, issueType model.IssueType) ([]model.Row, error)
	ClearDB(ctx context.Context, issueType model.IssueType) (int, error)
	SaveCSV(ctx context.Context, issueType model.IssueType, rows []model.Row) (string, error)
	OAuthStatus(ctx context.Context) (*jira.StatusInfo, error)
	LoginURL(ctx context.Context) (string, error)
	UserSearch(ctx context.Context, query string) ([]jira.User, error)
	BulkCreate(ctx context.Context, issueType model.IssueType, rows []model.Row, createLinks bool) (*client.BulkResult, error)
}

type mode int

const (
	modeTable mode = iota
	modeEditCell
	modeEditor
	modeConfirmClear
	modeUserSearch
	modeLogin
)

type userSearchState struct {
	query   string
	rowIdx  int
	users   []jira.User
	cursor  int
	loading bool
}

// Options configures the editor model.
type Options struct {
	IssueType      model.IssueType
	AutosaveDelay  time.Duration
	StatusInterval time.Duration
}

// Model is the bubbletea model for the draft editor.
type Model struct {
	backend Backend

	issueType model.IssueType
	rows      []model.Row
	columns   []column

	cursor int
	col    int
	offset int
	width  int
	height int

	mode    mode
	message string
	msgErr  bool

	cellInput  textinput.Model
	editor     editorState
	userSearch userSearchState

	keymap KeyMap
	styles Styles

	autosaveDelay  time.Duration
	statusInterval time.Duration

	// saveSeq tags debounce timers so a reset timer's stale expiry (and a
	// superseded save's response) can be discarded.
	saveSeq   int
	saving    bool
	dirty     bool
	lastSaved time.Time

	oauth         *jira.StatusInfo
	loginURL      string
	statusChecked bool
}

type loadedMsg struct {
	rows []model.Row
	err  error
}

type autosaveMsg struct {
	seq int
}

type savedMsg struct {
	seq      int
	inserted int
	err      error
}

type clearedMsg struct {
	deleted int
	err     error
}

type exportedMsg struct {
	filename string
	err      error
}

type statusTickMsg time.Time

type statusMsg struct {
	info *jira.StatusInfo
	err  error
}

type loginURLMsg struct {
	url string
	err error
}

type usersMsg struct {
	rowIdx int
	users  []jira.User
	err    error
}

type bulkMsg struct {
	res *client.BulkResult
	err error
}

// New creates the editor model.
func New(backend Backend, opts Options) *Model {
	issueType := opts.IssueType
	if issueType == "" {
		issueType = model.IssueTypeTest
	}
	delay := opts.AutosaveDelay
	if delay <= 0 {
		delay = defaultAutosaveDelay
	}
	interval := opts.StatusInterval
	if interval <= 0 {
		interval = defaultStatusInterval
	}
	m := &Model{
		backend:        backend,
		issueType:      issueType,
		columns:        tableColumns(),
		keymap:         DefaultKeyMap(),
		styles:         DefaultStyles(),
		autosaveDelay:  delay,
		statusInterval: interval,
	}
	m.rows = []model.Row{m.freshRow()}
	return m
}

// Run starts the bubbletea program.
func (m *Model) Run() error {
	program := tea.NewProgram(m, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// Rows returns the current in-memory row set.
func (m *Model) Rows() []model.Row {
	return m.rows
}

// IssueType returns the current global issue type.
func (m *Model) IssueType() model.IssueType {
	return m.issueType
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.statusCmd(), m.statusTickCmd())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Error loading draft: %v", msg.err))
			return m, nil
		}
		m.rows = msg.rows
		if len(m.rows) == 0 {
			// A draft never renders with zero rows.
			m.rows = []model.Row{m.freshRow()}
		}
		model.ApplyPolicy(m.rows, m.issueType)
		m.clampCursor()
		m.setInfo(fmt.Sprintf("Loaded %d row(s)", len(m.rows)))
		return m, nil

	case autosaveMsg:
		if msg.seq != m.saveSeq {
			// A newer edit reset the timer; this expiry is stale.
			return m, nil
		}
		m.saving = true
		return m, m.saveCmd(msg.seq)

	case savedMsg:
		if msg.seq != m.saveSeq {
			// A save for a superseded row set; a fresher one is coming.
			return m, nil
		}
		m.saving = false
		if msg.err != nil {
			if errors.Is(msg.err, client.ErrNoRows) {
				// The persisted draft stays; clearing is an explicit action.
				m.setError("Nothing to save: all rows are empty")
			} else {
				m.setError(fmt.Sprintf("Error saving to DB: %v", msg.err))
			}
			return m, nil
		}
		m.dirty = false
		m.lastSaved = time.Now()
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Error clearing draft: %v", msg.err))
			return m, nil
		}
		m.setInfo(fmt.Sprintf("Cleared %d persisted row(s)", msg.deleted))
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, client.ErrNoRows) {
				m.setError("Nothing to export: all rows are empty")
			} else {
				m.setError(fmt.Sprintf("Error saving CSV: %v", msg.err))
			}
			return m, nil
		}
		m.setInfo(fmt.Sprintf("Exported %s", msg.filename))
		return m, nil

	case statusTickMsg:
		return m, tea.Batch(m.statusCmd(), m.statusTickCmd())

	case statusMsg:
		if msg.err != nil {
			// Keep the last known state; the daemon may be restarting.
			return m, nil
		}
		first := !m.statusChecked
		m.statusChecked = true
		m.oauth = msg.info
		if msg.info.Connected && m.mode == modeLogin {
			m.mode = modeTable
			m.setInfo("Connected to Jira")
			return m, nil
		}
		if first && !msg.info.Connected {
			m.mode = modeLogin
			return m, m.loginURLCmd()
		}
		return m, nil

	case loginURLMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Error starting login: %v", msg.err))
			return m, nil
		}
		m.loginURL = msg.url
		return m, nil

	case usersMsg:
		m.userSearch.loading = false
		if msg.err != nil {
			if errors.Is(msg.err, client.ErrNotConnected) {
				m.setError("Not connected to Jira")
			} else {
				m.setError(fmt.Sprintf("Error searching users: %v", msg.err))
			}
			m.mode = modeTable
			return m, nil
		}
		if len(msg.users) == 0 {
			m.setError(fmt.Sprintf("No users match %q", m.userSearch.query))
			m.mode = modeTable
			return m, nil
		}
		m.userSearch.users = msg.users
		m.userSearch.cursor = 0
		return m, nil

	case bulkMsg:
		if msg.err != nil {
			switch {
			case errors.Is(msg.err, client.ErrTooManyRows):
				m.setError(fmt.Sprintf("Jira bulk create is limited to %d issues per request", jira.BulkCreateLimit))
			case errors.Is(msg.err, client.ErrNoRows):
				m.setError("Nothing to create: all rows are empty")
			case errors.Is(msg.err, client.ErrNotConnected):
				m.setError("Not connected to Jira (press g to log in)")
			default:
				m.setError(fmt.Sprintf("Error creating issues: %v", msg.err))
			}
			return m, nil
		}
		m.setInfo(fmt.Sprintf("Created %d issue(s) at %s", len(msg.res.Issues), msg.res.JiraBaseURL))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case modeTable:
		return m.handleTableKey(msg)
	case modeEditCell:
		return m.handleEditCellKey(msg)
	case modeEditor:
		return m.handleEditorKey(msg)
	case modeConfirmClear:
		return m.handleConfirmClearKey(msg)
	case modeUserSearch:
		return m.handleUserSearchKey(msg)
	case modeLogin:
		return m.handleLoginKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.keymap.Quit:
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
		return m, nil
	case "left", "h":
		if m.col > 0 {
			m.col--
		}
		return m, nil
	case "right", "l":
		if m.col < len(m.columns)-1 {
			m.col++
		}
		return m, nil

	case m.keymap.Edit:
		return m.enterEditMode()

	case m.keymap.AddRow:
		m.rows = append(m.rows, m.freshRow())
		m.cursor = len(m.rows) - 1
		m.ensureCursorVisible()
		return m, m.markDirty()

	case m.keymap.Duplicate:
		return m.duplicateRow()

	case m.keymap.Delete:
		return m.deleteRow()

	case m.keymap.ClearAll:
		m.mode = modeConfirmClear
		return m, nil

	case m.keymap.ToggleType:
		m.issueType = m.issueType.Toggle()
		model.ApplyPolicy(m.rows, m.issueType)
		if m.col == colSeverity && !m.issueType.SeverityEnabled() {
			m.col = colSummary
		}
		m.setInfo(fmt.Sprintf("Issue type: %s", m.issueType))
		return m, m.markDirty()

	case m.keymap.Save:
		m.saveSeq++
		m.saving = true
		return m, m.saveCmd(m.saveSeq)

	case m.keymap.Export:
		return m, m.exportCmd()

	case m.keymap.BulkCreate:
		return m, m.bulkCmd()

	case m.keymap.UserSearch:
		return m.enterUserSearch()

	case m.keymap.Login:
		m.mode = modeLogin
		return m, m.loginURLCmd()

	case m.keymap.Refresh:
		return m, tea.Batch(m.loadCmd(), m.statusCmd())
	}

	return m, nil
}

func (m *Model) enterEditMode() (tea.Model, tea.Cmd) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return m, nil
	}
	col := m.columns[m.col]
	if !col.editable(m.issueType) {
		if m.col == colIssueType {
			m.setError(fmt.Sprintf("Issue type is global; press %s to toggle", m.keymap.ToggleType))
		} else {
			m.setError(fmt.Sprintf("%s is disabled for %s", col.title(m.issueType), m.issueType))
		}
		return m, nil
	}

	value := col.get(&m.rows[m.cursor])
	if col.multiRow {
		width := m.overlayWidth()
		if m.col == colDescription {
			m.editor = newDescriptionEditor(m.cursor, m.col, value, width, 10)
		} else {
			m.editor = newSummaryEditor(m.cursor, m.col, value, width)
		}
		m.mode = modeEditor
		return m, nil
	}

	input := textinput.New()
	input.CharLimit = 512
	input.Width = m.overlayWidth()
	input.SetValue(value)
	input.Focus()
	input.CursorEnd()
	m.cellInput = input
	m.mode = modeEditCell
	return m, nil
}

func (m *Model) duplicateRow() (tea.Model, tea.Cmd) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return m, nil
	}
	// Copy of the source at call time, inserted directly after it.
	dup := m.rows[m.cursor]
	rows := make([]model.Row, 0, len(m.rows)+1)
	rows = append(rows, m.rows[:m.cursor+1]...)
	rows = append(rows, dup)
	rows = append(rows, m.rows[m.cursor+1:]...)
	m.rows = rows
	m.cursor++
	m.ensureCursorVisible()
	return m, m.markDirty()
}

func (m *Model) deleteRow() (tea.Model, tea.Cmd) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return m, nil
	}
	m.rows = append(m.rows[:m.cursor], m.rows[m.cursor+1:]...)
	if len(m.rows) == 0 {
		m.rows = []model.Row{m.freshRow()}
	}
	m.clampCursor()
	return m, m.markDirty()
}

func (m *Model) handleEditCellKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		col := m.columns[m.col]
		col.set(&m.rows[m.cursor], m.cellInput.Value())
		m.mode = modeTable
		return m, m.markDirty()
	case "esc":
		m.mode = modeTable
		return m, nil
	}

	var cmd tea.Cmd
	m.cellInput, cmd = m.cellInput.Update(msg)
	return m, cmd
}

func (m *Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		col := m.columns[m.editor.col]
		col.set(&m.rows[m.editor.rowIdx], m.editor.value())
		m.mode = modeTable
		return m, m.markDirty()
	case "esc":
		// Discard without writing back.
		m.mode = modeTable
		return m, nil
	case "ctrl+t":
		if err := m.editor.insertTemplate(); err != nil {
			m.editor.warning = err.Error()
		}
		return m, nil
	case "ctrl+p":
		if m.editor.kind == editorDescription {
			m.editor.cycleTemplateType()
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.editor.kind == editorSummary {
		m.editor.input, cmd = m.editor.input.Update(msg)
	} else {
		m.editor.area, cmd = m.editor.area.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleConfirmClearKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.rows = []model.Row{m.freshRow()}
		m.cursor = 0
		m.col = colSummary
		m.offset = 0
		m.mode = modeTable
		return m, m.clearCmd()
	default:
		m.mode = modeTable
		return m, nil
	}
}

func (m *Model) handleUserSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeTable
		return m, nil
	case "up", "k":
		if m.userSearch.cursor > 0 {
			m.userSearch.cursor--
		}
		return m, nil
	case "down", "j":
		if m.userSearch.cursor < len(m.userSearch.users)-1 {
			m.userSearch.cursor++
		}
		return m, nil
	case "enter":
		if m.userSearch.cursor >= 0 && m.userSearch.cursor < len(m.userSearch.users) {
			user := m.userSearch.users[m.userSearch.cursor]
			idx := m.userSearch.rowIdx
			if idx >= 0 && idx < len(m.rows) {
				m.rows[idx].Assignee = user.AccountID
				m.setInfo(fmt.Sprintf("Assignee set to %s", user.DisplayName))
				m.mode = modeTable
				return m, m.markDirty()
			}
		}
		m.mode = modeTable
		return m, nil
	}
	return m, nil
}

func (m *Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		return m, m.statusCmd()
	case "s", "enter":
		// Drafting works without Jira; bulk create stays gated.
		m.mode = modeTable
		return m, nil
	}
	return m, nil
}

func (m *Model) enterUserSearch() (tea.Model, tea.Cmd) {
	if m.col != colAssignee {
		m.setError("Move to the Assignee column to search users")
		return m, nil
	}
	query := m.rows[m.cursor].Assignee
	if query == "" {
		m.setError("Type an email in the Assignee cell first")
		return m, nil
	}
	m.userSearch = userSearchState{query: query, rowIdx: m.cursor, loading: true}
	m.mode = modeUserSearch
	return m, m.userSearchCmd(m.cursor, query)
}

// markDirty restarts the autosave debounce timer. Each edit bumps the
// sequence so earlier timers expire as no-ops; exactly one save fires per
// quiet period.
func (m *Model) markDirty() tea.Cmd {
	m.dirty = true
	m.saveSeq++
	seq := m.saveSeq
	return tea.Tick(m.autosaveDelay, func(time.Time) tea.Msg {
		return autosaveMsg{seq: seq}
	})
}

func (m *Model) loadCmd() tea.Cmd {
	issueType := m.issueType
	return func() tea.Msg {
		rows, err := m.backend.LoadDB(context.Background(), issueType)
		return loadedMsg{rows: rows, err: err}
	}
}

func (m *Model) saveCmd(seq int) tea.Cmd {
	issueType := m.issueType
	rows := make([]model.Row, len(m.rows))
	copy(rows, m.rows)
	return func() tea.Msg {
		inserted, err := m.backend.SaveDB(context.Background(), issueType, rows)
		return savedMsg{seq: seq, inserted: inserted, err: err}
	}
}

func (m *Model) clearCmd() tea.Cmd {
	issueType := m.issueType
	return func() tea.Msg {
		deleted, err := m.backend.ClearDB(context.Background(), issueType)
		return clearedMsg{deleted: deleted, err: err}
	}
}

func (m *Model) exportCmd() tea.Cmd {
	issueType := m.issueType
	rows := make([]model.Row, len(m.rows))
	copy(rows, m.rows)
	return func() tea.Msg {
		filename, err := m.backend.SaveCSV(context.Background(), issueType, rows)
		return exportedMsg{filename: filename, err: err}
	}
}

func (m *Model) statusCmd() tea.Cmd {
	return func() tea.Msg {
		info, err := m.backend.OAuthStatus(context.Background())
		return statusMsg{info: info, err: err}
	}
}

func (m *Model) statusTickCmd() tea.Cmd {
	return tea.Tick(m.statusInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func (m *Model) loginURLCmd() tea.Cmd {
	return func() tea.Msg {
		u, err := m.backend.LoginURL(context.Background())
		return loginURLMsg{url: u, err: err}
	}
}

func (m *Model) userSearchCmd(rowIdx int, query string) tea.Cmd {
	return func() tea.Msg {
		users, err := m.backend.UserSearch(context.Background(), query)
		return usersMsg{rowIdx: rowIdx, users: users, err: err}
	}
}

func (m *Model) bulkCmd() tea.Cmd {
	issueType := m.issueType
	rows := make([]model.Row, len(m.rows))
	copy(rows, m.rows)
	return func() tea.Msg {
		res, err := m.backend.BulkCreate(context.Background(), issueType, rows, true)
		return bulkMsg{res: res, err: err}
	}
}

func (m *Model) freshRow() model.Row {
	return model.Row{IssueType: string(m.issueType)}
}

func (m *Model) setInfo(text string) {
	m.message = text
	m.msgErr = false
}

func (m *Model) setError(text string) {
	m.message = text
	m.msgErr = true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

func (m *Model) ensureCursorVisible() {
	visible := m.visibleRows()
	if visible <= 0 {
		m.offset = 0
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	maxOffset := len(m.rows) - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}
