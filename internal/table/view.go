package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// View implements tea.Model.
func (m *Model) View() string {
	switch m.mode {
	case modeEditor:
		return m.styles.Box.Render(m.viewEditor())
	case modeConfirmClear:
		return m.styles.Box.Render(m.viewConfirmClear())
	case modeUserSearch:
		return m.styles.Box.Render(m.viewUserSearch())
	case modeLogin:
		return m.styles.Box.Render(m.viewLogin())
	default:
		return m.styles.Box.Render(m.viewTable())
	}
}

func (m *Model) viewTable() string {
	title := m.styles.Title.Render("CASETAB")
	meta := m.renderMeta()
	table := m.renderTable()
	footer := m.styles.Faint.Render(m.keymap.HelpLine())

	lines := []string{
		title,
		"",
		meta,
		"",
		table,
	}

	if m.mode == modeEditCell {
		col := m.columns[m.col]
		prompt := fmt.Sprintf("%s (row %d): %s", col.title(m.issueType), m.cursor+1, m.cellInput.View())
		hint := m.styles.Faint.Render("[enter] apply  [esc] cancel")
		lines = append(lines, "", m.styles.Editing.Render(prompt), hint)
	}

	if msg := m.renderMessage(); msg != "" {
		lines = append(lines, "", msg)
	}
	lines = append(lines, "", footer)
	return strings.Join(lines, "\n")
}

func (m *Model) renderMeta() string {
	typeLabel := fmt.Sprintf("type: %s", m.issueType)
	jiraLabel := "jira: checking..."
	if m.statusChecked {
		if m.oauth != nil && m.oauth.Connected {
			jiraLabel = m.styles.OK.Render("jira: connected")
		} else {
			jiraLabel = m.styles.Warning.Render("jira: disconnected")
		}
	}
	saveLabel := m.renderSaveStatus()
	rowsLabel := fmt.Sprintf("rows: %d", len(m.rows))
	return strings.Join([]string{typeLabel, jiraLabel, saveLabel, rowsLabel}, "  ")
}

func (m *Model) renderSaveStatus() string {
	switch {
	case m.saving:
		return "save: saving..."
	case m.dirty:
		return "save: pending"
	case m.lastSaved.IsZero():
		return "save: -"
	default:
		return fmt.Sprintf("save: %s", formatRelativeTime(m.lastSaved, time.Now()))
	}
}

func (m *Model) renderMessage() string {
	if m.message == "" {
		return ""
	}
	if m.msgErr {
		return m.styles.Error.Render(m.message)
	}
	return m.styles.Faint.Render(m.message)
}

func (m *Model) renderTable() string {
	header := m.renderHeaderRow()

	visible := m.visibleRows()
	start := m.offset
	end := start + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}

	lines := []string{header}
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(i))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderHeaderRow() string {
	cells := make([]string, 0, len(m.columns)+1)
	cells = append(cells, m.pad("#", 3, m.styles.Header))
	for _, col := range m.columns {
		cells = append(cells, m.pad(col.title(m.issueType), col.width, m.styles.Header))
	}
	return strings.Join(cells, "  ")
}

func (m *Model) renderRow(idx int) string {
	row := &m.rows[idx]
	cells := make([]string, 0, len(m.columns)+1)
	cells = append(cells, m.pad(fmt.Sprintf("%d", idx+1), 3, m.styles.Faint))

	for c, col := range m.columns {
		style := m.styles.Text
		if !col.editable(m.issueType) {
			style = m.styles.Disabled
		}
		if idx == m.cursor && c == m.col {
			style = m.styles.Selected
		}
		value := col.get(row)
		// Show only the first line of multi-line values in the grid.
		if i := strings.IndexByte(value, '\n'); i >= 0 {
			value = value[:i] + " …"
		}
		cells = append(cells, m.pad(value, col.width, style))
	}
	return strings.Join(cells, "  ")
}

func (m *Model) viewEditor() string {
	col := m.columns[m.editor.col]
	title := m.styles.Title.Render(fmt.Sprintf("EDIT %s (row %d)", strings.ToUpper(col.title(m.issueType)), m.editor.rowIdx+1))

	lines := []string{title, ""}
	if m.editor.kind == editorSummary {
		lines = append(lines, m.editor.input.View())
		lines = append(lines, "", m.styles.Faint.Render("[ctrl+s] save  [esc] cancel"))
	} else {
		lines = append(lines, m.editor.area.View())
		lines = append(lines, "", m.styles.Faint.Render(
			fmt.Sprintf("[ctrl+s] save  [esc] cancel  [ctrl+t] insert template  [ctrl+p] template type: %s", m.editor.templateLabel())))
	}
	if m.editor.warning != "" {
		lines = append(lines, "", m.styles.Warning.Render(m.editor.warning))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewConfirmClear() string {
	lines := []string{
		m.styles.Title.Render("CLEAR ALL ROWS"),
		"",
		fmt.Sprintf("Delete all %d row(s) and the persisted %s draft?", len(m.rows), m.issueType),
		"",
		m.styles.Faint.Render("[y] clear  [any other key] cancel"),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewUserSearch() string {
	lines := []string{
		m.styles.Title.Render("USER SEARCH"),
		"",
		fmt.Sprintf("Matches for %q:", m.userSearch.query),
		"",
	}
	if m.userSearch.loading {
		lines = append(lines, m.styles.Faint.Render("Searching..."))
		return strings.Join(lines, "\n")
	}
	for i, u := range m.userSearch.users {
		label := fmt.Sprintf("  %s <%s>", u.DisplayName, u.EmailAddress)
		label = truncate(label, m.safeWidth()-2)
		if i == m.userSearch.cursor {
			label = m.styles.Selected.Render(label)
		}
		lines = append(lines, label)
	}
	lines = append(lines, "", m.styles.Faint.Render("[enter] assign  [esc] cancel"))
	return strings.Join(lines, "\n")
}

func (m *Model) viewLogin() string {
	lines := []string{
		m.styles.Title.Render("CONNECT TO JIRA"),
		"",
		"Not connected to Jira. Open this URL in a browser to authorize:",
		"",
	}
	if m.loginURL != "" {
		lines = append(lines, wrapText(m.loginURL, m.safeWidth())...)
	} else {
		lines = append(lines, m.styles.Faint.Render("Fetching authorize URL..."))
	}
	lines = append(lines, "",
		m.styles.Faint.Render("[r] re-check status  [s] skip (draft offline)  [q] quit"))
	if msg := m.renderMessage(); msg != "" {
		lines = append(lines, "", msg)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) pad(s string, width int, style lipgloss.Style) string {
	return style.Width(width).Render(truncate(s, width))
}

func (m *Model) safeWidth() int {
	frame := m.styles.Box.GetHorizontalFrameSize()
	if m.width > frame {
		return m.width - frame
	}
	return 120
}

func (m *Model) safeHeight() int {
	frame := m.styles.Box.GetVerticalFrameSize()
	if m.height > frame {
		return m.height - frame
	}
	return 24
}

func (m *Model) overlayWidth() int {
	w := m.safeWidth() - 8
	if w < 40 {
		w = 40
	}
	return w
}

// visibleRows is how many data rows fit under the header and chrome.
func (m *Model) visibleRows() int {
	base := 9 // title, meta, header, message, footer and spacing
	if m.mode == modeEditCell {
		base += 3
	}
	available := m.safeHeight() - base
	if available < 1 {
		return 1
	}
	if len(m.rows) < available {
		return len(m.rows)
	}
	return available
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 1 {
		return truncateToWidth(s, width)
	}
	return truncateToWidth(s, width-1) + "…"
}

func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	current := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if current+rw > width {
			break
		}
		b.WriteRune(r)
		current += rw
	}
	return b.String()
}

func wrapText(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var lines []string
	for _, raw := range strings.Split(s, "\n") {
		for runewidth.StringWidth(raw) > width {
			cut := truncateToWidth(raw, width)
			lines = append(lines, cut)
			raw = raw[len(cut):]
		}
		lines = append(lines, raw)
	}
	return lines
}

func formatRelativeTime(when time.Time, now time.Time) string {
	if when.After(now) {
		return "just now"
	}

	elapsed := now.Sub(when)
	switch {
	case elapsed < 10*time.Second:
		return "just now"
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds ago", int(elapsed.Seconds()))
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	}
}
