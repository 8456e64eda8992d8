// Package adminui provides the Bubble Tea admin group-table screen.
package adminui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/analytics"
	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/display"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/model"
)

const (
	tabTable = iota
	tabAlerts
)

// gradeCMark prefixes week cells graded C.
const gradeCMark = "!"

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	gradeCStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Options wires the admin screen.
type Options struct {
	Caller api.Caller
	Token  string
	Groups []string
	Group  string
	Log    *zap.Logger
}

// Model implements the Bubble Tea admin UI.
type Model struct {
	caller api.Caller
	token  string
	groups []string
	group  string
	log    *zap.Logger

	width     int
	height    int
	tabs      []string
	activeTab int

	table  table.Model
	alerts viewport.Model
	data   *model.AdminTable

	filterMode  bool
	filterInput textinput.Model
	filterError string

	tag     uint64
	busy    bool
	errMsg  string
	spinner spinner.Model
}

type tableMsg struct {
	tag   uint64
	table model.AdminTable
	err   error
}

// NewModel constructs an admin UI model.
func NewModel(opts Options) *Model {
	m := &Model{
		caller:  opts.Caller,
		token:   strings.TrimSpace(opts.Token),
		groups:  opts.Groups,
		group:   strings.TrimSpace(opts.Group),
		log:     opts.Log,
		tabs:    []string{"Table", "Alerts"},
		alerts:  viewport.New(0, 0),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.group == "" && len(m.groups) > 0 {
		m.group = m.groups[0]
	}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Group: "
	m.filterInput.CharLimit = 0
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)
	m.table = table.New(table.WithHeight(1))
	m.table.SetStyles(adminTableStyles())
	m.table.Focus()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

// load requests the table for the current group. Without a token nothing is
// sent and the screen shows the no-permission message.
func (m *Model) load() tea.Cmd {
	if m.token == "" {
		m.errMsg = api.MsgNoPermission
		return nil
	}
	m.tag++
	m.busy = true
	m.errMsg = ""
	m.clearData()
	caller, group, token, tag := m.caller, m.group, m.token, m.tag
	fetch := func() tea.Msg {
		t, err := api.GroupTable(context.Background(), caller, group, token)
		return tableMsg{tag: tag, table: t, err: err}
	}
	return tea.Batch(m.spinner.Tick, fetch)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tableMsg:
		m.applyTable(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, nil
		case "right", "l":
			m.moveTab(1)
			return m, nil
		case "[":
			return m, m.stepGroup(-1)
		case "]":
			return m, m.stepGroup(1)
		case "/":
			return m.startFilter()
		case "r":
			if m.busy {
				return m, nil
			}
			return m, m.load()
		case "g", "home":
			m.table.GotoTop()
			m.alerts.GotoTop()
			return m, nil
		case "G", "end":
			m.table.GotoBottom()
			m.alerts.GotoBottom()
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabTable {
				m.table, cmd = m.table.Update(msg)
			} else {
				m.alerts, cmd = m.alerts.Update(msg)
			}
			return m, cmd
		}
	}
	if m.filterMode {
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) applyTable(msg tableMsg) {
	if msg.tag != m.tag {
		m.log.Debug("discarding stale group table", zap.Uint64("tag", msg.tag))
		return
	}
	m.busy = false
	if msg.err != nil {
		m.errMsg = gateway.UserMessage(msg.err, api.MsgNoPermission)
		m.log.Warn("group table failed", zap.String("group", m.group), zap.Error(msg.err))
		return
	}
	t := msg.table
	m.data = &t
	m.errMsg = ""
	m.rebuild()
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.alerts.Width = m.width
	m.alerts.Height = bodyHeight
	m.table.SetWidth(m.width)
	m.table.SetHeight(maxInt(1, bodyHeight-1))
	m.adjustTableHeight(bodyHeight)
	m.filterInput.Width = maxInt(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
}

func (m *Model) stepGroup(delta int) tea.Cmd {
	if len(m.groups) == 0 || m.busy {
		return nil
	}
	idx := -1
	for i, g := range m.groups {
		if g == m.group {
			idx = i
			break
		}
	}
	n := len(m.groups)
	if idx < 0 {
		idx = 0
	} else {
		idx = ((idx+delta)%n + n) % n
	}
	m.group = m.groups[idx]
	return m.load()
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.filterInput.SetValue(m.group)
	return m, m.filterInput.Focus()
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		group := strings.TrimSpace(m.filterInput.Value())
		if group == "" {
			m.filterError = "enter a group name"
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		m.group = group
		return m, m.load()
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// clearData drops the table of the previous load.
func (m *Model) clearData() {
	m.data = nil
	m.table.SetRows(nil)
	m.alerts.SetContent("")
}

// rebuild refreshes the table and the alert list from the loaded data.
func (m *Model) rebuild() {
	if m.data == nil {
		return
	}
	cols, rows := buildTableData(*m.data)
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	m.table.GotoTop()
	m.alerts.SetContent(renderAlerts(*m.data))
	m.updateLayout()
}

func buildTableData(data model.AdminTable) ([]table.Column, []table.Row) {
	headers := analytics.AdminHeaders(data.Weeks)
	cells, gradeC := analytics.AdminRows(data)
	for key := range gradeC {
		cells[key[0]][key[1]] = gradeCMark + cells[key[0]][key[1]]
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	rows := make([]table.Row, 0, len(cells))
	for _, row := range cells {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
		rows = append(rows, table.Row(row))
	}
	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Column{Title: h, Width: widths[i] + 1}
	}
	return cols, rows
}

// renderAlerts lists the weeks graded C per student.
func renderAlerts(data model.AdminTable) string {
	lines := []string{}
	for _, row := range data.Rows {
		var weeks []string
		for _, wk := range data.Weeks {
			if row.Weeks[wk].Grade == string(model.GradeC) {
				weeks = append(weeks, display.WeekLabel(wk))
			}
		}
		if len(weeks) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s  %s", row.Name, gradeCStyle.Render("C: "+strings.Join(weeks, ", "))))
	}
	if len(lines) == 0 {
		return "No C grades this cycle."
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	return m.renderTabs() + "\n" + m.renderSummary()
}

func (m *Model) renderSummary() string {
	group := m.group
	if group == "" {
		group = "-"
	}
	summary := "Group: " + group
	if m.data != nil {
		summary += fmt.Sprintf("  period: %s ~ %s  students: %d", m.data.Cycle.Start, m.data.Cycle.End, len(m.data.Rows))
	}
	if m.busy {
		summary = m.spinner.View() + " " + summary
	}
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		lines := []string{"Switch group (enter to apply, esc to cancel)", m.filterInput.View()}
		if m.filterError != "" {
			lines = append(lines, errorStyle.Render(m.filterError))
		}
		return fitLines(strings.Join(lines, "\n"), m.width, height)
	}
	switch {
	case m.data == nil && m.busy:
		return fitLines("Loading...", m.width, height)
	case m.data == nil:
		return fitLines("", m.width, height)
	case m.activeTab == tabAlerts:
		return fitLines(m.alerts.View(), m.width, height)
	case len(m.data.Rows) == 0:
		return fitLines("No students found.", m.width, height)
	default:
		return fitLines(tableMutedStyle.Render(m.table.View()), m.width, height)
	}
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("enter: apply  esc: cancel  ctrl+c: quit")
	}
	help := headerStyle.Render(truncateLine("Tabs: left/right  Scroll: up/down  Group: [ ] /  Reload: r  Quit: q  ("+gradeCMark+" = grade C)", m.width))
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func adminTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// adjustTableHeight makes the rendered table exactly fill bodyHeight.
func (m *Model) adjustTableHeight(bodyHeight int) {
	target := maxInt(1, bodyHeight)
	for i := 0; i < 2; i++ {
		viewHeight := lipgloss.Height(m.table.View())
		if viewHeight == target {
			return
		}
		m.table.SetHeight(maxInt(1, m.table.Height()+target-viewHeight))
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
