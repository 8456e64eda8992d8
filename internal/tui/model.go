// Package tui provides the Bubble Tea student screens: first login and the
// daily report.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/display"
	"github.com/moneykin1993/habit-app/internal/model"
	"github.com/moneykin1993/habit-app/internal/report"
	"github.com/moneykin1993/habit-app/internal/session"
)

type screen int

const (
	screenResolving screen = iota
	screenLogin
	screenReport
)

// Options wires the student screens.
type Options struct {
	Resolver   *session.Resolver
	Caller     api.Caller
	Controller *report.Controller
	Groups     []string
	Location   *time.Location
	Now        func() time.Time
	Log        *zap.Logger
	// Login opens the first-login form without trying the stored token.
	Login bool
}

// Model implements the Bubble Tea student UI.
type Model struct {
	resolver *session.Resolver
	caller   api.Caller
	ctrl     *report.Controller
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger

	width  int
	height int

	screen  screen
	session model.Session
	spinner spinner.Model

	login loginForm
	form  reportForm
}

type resolvedMsg struct{ res session.Result }

type loginMsg struct {
	res session.Result
	err error
}

type weekMsg struct{ res report.WeekResult }

type submitMsg struct{ res report.SubmitResult }

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	focusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#101010")).Background(lipgloss.Color("#C89A3A")).Bold(true)
	dayStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0")).Padding(0, 1)
	cardStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4A4A4A")).
			Padding(0, 2).
			MarginRight(1)
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// NewModel constructs the student UI.
func NewModel(opts Options) *Model {
	m := &Model{
		resolver: opts.Resolver,
		caller:   opts.Caller,
		ctrl:     opts.Controller,
		loc:      opts.Location,
		now:      opts.Now,
		log:      opts.Log,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(noticeStyle)),
		login:    newLoginForm(opts.Groups),
		form:     newReportForm(),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if opts.Login {
		m.screen = screenLogin
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.screen == screenLogin {
		return m.login.focus()
	}
	return tea.Batch(m.spinner.Tick, m.resolveCmd())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		if !m.spinning() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case resolvedMsg:
		return m, m.applyResolved(msg.res)
	case loginMsg:
		m.login.busy = false
		if msg.err != nil {
			m.login.setError(msg.err)
			return m, nil
		}
		return m, m.applyResolved(msg.res)
	case weekMsg:
		m.ctrl.ApplyWeek(msg.res)
		m.form.sync(m.ctrl)
		return m, nil
	case submitMsg:
		if m.ctrl.ApplySubmit(msg.res) && msg.res.Err == nil {
			m.form.notice = "Submitted."
		}
		m.form.sync(m.ctrl)
		return m, nil
	case hintTickMsg:
		return m, m.hintTick(msg)
	case hintMsg:
		return m, m.applyHint(msg)
	}

	switch m.screen {
	case screenLogin:
		return m.updateLogin(msg)
	case screenReport:
		return m.updateReport(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.screen {
	case screenResolving:
		body = m.spinner.View() + " Signing in..."
	case screenLogin:
		body = m.viewLogin()
	case screenReport:
		body = m.viewReport()
	}
	if m.width == 0 || m.height == 0 {
		return body
	}
	help := footerStyle.Render(truncateLine(m.helpLine(), m.width))
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, body)
	}
	return fitLines(body, m.width, m.height-1) + "\n" + help
}

func (m *Model) helpLine() string {
	switch m.screen {
	case screenLogin:
		return "tab/shift+tab: next field  left/right: group  enter: sign in  ctrl+c: quit"
	case screenReport:
		if m.form.editingText() {
			return "up/down: field  type to edit  enter: submit  ctrl+c: quit"
		}
		return "up/down: field  left/right: change  enter: submit  a: average  r: reload  q: quit"
	}
	return "ctrl+c: quit"
}

func (m *Model) spinning() bool {
	switch m.screen {
	case screenResolving:
		return true
	case screenLogin:
		return m.login.busy
	case screenReport:
		return m.ctrl.Busy()
	}
	return false
}

func (m *Model) resolveCmd() tea.Cmd {
	resolver := m.resolver
	return func() tea.Msg {
		return resolvedMsg{res: resolver.Resolve(context.Background())}
	}
}

// applyResolved routes a resolution to the report screen or the login form.
func (m *Model) applyResolved(res session.Result) tea.Cmd {
	if res.State != session.Authenticated {
		m.screen = screenLogin
		m.login.message = res.Message()
		return m.login.focus()
	}
	m.session = res.Session
	m.screen = screenReport
	m.log.Info("signed in", zap.String("group", res.Session.GroupName))
	req := m.ctrl.Select(res.Session.StudentKey, display.Today(m.now(), m.loc))
	m.form.sync(m.ctrl)
	return tea.Batch(m.spinner.Tick, m.fetchCmd(req))
}

func (m *Model) fetchCmd(req report.WeekRequest) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return weekMsg{res: ctrl.Fetch(context.Background(), req)}
	}
}

func (m *Model) submitCmd(req report.SubmitRequest) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return submitMsg{res: ctrl.Send(context.Background(), req)}
	}
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

func newTextInput(prompt, placeholder string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}
