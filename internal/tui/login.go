package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/display"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/session"
	"github.com/moneykin1993/habit-app/internal/validate"
)

const hintDebounce = 350 * time.Millisecond

type loginField int

const (
	fieldGroup loginField = iota
	fieldName
	fieldEmail
	loginFieldCount
)

type hintTickMsg struct{ seq int }

type hintMsg struct {
	seq  int
	hint string
	err  error
}

type loginForm struct {
	groups   []string
	groupIdx int
	name     textinput.Model
	email    textinput.Model
	focused  loginField

	busy    bool
	message string
	// invalid holds per-field messages of the last local validation.
	invalid error

	hint         string
	hintSeq      int
	hintInFlight bool
	hintDirty    bool
}

func newLoginForm(groups []string) loginForm {
	return loginForm{
		groups:   groups,
		groupIdx: -1,
		name:     newTextInput("Name   ", "full name, no spaces"),
		email:    newTextInput("E-mail ", "registered address"),
	}
}

func (f *loginForm) group() string {
	if f.groupIdx < 0 || f.groupIdx >= len(f.groups) {
		return ""
	}
	return f.groups[f.groupIdx]
}

func (f *loginForm) cycleGroup(delta int) {
	n := len(f.groups)
	if n == 0 {
		return
	}
	if f.groupIdx < 0 {
		if delta < 0 {
			f.groupIdx = n - 1
		} else {
			f.groupIdx = 0
		}
		return
	}
	f.groupIdx = ((f.groupIdx+delta)%n + n) % n
}

func (f *loginForm) focus() tea.Cmd {
	f.name.Blur()
	f.email.Blur()
	switch f.focused {
	case fieldName:
		return f.name.Focus()
	case fieldEmail:
		return f.email.Focus()
	}
	return nil
}

func (f *loginForm) move(delta int) tea.Cmd {
	f.focused = loginField(((int(f.focused)+delta)%int(loginFieldCount) + int(loginFieldCount)) % int(loginFieldCount))
	return f.focus()
}

func (f *loginForm) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focused {
	case fieldName:
		f.name, cmd = f.name.Update(msg)
	case fieldEmail:
		f.email, cmd = f.email.Update(msg)
	}
	return cmd
}

func (f *loginForm) setError(err error) {
	var fields validate.Errors
	if errors.As(err, &fields) {
		f.invalid = err
		f.message = api.MsgCheckInput
		return
	}
	f.invalid = nil
	f.message = gateway.UserMessage(err, api.MsgCheckInput)
}

func (f *loginForm) fieldError(name string) string {
	return validate.Field(f.invalid, name)
}

// scheduleHint restarts the debounce timer. Only the newest timer fires a lookup.
func (f *loginForm) scheduleHint() tea.Cmd {
	f.hintSeq++
	f.hint = ""
	seq := f.hintSeq
	return tea.Tick(hintDebounce, func(time.Time) tea.Msg {
		return hintTickMsg{seq: seq}
	})
}

func (f *loginForm) credentials() session.Credentials {
	return session.Credentials{
		Group: f.group(),
		Name:  f.name.Value(),
		Email: strings.TrimSpace(f.email.Value()),
	}
}

func (m *Model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, m.login.updateInput(msg)
	}
	f := &m.login
	if f.busy {
		return m, nil
	}
	switch key.Type {
	case tea.KeyTab, tea.KeyDown:
		return m, f.move(1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, f.move(-1)
	case tea.KeyEnter:
		return m, m.submitLogin()
	case tea.KeyEsc:
		return m, tea.Quit
	}
	if f.focused == fieldGroup {
		switch key.String() {
		case "left", "h":
			f.cycleGroup(-1)
			return m, f.scheduleHint()
		case "right", "l", " ":
			f.cycleGroup(1)
			return m, f.scheduleHint()
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}
	before := f.name.Value()
	cmd := f.updateInput(key)
	if f.name.Value() != before {
		return m, tea.Batch(cmd, f.scheduleHint())
	}
	return m, cmd
}

func (m *Model) submitLogin() tea.Cmd {
	f := &m.login
	cred := f.credentials()
	if err := cred.Validate(); err != nil {
		f.setError(err)
		return nil
	}
	f.busy = true
	f.message = ""
	f.invalid = nil
	resolver := m.resolver
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx := context.Background()
		if _, err := resolver.FirstLogin(ctx, cred); err != nil {
			return loginMsg{err: err}
		}
		return loginMsg{res: resolver.Resolve(ctx)}
	})
}

func (m *Model) hintTick(msg hintTickMsg) tea.Cmd {
	f := &m.login
	if msg.seq != f.hintSeq {
		return nil
	}
	group := f.group()
	name := strings.TrimSpace(f.name.Value())
	if group == "" || name == "" || display.HasAnySpace(name) {
		return nil
	}
	if f.hintInFlight {
		f.hintDirty = true
		return nil
	}
	f.hintInFlight = true
	caller := m.caller
	seq := msg.seq
	return func() tea.Msg {
		hint, err := api.EmailHint(context.Background(), caller, group, name)
		return hintMsg{seq: seq, hint: hint, err: err}
	}
}

func (m *Model) applyHint(msg hintMsg) tea.Cmd {
	f := &m.login
	f.hintInFlight = false
	if msg.seq == f.hintSeq {
		if msg.err != nil {
			m.log.Debug("email hint lookup failed", zap.Error(msg.err))
		} else {
			f.hint = msg.hint
		}
	}
	if f.hintDirty {
		f.hintDirty = false
		return m.hintTick(hintTickMsg{seq: f.hintSeq})
	}
	return nil
}

func (m *Model) viewLogin() string {
	f := &m.login
	lines := []string{titleStyle.Render("Sign in"), ""}

	group := f.group()
	if group == "" {
		group = mutedStyle.Render("select a group")
	} else {
		group = valueStyle.Render(group)
	}
	label := labelStyle.Render("Group   ")
	if f.focused == fieldGroup {
		label = focusStyle.Render("Group   ")
		group = "< " + group + " >"
	}
	lines = append(lines, label+group)
	if msg := f.fieldError("group"); msg != "" {
		lines = append(lines, errorStyle.Render(msg))
	}
	lines = append(lines, f.name.View())
	if display.HasAnySpace(f.name.Value()) {
		lines = append(lines, errorStyle.Render("Enter your name without spaces."))
	} else if msg := f.fieldError("name"); msg != "" {
		lines = append(lines, errorStyle.Render(msg))
	}
	lines = append(lines, f.email.View())
	if msg := f.fieldError("email"); msg != "" {
		lines = append(lines, errorStyle.Render(msg))
	}
	if f.hint != "" {
		lines = append(lines, mutedStyle.Render("Registered e-mail: "+f.hint))
	}
	lines = append(lines, "")
	if f.busy {
		lines = append(lines, m.spinner.View()+" Signing in...")
	}
	if f.message != "" {
		lines = append(lines, errorStyle.Render(wrapText(f.message, m.width)))
	}
	return strings.Join(lines, "\n")
}
