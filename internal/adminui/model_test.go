package adminui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/testutil"
)

// fetch runs the table request of cmd, skipping the spinner tick.
func fetch(t *testing.T, cmd tea.Cmd) tableMsg {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if tm, ok := c().(tableMsg); ok {
				return tm
			}
		}
	}
	if tm, ok := msg.(tableMsg); ok {
		return tm
	}
	t.Fatalf("no table message in %T", msg)
	return tableMsg{}
}

func setup(t *testing.T, token string) (*testutil.Backend, *Model) {
	t.Helper()
	b := testutil.NewBackend(t)
	b.AddStudent(testutil.Student{Group: "グループ1", Name: "佐藤花子"})
	b.AddStudent(testutil.Student{Group: "グループ1", Name: "山田太郎"})
	b.AddStudent(testutil.Student{Group: "グループ2", Name: "鈴木一郎"})
	m := NewModel(Options{
		Caller: gateway.New(b.URL()),
		Token:  token,
		Groups: []string{"グループ1", "グループ2"},
	})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	return b, m
}

func TestNoTokenMakesNoCall(t *testing.T) {
	b, m := setup(t, "")
	if cmd := m.Init(); cmd != nil {
		t.Fatalf("expected no command without a token")
	}
	if b.TotalCalls() != 0 {
		t.Fatalf("expected no backend calls")
	}
	if !strings.Contains(m.View(), api.MsgNoPermission) {
		t.Fatalf("expected no-permission message:\n%s", m.View())
	}
	if cmd := m.stepGroup(1); cmd != nil {
		t.Fatalf("expected group switch to stay local without a token")
	}
}

func TestWrongTokenShowsBackendMessage(t *testing.T) {
	_, m := setup(t, "guess")
	m.Update(fetch(t, m.Init()))
	if m.errMsg != "no permission" || m.data != nil {
		t.Fatalf("unexpected state: err=%q data=%v", m.errMsg, m.data)
	}
}

func TestTableLoadsAndMarksGradeC(t *testing.T) {
	_, m := setup(t, "admin-secret")
	m.Update(fetch(t, m.Init()))
	if m.busy || m.data == nil {
		t.Fatalf("expected loaded table, err=%q", m.errMsg)
	}
	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "佐藤花子" || !strings.HasPrefix(rows[0][5], gradeCMark+"C") {
		t.Fatalf("unexpected row %v", rows[0])
	}
	out := m.View()
	for _, want := range []string{"グループ1", "2025-11-24 ~ 2025-12-07", "11/24~", "12/1~", "山田太郎"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if !strings.Contains(m.View(), "C: 11/24~, 12/1~") {
		t.Fatalf("expected alerts tab:\n%s", m.View())
	}
}

func TestStaleTableDiscarded(t *testing.T) {
	_, m := setup(t, "admin-secret")
	first := fetch(t, m.Init())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	if cmd != nil {
		t.Fatalf("expected group switch to wait for the pending load")
	}
	m.busy = false
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	second := fetch(t, cmd)

	m.Update(first)
	if m.data != nil {
		t.Fatalf("stale table must be discarded")
	}
	m.Update(second)
	if m.data == nil || m.data.GroupName != "グループ2" || len(m.data.Rows) != 1 {
		t.Fatalf("unexpected table %+v", m.data)
	}
}

func TestFilterSwitchesGroup(t *testing.T) {
	b, m := setup(t, "admin-secret")
	m.Update(fetch(t, m.Init()))
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	m.filterInput.SetValue("")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterError == "" || !m.filterMode {
		t.Fatalf("expected an error for an empty group")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("グループ2")})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(fetch(t, cmd))
	if m.group != "グループ2" || m.data == nil || m.data.Rows[0].Name != "鈴木一郎" {
		t.Fatalf("unexpected group state %q %+v", m.group, m.data)
	}
	if b.Calls(api.PathGroupTable) != 2 {
		t.Fatalf("expected two table calls, got %d", b.Calls(api.PathGroupTable))
	}
}

func TestFailedLoadDropsPreviousTable(t *testing.T) {
	b, m := setup(t, "admin-secret")
	m.Update(fetch(t, m.Init()))
	if m.data == nil {
		t.Fatalf("expected first table, err=%q", m.errMsg)
	}

	b.AdminToken = "rotated"
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	if m.data != nil || len(m.table.Rows()) != 0 {
		t.Fatalf("previous table must be cleared when a load starts")
	}
	m.Update(fetch(t, cmd))

	if m.errMsg != "no permission" {
		t.Fatalf("expected backend message, got %q", m.errMsg)
	}
	if m.data != nil || len(m.table.Rows()) != 0 {
		t.Fatalf("no table may be shown after a failed load: %+v", m.data)
	}
	out := m.View()
	for _, stale := range []string{"佐藤花子", "山田太郎", "students:"} {
		if strings.Contains(out, stale) {
			t.Fatalf("view still shows %q:\n%s", stale, out)
		}
	}
	if !strings.Contains(out, "グループ2") {
		t.Fatalf("expected new group in header:\n%s", out)
	}
}
