package tui

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/catalog"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/model"
	"github.com/moneykin1993/habit-app/internal/report"
	"github.com/moneykin1993/habit-app/internal/session"
	"github.com/moneykin1993/habit-app/internal/store"
	"github.com/moneykin1993/habit-app/internal/testutil"
)

var today = time.Date(2025, time.December, 3, 12, 0, 0, 0, time.UTC)

type fixture struct {
	backend *testutil.Backend
	store   *store.Store
	student testutil.Student
	model   *Model
}

func newFixture(t *testing.T, login bool) *fixture {
	t.Helper()
	b := testutil.NewBackend(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "habit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	s := b.AddStudent(testutil.Student{Group: "グループ2", Name: "山田太郎", Email: "taro@example.com", Hint: "ta***@example.com"})

	client := gateway.New(b.URL())
	m := NewModel(Options{
		Resolver:   session.NewResolver(st, client, nil),
		Caller:     client,
		Controller: report.NewController(client, report.WithJournal(st)),
		Groups:     catalog.GroupOptions(catalog.DefaultGroupPrefix, 3),
		Location:   time.UTC,
		Now:        func() time.Time { return today },
		Login:      login,
	})
	return &fixture{backend: b, store: st, student: s, model: m}
}

// run executes cmd and returns the messages that belong to this package.
// Timers owned by bubbles components are waited out and dropped.
func run(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var (
			mu  sync.Mutex
			wg  sync.WaitGroup
			out []tea.Msg
		)
		for _, c := range batch {
			if c == nil {
				continue
			}
			wg.Add(1)
			go func(c tea.Cmd) {
				defer wg.Done()
				msgs := run(t, c)
				mu.Lock()
				out = append(out, msgs...)
				mu.Unlock()
			}(c)
		}
		wg.Wait()
		return out
	}
	switch msg.(type) {
	case resolvedMsg, loginMsg, weekMsg, submitMsg, hintMsg, hintTickMsg:
		return []tea.Msg{msg}
	}
	return nil
}

// settle feeds cmd's messages back into the model until nothing is left.
func (f *fixture) settle(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		var next []tea.Cmd
		for _, msg := range run(t, cmd) {
			if _, ok := msg.(hintTickMsg); ok {
				continue
			}
			_, c := f.model.Update(msg)
			next = append(next, c)
		}
		cmd = tea.Batch(next...)
	}
}

func (f *fixture) key(t *testing.T, k tea.KeyMsg) tea.Cmd {
	t.Helper()
	_, cmd := f.model.Update(k)
	return cmd
}

func keyOf(kt tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: kt}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	token := f.backend.IssueToken(f.student.Key)
	if err := f.store.WriteToken(context.Background(), token); err != nil {
		t.Fatalf("write token: %v", err)
	}
	f.settle(t, f.model.Init())
	if f.model.screen != screenReport {
		t.Fatalf("expected report screen, got %d", f.model.screen)
	}
}

func TestNoTokenShowsLoginWithoutCalls(t *testing.T) {
	f := newFixture(t, false)
	f.settle(t, f.model.Init())
	if f.model.screen != screenLogin {
		t.Fatalf("expected login screen, got %d", f.model.screen)
	}
	if f.backend.TotalCalls() != 0 {
		t.Fatalf("expected no backend calls, got %d", f.backend.TotalCalls())
	}
	if f.model.login.message != "" {
		t.Fatalf("expected no message, got %q", f.model.login.message)
	}
}

func TestStoredTokenOpensTodaysWeek(t *testing.T) {
	f := newFixture(t, false)
	f.signIn(t)
	view := f.model.ctrl.View()
	if view == nil || view.SelectedDate != "2025-12-03" {
		t.Fatalf("expected today's week, got %+v", view)
	}
	if f.model.session.DisplayName != "山田太郎" {
		t.Fatalf("unexpected session %+v", f.model.session)
	}
	out := f.model.View()
	for _, want := range []string{"Daily report", "12-01", "12-07", "Study time", "0 min"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestRejectedTokenIsClearedAndShowsLogin(t *testing.T) {
	f := newFixture(t, false)
	if err := f.store.WriteToken(context.Background(), "stale-token"); err != nil {
		t.Fatalf("write token: %v", err)
	}
	f.settle(t, f.model.Init())
	if f.model.screen != screenLogin {
		t.Fatalf("expected login screen")
	}
	token, err := f.store.ReadToken(context.Background())
	if err != nil || token != "" {
		t.Fatalf("expected cleared token, got %q (%v)", token, err)
	}
	if f.backend.Calls(api.PathAutoLogin) != 1 || f.backend.Calls(api.PathGetWeek) != 0 {
		t.Fatalf("unexpected calls")
	}
}

func TestFirstLoginPersistsTokenAndOpensReport(t *testing.T) {
	f := newFixture(t, true)
	f.model.Init()
	f.key(t, keyOf(tea.KeyRight))
	f.key(t, keyOf(tea.KeyRight))
	if f.model.login.group() != "グループ2" {
		t.Fatalf("unexpected group %q", f.model.login.group())
	}
	f.key(t, keyOf(tea.KeyTab))
	f.key(t, runes("山田太郎"))
	f.key(t, keyOf(tea.KeyTab))
	f.key(t, runes("taro@example.com"))
	f.settle(t, f.key(t, keyOf(tea.KeyEnter)))

	if f.model.screen != screenReport {
		t.Fatalf("expected report screen, message %q", f.model.login.message)
	}
	token, err := f.store.ReadToken(context.Background())
	if err != nil || token == "" {
		t.Fatalf("expected persisted token, got %q (%v)", token, err)
	}
	if f.model.ctrl.View() == nil {
		t.Fatalf("expected week to be loaded")
	}
}

func TestFirstLoginValidationMakesNoCall(t *testing.T) {
	f := newFixture(t, true)
	f.model.Init()
	f.key(t, keyOf(tea.KeyTab))
	f.key(t, runes("山田 太郎"))
	if !strings.Contains(f.model.View(), "without spaces") {
		t.Fatalf("expected space warning")
	}
	if cmd := f.key(t, keyOf(tea.KeyEnter)); cmd != nil {
		t.Fatalf("expected no command for an invalid form")
	}
	if f.model.login.message != api.MsgCheckInput {
		t.Fatalf("expected validation message, got %q", f.model.login.message)
	}
	out := f.model.View()
	for _, want := range []string{"group is a required field", "email is a required field"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected field message %q:\n%s", want, out)
		}
	}
	if f.backend.TotalCalls() != 0 {
		t.Fatalf("expected no backend calls")
	}
}

func TestFirstLoginRejectionShowsMessage(t *testing.T) {
	f := newFixture(t, true)
	f.model.Init()
	f.key(t, keyOf(tea.KeyRight))
	f.key(t, keyOf(tea.KeyRight))
	f.key(t, keyOf(tea.KeyTab))
	f.key(t, runes("山田太郎"))
	f.key(t, keyOf(tea.KeyTab))
	f.key(t, runes("wrong@example.com"))
	f.settle(t, f.key(t, keyOf(tea.KeyEnter)))
	if f.model.screen != screenLogin || f.model.login.message != "not registered" {
		t.Fatalf("expected backend message on login screen, got %q", f.model.login.message)
	}
	if f.model.login.busy {
		t.Fatalf("expected form to be idle again")
	}
}

func TestEmailHintDebounce(t *testing.T) {
	f := newFixture(t, true)
	f.model.Init()
	f.key(t, keyOf(tea.KeyRight))
	f.key(t, keyOf(tea.KeyRight))
	f.key(t, keyOf(tea.KeyTab))
	f.key(t, runes("山田"))
	stale := f.model.login.hintSeq
	f.key(t, runes("太郎"))
	current := f.model.login.hintSeq
	if current == stale {
		t.Fatalf("expected each keystroke to restart the timer")
	}

	if cmd := f.model.hintTick(hintTickMsg{seq: stale}); cmd != nil {
		t.Fatalf("stale timer must not look up a hint")
	}
	cmd := f.model.hintTick(hintTickMsg{seq: current})
	if cmd == nil {
		t.Fatalf("expected lookup for the newest timer")
	}
	if again := f.model.hintTick(hintTickMsg{seq: current}); again != nil {
		t.Fatalf("expected one lookup in flight at a time")
	}
	msg, ok := cmd().(hintMsg)
	if !ok {
		t.Fatalf("expected hint message")
	}
	follow := f.model.applyHint(msg)
	if f.model.login.hint != "ta***@example.com" {
		t.Fatalf("unexpected hint %q", f.model.login.hint)
	}
	if follow == nil {
		t.Fatalf("expected the queued lookup to run after the first one")
	}
	if f.backend.Calls(api.PathEmailHint) != 1 {
		t.Fatalf("expected one hint call, got %d", f.backend.Calls(api.PathEmailHint))
	}
	if !strings.Contains(f.model.View(), "ta***@example.com") {
		t.Fatalf("expected hint in view")
	}
}

func TestReportCascadeSubmit(t *testing.T) {
	f := newFixture(t, false)
	f.signIn(t)

	f.key(t, keyOf(tea.KeyDown))
	f.key(t, keyOf(tea.KeyRight))
	if f.model.ctrl.Draft().Status() != model.PlanNotAchieved {
		t.Fatalf("expected not achieved")
	}
	f.key(t, keyOf(tea.KeyDown))
	for i := 0; i < 3; i++ {
		f.key(t, keyOf(tea.KeyRight))
	}
	if f.model.ctrl.Draft().Minutes != 30 {
		t.Fatalf("expected 30 minutes, got %d", f.model.ctrl.Draft().Minutes)
	}
	f.key(t, keyOf(tea.KeyDown))
	if cmd := f.key(t, keyOf(tea.KeyEnter)); cmd != nil {
		t.Fatalf("submit must be disabled without a reason")
	}
	f.key(t, keyOf(tea.KeyRight))
	reason := catalog.Reasons()[0]
	if f.model.ctrl.Draft().Fields().Reason != reason {
		t.Fatalf("expected first reason, got %q", f.model.ctrl.Draft().Fields().Reason)
	}
	f.key(t, keyOf(tea.KeyDown))
	f.key(t, keyOf(tea.KeyRight))
	improvement := catalog.Improvements(reason)[0]

	f.settle(t, f.key(t, keyOf(tea.KeyEnter)))
	rec, ok := f.backend.Report(f.student.Key, "2025-12-03")
	if !ok {
		t.Fatalf("expected stored report")
	}
	if rec.PlanStatus != model.PlanNotAchieved || rec.StudyMinutes != 30 || rec.NotAchievedReason != reason || rec.ImprovementChoice != improvement {
		t.Fatalf("unexpected report %+v", rec)
	}
	if f.model.ctrl.Analytics() == nil || !f.model.ctrl.EditMode() {
		t.Fatalf("expected analytics and edit mode after submit")
	}
	out := f.model.View()
	for _, want := range []string{"Results", "Streak", "Already submitted", "press a to show"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
	f.key(t, runes("a"))
	if !f.model.ctrl.ShowAverage() || strings.Contains(f.model.View(), "press a to show") {
		t.Fatalf("expected average to be revealed")
	}
}

func TestOtherReasonFreeText(t *testing.T) {
	f := newFixture(t, false)
	f.signIn(t)
	f.key(t, keyOf(tea.KeyDown))
	f.key(t, keyOf(tea.KeyRight))
	f.key(t, keyOf(tea.KeyDown))
	f.key(t, keyOf(tea.KeyDown))
	reasons := catalog.Reasons()
	if reasons[len(reasons)-1] != catalog.OtherReason {
		t.Fatalf("expected other reason last")
	}
	f.key(t, keyOf(tea.KeyLeft))
	if f.model.ctrl.Draft().Fields().Reason != catalog.OtherReason {
		t.Fatalf("expected other reason, got %q", f.model.ctrl.Draft().Fields().Reason)
	}
	f.key(t, keyOf(tea.KeyDown))
	if f.model.form.focused != fieldReasonOther {
		t.Fatalf("expected free-text reason field, got %d", f.model.form.focused)
	}
	f.key(t, runes("部活"))
	f.settle(t, f.key(t, keyOf(tea.KeyEnter)))
	rec, ok := f.backend.Report(f.student.Key, "2025-12-03")
	if !ok || rec.NotAchievedReason != "部活" {
		t.Fatalf("unexpected report %+v", rec)
	}
}

func TestDateChangeIgnoredWhileBusy(t *testing.T) {
	f := newFixture(t, false)
	f.signIn(t)
	first := f.key(t, keyOf(tea.KeyRight))
	if first == nil || !f.model.ctrl.Busy() {
		t.Fatalf("expected week request")
	}
	if cmd := f.key(t, keyOf(tea.KeyRight)); cmd != nil {
		t.Fatalf("expected date change to be ignored while busy")
	}
	f.settle(t, first)
	if got := f.model.ctrl.View().SelectedDate; got != "2025-12-04" {
		t.Fatalf("expected next day, got %s", got)
	}
}

func TestWeekFailureShowsMessage(t *testing.T) {
	f := newFixture(t, false)
	f.signIn(t)
	f.backend.Fail(api.PathGetWeek, "")
	f.settle(t, f.key(t, runes("r")))
	if !strings.Contains(f.model.View(), api.MsgUnavailable) {
		t.Fatalf("expected unavailable message")
	}
	if f.model.ctrl.View() == nil {
		t.Fatalf("expected the previous week to stay on screen")
	}
}
