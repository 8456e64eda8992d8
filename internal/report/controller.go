// Package report drives the student's week view, draft and submission cycle.
//
// The Controller holds screen state and is mutated only from the caller's
// event loop. Network work happens in Fetch and Send, which read nothing but
// their request and the immutable caller, so they can run on any goroutine.
package report

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/draft"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/model"
)

// Selection is the (student, date) pair a week view is loaded for.
type Selection struct {
	StudentKey string
	Date       string
}

// WeekRequest is a tagged week fetch.
type WeekRequest struct {
	Tag       uint64
	Selection Selection
}

// WeekResult is the outcome of a WeekRequest.
type WeekResult struct {
	Tag  uint64
	View model.WeekView
	Err  error
}

// Journal receives successful submissions. It may be nil.
type Journal interface {
	RecordSubmission(ctx context.Context, entry model.JournalEntry) error
}

// Controller is the report screen's state.
type Controller struct {
	caller  api.Caller
	journal Journal
	log     *zap.Logger
	now     func() time.Time

	tag       uint64
	sel       Selection
	view      *model.WeekView
	draft     draft.Draft
	analytics *model.AnalyticsSummary
	showAvg   bool
	busy      bool
	message   string
}

// Option configures a Controller.
type Option func(*Controller)

// WithJournal records successful submissions locally.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides time.Now for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController returns a Controller with a default draft and no view.
func NewController(caller api.Caller, opts ...Option) *Controller {
	c := &Controller{caller: caller, log: zap.NewNop(), now: time.Now, draft: draft.New()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Selection returns the current selection.
func (c *Controller) Selection() Selection { return c.sel }

// View returns the loaded week, or nil before the first successful fetch.
func (c *Controller) View() *model.WeekView { return c.view }

// Draft returns the draft being edited.
func (c *Controller) Draft() draft.Draft { return c.draft }

// Analytics returns the results of the last submission, or nil.
func (c *Controller) Analytics() *model.AnalyticsSummary { return c.analytics }

// ShowAverage reports whether the average daily time is revealed.
func (c *Controller) ShowAverage() bool { return c.showAvg }

// Busy reports whether a call is in flight.
func (c *Controller) Busy() bool { return c.busy }

// Message is the single status line of the screen.
func (c *Controller) Message() string { return c.message }

// EditMode reports whether the selected date already has a report.
func (c *Controller) EditMode() bool {
	return c.view != nil && c.view.ExistingReport != nil
}

// CanSubmit reports whether submit is enabled.
func (c *Controller) CanSubmit() bool {
	return c.draft.Submittable(c.sel.StudentKey, c.sel.Date, c.busy)
}

// Select starts loading the week for a new selection. Any response still in
// flight for an earlier selection will be discarded by ApplyWeek.
func (c *Controller) Select(studentKey, date string) WeekRequest {
	c.tag++
	c.sel = Selection{StudentKey: studentKey, Date: date}
	c.busy = true
	c.message = ""
	return WeekRequest{Tag: c.tag, Selection: c.sel}
}

// SelectDate moves to another calendar day. It is refused while busy or for
// dates outside the loaded calendar.
func (c *Controller) SelectDate(date string) (WeekRequest, bool) {
	if c.busy || c.view == nil || !c.view.HasDate(date) {
		return WeekRequest{}, false
	}
	return c.Select(c.sel.StudentKey, date), true
}

// Fetch performs a WeekRequest.
func (c *Controller) Fetch(ctx context.Context, req WeekRequest) WeekResult {
	view, err := api.GetWeek(ctx, c.caller, req.Selection.StudentKey, req.Selection.Date)
	return WeekResult{Tag: req.Tag, View: view, Err: err}
}

// ApplyWeek installs a fetch result. It returns false when the result was
// issued for a selection that is no longer current.
func (c *Controller) ApplyWeek(res WeekResult) bool {
	if res.Tag != c.tag {
		c.log.Debug("discarding stale week response", zap.Uint64("tag", res.Tag), zap.Uint64("current", c.tag))
		return false
	}
	c.busy = false
	if res.Err != nil {
		c.message = gateway.UserMessage(res.Err, api.MsgUnavailable)
		c.log.Warn("week fetch failed", zap.String("date", c.sel.Date), zap.Error(res.Err))
		// The draft still belongs to the displayed day.
		if c.view != nil {
			c.sel.Date = c.view.SelectedDate
		}
		return true
	}
	c.install(res.View)
	return true
}

func (c *Controller) install(view model.WeekView) {
	sameDate := c.view != nil && c.view.SelectedDate == view.SelectedDate
	v := view
	c.view = &v
	c.sel.Date = view.SelectedDate
	if view.ExistingReport != nil {
		c.draft = draft.Seed(view.ExistingReport)
		if !sameDate {
			c.analytics = nil
			c.showAvg = false
		}
		return
	}
	c.draft = draft.New()
	c.analytics = nil
	c.showAvg = false
}

// Load fetches and applies the week synchronously.
func (c *Controller) Load(ctx context.Context, studentKey, date string) error {
	req := c.Select(studentKey, date)
	res := c.Fetch(ctx, req)
	c.ApplyWeek(res)
	return res.Err
}

// Edit applies a draft event. Edits are ignored while busy.
func (c *Controller) Edit(ev draft.Event) {
	if c.busy {
		return
	}
	c.draft = c.draft.Apply(ev)
}

// ToggleAverage reveals or hides the average daily time.
func (c *Controller) ToggleAverage() {
	if c.analytics != nil {
		c.showAvg = !c.showAvg
	}
}

var errBusy = errors.New("a request is already in flight")
