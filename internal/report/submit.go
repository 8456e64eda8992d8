package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/model"
)

// SubmitRequest is a prepared submission.
type SubmitRequest struct {
	Tag     uint64
	Payload api.SubmitRequest
}

// SubmitResult is the outcome of a submission and the week re-read after it.
type SubmitResult struct {
	Tag       uint64
	Analytics model.AnalyticsSummary
	Err       error
	// Refreshed is the week fetched after a successful write.
	Refreshed WeekResult
}

// PrepareSubmit validates the draft and marks the screen busy.
// It returns a draft.ValidationError when submit is disabled.
func (c *Controller) PrepareSubmit() (SubmitRequest, error) {
	if err := c.draft.Check(c.sel.StudentKey, c.sel.Date); err != nil {
		return SubmitRequest{}, err
	}
	if c.busy {
		return SubmitRequest{}, errBusy
	}
	c.tag++
	c.busy = true
	c.message = ""
	rec := c.draft.Record(c.sel.Date)
	return SubmitRequest{Tag: c.tag, Payload: api.NewSubmitRequest(c.sel.StudentKey, rec)}, nil
}

// Send submits the report, then re-reads the week for the same selection.
func (c *Controller) Send(ctx context.Context, req SubmitRequest) SubmitResult {
	res := SubmitResult{Tag: req.Tag}
	res.Analytics, res.Err = api.Submit(ctx, c.caller, req.Payload)
	if res.Err != nil {
		return res
	}
	c.record(ctx, req.Payload, res.Analytics)
	res.Refreshed = c.Fetch(ctx, WeekRequest{
		Tag:       req.Tag,
		Selection: Selection{StudentKey: req.Payload.StudentKey, Date: req.Payload.ReportDate},
	})
	return res
}

func (c *Controller) record(ctx context.Context, p api.SubmitRequest, a model.AnalyticsSummary) {
	if c.journal == nil {
		return
	}
	entry := model.JournalEntry{
		StudentKey:   p.StudentKey,
		ReportDate:   p.ReportDate,
		PlanStatus:   p.PlanStatus,
		StudyMinutes: p.StudyMinutes,
		Reason:       p.NotAchievedReason,
		Improvement:  p.ImprovementChoice,
		Grade:        a.Grade,
		StreakDays:   a.StreakDays,
		RatePct:      a.WeekAchievedRatePct,
		SubmittedAt:  c.now().UTC(),
	}
	if err := c.journal.RecordSubmission(ctx, entry); err != nil {
		c.log.Warn("failed to record submission", zap.String("date", p.ReportDate), zap.Error(err))
	}
}

// ApplySubmit installs a submission result. A rejected submission leaves the
// analytics untouched; an accepted one replaces them wholesale.
func (c *Controller) ApplySubmit(res SubmitResult) bool {
	if res.Tag != c.tag {
		return false
	}
	c.busy = false
	if res.Err != nil {
		c.message = gateway.UserMessage(res.Err, api.MsgSubmitFailed)
		c.log.Warn("submit failed", zap.String("date", c.sel.Date), zap.Error(res.Err))
		return true
	}
	a := res.Analytics
	c.analytics = &a
	c.showAvg = false
	if res.Refreshed.Err != nil {
		c.log.Warn("week refresh after submit failed", zap.Error(res.Refreshed.Err))
		return true
	}
	c.install(res.Refreshed.View)
	return true
}

// Submit runs the whole cycle synchronously.
func (c *Controller) Submit(ctx context.Context) error {
	req, err := c.PrepareSubmit()
	if err != nil {
		return err
	}
	res := c.Send(ctx, req)
	c.ApplySubmit(res)
	return res.Err
}
