// Package draft implements the editable daily report as a small state machine.
//
// A Draft is a value. Every edit goes through Apply, which returns the next
// Draft; fields that only make sense while the plan was not achieved live in
// the NotAchieved variant and disappear when the plan flips back to Achieved.
package draft

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moneykin1993/habit-app/internal/catalog"
	"github.com/moneykin1993/habit-app/internal/display"
	"github.com/moneykin1993/habit-app/internal/model"
)

// ErrNotSubmittable is wrapped by every ValidationError.
var ErrNotSubmittable = errors.New("report is not submittable")

// ValidationError names the first field that blocks submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrNotSubmittable
}

// Plan is either Achieved or NotAchieved.
type Plan interface {
	status() model.PlanStatus
}

// Achieved carries no extra fields.
type Achieved struct{}

func (Achieved) status() model.PlanStatus { return model.PlanAchieved }

// NotAchieved carries the reason and improvement cascade.
type NotAchieved struct {
	Reason           string
	ReasonOther      string
	Improvement      string
	ImprovementOther string
}

func (NotAchieved) status() model.PlanStatus { return model.PlanNotAchieved }

// Draft is the client-side report being edited.
type Draft struct {
	Minutes int
	Plan    Plan
}

// New returns the default draft: achieved, zero minutes.
func New() Draft {
	return Draft{Plan: Achieved{}}
}

// Seed builds a draft whose effective values equal rec.
// A reason outside the catalog becomes the other reason with rec's text, and
// an improvement outside the reason's options becomes free text.
func Seed(rec *model.ReportRecord) Draft {
	if rec == nil {
		return New()
	}
	d := Draft{Minutes: rec.StudyMinutes, Plan: Achieved{}}
	if rec.PlanStatus != model.PlanNotAchieved {
		return d
	}
	na := NotAchieved{}
	switch {
	case rec.NotAchievedReason == "":
	case catalog.IsReason(rec.NotAchievedReason):
		na.Reason = rec.NotAchievedReason
	default:
		na.Reason = catalog.OtherReason
		na.ReasonOther = rec.NotAchievedReason
	}
	if rec.ImprovementChoice != "" {
		if catalog.HasImprovement(na.Reason, rec.ImprovementChoice) {
			na.Improvement = rec.ImprovementChoice
		} else {
			na.ImprovementOther = rec.ImprovementChoice
		}
	}
	d.Plan = na
	return d
}

// Status returns the plan status of the draft.
func (d Draft) Status() model.PlanStatus {
	if d.Plan == nil {
		return model.PlanAchieved
	}
	return d.Plan.status()
}

func (d Draft) notAchieved() (NotAchieved, bool) {
	na, ok := d.Plan.(NotAchieved)
	return na, ok
}

// ShowsReason reports whether the reason selector is visible.
func (d Draft) ShowsReason() bool {
	_, ok := d.notAchieved()
	return ok
}

// ShowsReasonOther reports whether the free-text reason field is visible.
func (d Draft) ShowsReasonOther() bool {
	na, ok := d.notAchieved()
	return ok && na.Reason == catalog.OtherReason
}

// ShowsImprovement reports whether the improvement step is visible.
func (d Draft) ShowsImprovement() bool {
	na, ok := d.notAchieved()
	return ok && na.Reason != ""
}

// ImprovementOptions returns the choices for the current reason.
// An empty result means only free text is offered.
func (d Draft) ImprovementOptions() []string {
	na, ok := d.notAchieved()
	if !ok || na.Reason == "" {
		return nil
	}
	return catalog.Improvements(na.Reason)
}

// Fields returns the cascade fields, zero when the plan was achieved.
func (d Draft) Fields() NotAchieved {
	na, _ := d.notAchieved()
	return na
}

// MinutesValid reports whether the study time is within range.
func (d Draft) MinutesValid() bool {
	return d.Minutes >= display.MinStudyMinutes && d.Minutes <= display.MaxStudyMinutes
}

// Check returns a *ValidationError when the draft cannot be submitted for
// the given student and date.
func (d Draft) Check(studentKey, date string) error {
	switch {
	case strings.TrimSpace(studentKey) == "":
		return &ValidationError{Field: "student", Reason: "not signed in"}
	case strings.TrimSpace(date) == "":
		return &ValidationError{Field: "date", Reason: "no date selected"}
	case !d.Status().Valid():
		return &ValidationError{Field: "plan_status", Reason: "not set"}
	case !d.MinutesValid():
		return &ValidationError{Field: "study_minutes", Reason: fmt.Sprintf("%d is outside %d..%d", d.Minutes, display.MinStudyMinutes, display.MaxStudyMinutes)}
	}
	if na, ok := d.notAchieved(); ok && na.Reason == "" {
		return &ValidationError{Field: "not_achieved_reason", Reason: "required when the plan was not achieved"}
	}
	return nil
}

// Submittable reports whether submit is enabled.
func (d Draft) Submittable(studentKey, date string, busy bool) bool {
	return !busy && d.Check(studentKey, date) == nil
}

// EffectiveReason is the reason sent on submit.
func (d Draft) EffectiveReason() string {
	na, ok := d.notAchieved()
	if !ok {
		return ""
	}
	if na.Reason == catalog.OtherReason {
		if na.ReasonOther != "" {
			return na.ReasonOther
		}
		return catalog.OtherReason
	}
	return na.Reason
}

// EffectiveImprovement is the improvement sent on submit: the choice, else the free text.
func (d Draft) EffectiveImprovement() string {
	na, ok := d.notAchieved()
	if !ok {
		return ""
	}
	if na.Improvement != "" {
		return na.Improvement
	}
	return na.ImprovementOther
}

// Record returns the report that submitting the draft for date would store.
func (d Draft) Record(date string) model.ReportRecord {
	return model.ReportRecord{
		ReportDate:        date,
		PlanStatus:        d.Status(),
		StudyMinutes:      d.Minutes,
		NotAchievedReason: d.EffectiveReason(),
		ImprovementChoice: d.EffectiveImprovement(),
	}
}
