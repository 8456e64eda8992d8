package draft

import (
	"github.com/moneykin1993/habit-app/internal/catalog"
	"github.com/moneykin1993/habit-app/internal/model"
)

// Event is one user edit of the draft.
type Event interface {
	isEvent()
}

// SetStatus switches between achieved and not achieved.
type SetStatus struct{ Status model.PlanStatus }

// SetMinutes sets the study time.
type SetMinutes struct{ Minutes int }

// SelectReason picks a not-achieved reason. The empty string deselects.
type SelectReason struct{ Reason string }

// SetReasonOther edits the free-text reason.
type SetReasonOther struct{ Text string }

// SelectImprovement picks one of the reason's improvement options.
type SelectImprovement struct{ Choice string }

// SetImprovementOther edits the free-text improvement.
type SetImprovementOther struct{ Text string }

func (SetStatus) isEvent()           {}
func (SetMinutes) isEvent()          {}
func (SelectReason) isEvent()        {}
func (SetReasonOther) isEvent()      {}
func (SelectImprovement) isEvent()   {}
func (SetImprovementOther) isEvent() {}

// Apply returns the draft after ev. Edits to fields that are not visible in
// the current state leave the draft unchanged.
func (d Draft) Apply(ev Event) Draft {
	if d.Plan == nil {
		d.Plan = Achieved{}
	}
	switch e := ev.(type) {
	case SetStatus:
		switch {
		case e.Status == d.Status():
		case e.Status == model.PlanAchieved:
			d.Plan = Achieved{}
		case e.Status == model.PlanNotAchieved:
			d.Plan = NotAchieved{}
		}
	case SetMinutes:
		d.Minutes = e.Minutes
	case SelectReason:
		na, ok := d.notAchieved()
		if !ok || na.Reason == e.Reason {
			break
		}
		if e.Reason != "" && !catalog.IsReason(e.Reason) {
			break
		}
		na.Reason = e.Reason
		na.Improvement = ""
		d.Plan = na
	case SetReasonOther:
		if na, ok := d.notAchieved(); ok && na.Reason == catalog.OtherReason {
			na.ReasonOther = e.Text
			d.Plan = na
		}
	case SelectImprovement:
		na, ok := d.notAchieved()
		if !ok || na.Reason == "" {
			break
		}
		if e.Choice != "" && !catalog.HasImprovement(na.Reason, e.Choice) {
			break
		}
		na.Improvement = e.Choice
		d.Plan = na
	case SetImprovementOther:
		if na, ok := d.notAchieved(); ok && na.Reason != "" {
			na.ImprovementOther = e.Text
			d.Plan = na
		}
	}
	return d
}
