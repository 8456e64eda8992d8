package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneykin1993/habit-app/internal/analytics"
	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/catalog"
	"github.com/moneykin1993/habit-app/internal/display"
	"github.com/moneykin1993/habit-app/internal/draft"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/model"
	"github.com/moneykin1993/habit-app/internal/report"
	"github.com/moneykin1993/habit-app/internal/session"
	"github.com/moneykin1993/habit-app/internal/store"
	"github.com/moneykin1993/habit-app/internal/validate"
)

const defaultHistoryLimit = 30

var (
	submitDate             string
	submitStatus           string
	submitMinutes          int
	submitReason           string
	submitReasonOther      string
	submitImprovement      string
	submitImprovementOther string
	submitAverage          bool

	parentGroup   string
	parentName    string
	parentAverage bool

	historyLimit int
	historySince string
)

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a daily report without the TUI",
		Args:  cobra.NoArgs,
		RunE:  runSubmitCmd,
	}
	cmd.Flags().StringVar(&submitDate, "date", "", "report date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&submitStatus, "status", "", "plan status: achieved or not_achieved")
	cmd.Flags().IntVar(&submitMinutes, "minutes", 0, "study minutes (0-720)")
	cmd.Flags().StringVar(&submitReason, "reason", "", "reason the plan was not achieved")
	cmd.Flags().StringVar(&submitReasonOther, "reason-other", "", "free-text reason when --reason is "+catalog.OtherReason)
	cmd.Flags().StringVar(&submitImprovement, "improvement", "", "improvement for tomorrow")
	cmd.Flags().StringVar(&submitImprovementOther, "improvement-other", "", "free-text improvement")
	cmd.Flags().BoolVar(&submitAverage, "avg", false, "show the average daily study time")
	return cmd
}

// submitFlags is the subset of submit flags that became draft events.
type submitFlags struct {
	status, reason, reasonOther, improvement, improvementOther string
	minutes                                                    int
}

// submitEvents turns the flags the user set into draft events, in cascade
// order. Unset flags keep the value loaded from an existing report.
func submitEvents(f submitFlags, changed func(string) bool) ([]draft.Event, error) {
	var events []draft.Event
	if changed("status") {
		status := model.PlanStatus(strings.TrimSpace(f.status))
		if !status.Valid() {
			return nil, fmt.Errorf("--status must be %q or %q", model.PlanAchieved, model.PlanNotAchieved)
		}
		events = append(events, draft.SetStatus{Status: status})
	}
	if changed("minutes") {
		events = append(events, draft.SetMinutes{Minutes: f.minutes})
	}
	if changed("reason") {
		if !catalog.IsReason(f.reason) {
			return nil, fmt.Errorf("--reason must be one of: %s", strings.Join(catalog.Reasons(), ", "))
		}
		events = append(events, draft.SelectReason{Reason: f.reason})
	}
	if changed("reason-other") {
		events = append(events, draft.SetReasonOther{Text: f.reasonOther})
	}
	if changed("improvement") {
		if changed("reason") && !catalog.HasImprovement(f.reason, f.improvement) {
			return nil, fmt.Errorf("--improvement must be one of: %s", strings.Join(catalog.Improvements(f.reason), ", "))
		}
		events = append(events, draft.SelectImprovement{Choice: f.improvement})
	}
	if changed("improvement-other") {
		events = append(events, draft.SetImprovementOther{Text: f.improvementOther})
	}
	return events, nil
}

func runSubmitCmd(cmd *cobra.Command, _ []string) error {
	events, err := submitEvents(submitFlags{
		status:           submitStatus,
		reason:           submitReason,
		reasonOther:      submitReasonOther,
		improvement:      submitImprovement,
		improvementOther: submitImprovementOther,
		minutes:          submitMinutes,
	}, cmd.Flags().Changed)
	if err != nil {
		return err
	}

	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.close()

	date := strings.TrimSpace(submitDate)
	if date == "" {
		date = display.Today(time.Now(), e.loc)
	} else if _, err := time.Parse(display.DateLayout, date); err != nil {
		return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	sess, err := signedIn(ctx, session.NewResolver(st, e.client, e.log))
	if err != nil {
		return err
	}

	ctrl := report.NewController(e.client, report.WithJournal(st), report.WithLogger(e.log))
	if err := ctrl.Load(ctx, sess.StudentKey, date); err != nil {
		return userError(err, api.MsgUnavailable)
	}
	if ctrl.EditMode() {
		logErrf("%s already has a report; it will be overwritten.\n", date)
	}
	for _, ev := range events {
		ctrl.Edit(ev)
	}

	if err := ctrl.Submit(ctx); err != nil {
		var ve *draft.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("report is not complete: %w", err)
		}
		return userError(err, api.MsgSubmitFailed)
	}
	logErrf("Submitted %s for %s.\n", date, sess.DisplayName)

	sum := ctrl.Analytics()
	if sum == nil {
		return nil
	}
	return analytics.RenderResults(os.Stdout, *sum, analytics.Options{
		ShowAverage: submitAverage,
		PieWidth:    analytics.PieWidthFor(analytics.TerminalWidth()),
		Color:       analytics.ShouldUseColor(os.Stdout, false),
	})
}

// userError turns backend failures into the message a screen would show.
// Local errors are returned as they are.
func userError(err error, fallback string) error {
	if gateway.IsRemote(err) {
		return errors.New(gateway.UserMessage(err, fallback))
	}
	return err
}

// signedIn resolves the stored token or explains how to get one.
func signedIn(ctx context.Context, r *session.Resolver) (model.Session, error) {
	res := r.Resolve(ctx)
	if res.State == session.Authenticated {
		return res.Session, nil
	}
	if msg := res.Message(); msg != "" {
		return model.Session{}, fmt.Errorf("%s Run: habit login", msg)
	}
	return model.Session{}, errors.New("this device is not signed in. Run: habit login")
}

func newParentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parent",
		Short: "Show a student's week by group and name",
		Args:  cobra.NoArgs,
		RunE:  runParentCmd,
	}
	cmd.Flags().StringVar(&parentGroup, "group", "", "group name, e.g. グループ12")
	cmd.Flags().StringVar(&parentName, "name", "", "student's full name without spaces")
	cmd.Flags().BoolVar(&parentAverage, "avg", false, "show the average daily study time")
	return cmd
}

// parentQuery is the parent lookup form.
type parentQuery struct {
	Group string `json:"group" validate:"notblank"`
	Name  string `json:"name" validate:"notblank,nospace"`
}

func runParentCmd(cmd *cobra.Command, _ []string) error {
	q := parentQuery{Group: strings.TrimSpace(parentGroup), Name: parentName}
	if err := validate.Struct(q); err != nil {
		return err
	}

	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	key, err := api.ResolveStudent(ctx, e.client, q.Group, q.Name)
	if err != nil {
		return userError(err, api.MsgStudentNotFound)
	}
	if key == "" {
		return errors.New(api.MsgStudentNotFound)
	}
	sum, err := api.WeekSummary(ctx, e.client, key)
	if err != nil {
		return userError(err, api.MsgUnavailable)
	}
	return analytics.RenderWeekSummary(os.Stdout, q.Name, sum, analytics.Options{
		ShowAverage: parentAverage,
		Hours:       analytics.HoursClock,
		PieWidth:    analytics.PieWidthFor(analytics.TerminalWidth()),
		Color:       analytics.ShouldUseColor(os.Stdout, false),
	})
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List reports submitted from this device",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "number of entries to show (0 for all)")
	cmd.Flags().StringVar(&historySince, "since", "", "only reports on or after YYYY-MM-DD")
	return cmd
}

func runHistoryCmd(_ *cobra.Command, _ []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	since := strings.TrimSpace(historySince)
	if since != "" {
		if _, err := time.Parse(display.DateLayout, since); err != nil {
			return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	entries, err := st.ListSubmissions(context.Background(), store.JournalFilter{Since: since, Limit: historyLimit})
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	return analytics.RenderJournal(os.Stdout, entries)
}
