// Package api exposes the backend's logical endpoints as typed calls.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/model"
)

// Logical backend paths.
const (
	PathFirstLogin     = "/auth/first-login"
	PathAutoLogin      = "/auth/auto-login"
	PathEmailHint      = "/auth/email-hint"
	PathGetWeek        = "/student/get-week"
	PathSubmit         = "/student/submit"
	PathResolveStudent = "/parent/resolve-student"
	PathWeekSummary    = "/parent/get-week-summary"
	PathGroupTable     = "/admin/group-table"
)

// Fallback messages for rejections that carry no message of their own.
const (
	MsgCheckInput      = "Please check that your input is correct."
	MsgUnavailable     = "Not available right now."
	MsgSubmitFailed    = "Submission failed."
	MsgStudentNotFound = "No matching student was found. Please check your input."
	MsgNoPermission    = "No permission."
)

// Caller performs one logical backend call. *gateway.Client implements it.
type Caller interface {
	Call(ctx context.Context, path string, body any, query map[string]string, out any) error
}

// Identity is what the backend returns for a recognized device.
type Identity struct {
	StudentKey  string
	GroupName   string
	DisplayName string
}

type loginResp struct {
	gateway.Envelope
	DeviceToken string `json:"device_token"`
	StudentKey  string `json:"student_key"`
	GroupName   string `json:"group_name"`
	DisplayName string `json:"display_name"`
}

// FirstLogin exchanges group, name and e-mail for a device token.
// The identity fields may be empty; auto-login fills them later.
func FirstLogin(ctx context.Context, c Caller, group, name, email string) (model.Session, error) {
	var resp loginResp
	body := map[string]string{"group_name": group, "name_raw": name, "email_raw": email}
	if err := c.Call(ctx, PathFirstLogin, body, nil, &resp); err != nil {
		return model.Session{}, err
	}
	if err := resp.Err(PathFirstLogin); err != nil {
		return model.Session{}, err
	}
	if resp.DeviceToken == "" {
		return model.Session{}, &gateway.ProtocolError{Path: PathFirstLogin, Err: errors.New("missing device_token")}
	}
	return model.Session{
		DeviceToken: resp.DeviceToken,
		StudentKey:  resp.StudentKey,
		GroupName:   resp.GroupName,
		DisplayName: resp.DisplayName,
	}, nil
}

// AutoLogin resolves a stored device token to an identity.
func AutoLogin(ctx context.Context, c Caller, token string) (Identity, error) {
	var resp loginResp
	if err := c.Call(ctx, PathAutoLogin, map[string]string{"device_token": token}, nil, &resp); err != nil {
		return Identity{}, err
	}
	if err := resp.Err(PathAutoLogin); err != nil {
		return Identity{}, err
	}
	if resp.StudentKey == "" {
		return Identity{}, &gateway.ProtocolError{Path: PathAutoLogin, Err: errors.New("missing student_key")}
	}
	return Identity{StudentKey: resp.StudentKey, GroupName: resp.GroupName, DisplayName: resp.DisplayName}, nil
}

// EmailHint returns the roster hint for a group and name, or "" when none is known.
func EmailHint(ctx context.Context, c Caller, group, name string) (string, error) {
	var resp struct {
		gateway.Envelope
		EmailHint string `json:"email_hint"`
	}
	if err := c.Call(ctx, PathEmailHint, map[string]string{"group_name": group, "name_raw": name}, nil, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", nil
	}
	return resp.EmailHint, nil
}

type weekResp struct {
	gateway.Envelope
	Calendar           []model.CalendarDay       `json:"calendar"`
	SelectedDate       string                    `json:"selected_date"`
	ExistingReport     *model.ReportRecord       `json:"existing_report"`
	ImprovementSupport *model.ImprovementSupport `json:"improvement_support"`
}

// GetWeek fetches the calendar and any existing report for a date.
// A selected date outside the returned calendar is a *gateway.ProtocolError.
func GetWeek(ctx context.Context, c Caller, studentKey, date string) (model.WeekView, error) {
	var resp weekResp
	body := map[string]string{"student_key": studentKey, "selected_date": date}
	if err := c.Call(ctx, PathGetWeek, body, nil, &resp); err != nil {
		return model.WeekView{}, err
	}
	if err := resp.Err(PathGetWeek); err != nil {
		return model.WeekView{}, err
	}
	view := model.WeekView{
		Calendar:           resp.Calendar,
		SelectedDate:       resp.SelectedDate,
		ExistingReport:     resp.ExistingReport,
		ImprovementSupport: resp.ImprovementSupport,
	}
	if view.SelectedDate == "" {
		view.SelectedDate = date
	}
	if !view.HasDate(view.SelectedDate) {
		return model.WeekView{}, &gateway.ProtocolError{
			Path: PathGetWeek,
			Err:  fmt.Errorf("selected date %s is not in the calendar", view.SelectedDate),
		}
	}
	return view, nil
}

// SubmitRequest is the body of a report submission.
type SubmitRequest struct {
	StudentKey        string           `json:"student_key"`
	ReportDate        string           `json:"report_date"`
	PlanStatus        model.PlanStatus `json:"plan_status"`
	StudyMinutes      int              `json:"study_minutes"`
	NotAchievedReason string           `json:"not_achieved_reason"`
	ImprovementChoice string           `json:"improvement_choice"`
}

// NewSubmitRequest builds a submission for studentKey from rec.
func NewSubmitRequest(studentKey string, rec model.ReportRecord) SubmitRequest {
	return SubmitRequest{
		StudentKey:        studentKey,
		ReportDate:        rec.ReportDate,
		PlanStatus:        rec.PlanStatus,
		StudyMinutes:      rec.StudyMinutes,
		NotAchievedReason: rec.NotAchievedReason,
		ImprovementChoice: rec.ImprovementChoice,
	}
}

// Submit stores a report and returns the refreshed analytics.
func Submit(ctx context.Context, c Caller, req SubmitRequest) (model.AnalyticsSummary, error) {
	var resp struct {
		gateway.Envelope
		Results model.AnalyticsSummary `json:"results"`
	}
	if err := c.Call(ctx, PathSubmit, req, nil, &resp); err != nil {
		return model.AnalyticsSummary{}, err
	}
	if err := resp.Err(PathSubmit); err != nil {
		return model.AnalyticsSummary{}, err
	}
	return resp.Results, nil
}

// ResolveStudent finds a student key for a parent lookup.
func ResolveStudent(ctx context.Context, c Caller, group, name string) (string, error) {
	var resp struct {
		gateway.Envelope
		StudentKey string `json:"student_key"`
	}
	if err := c.Call(ctx, PathResolveStudent, map[string]string{"group_name": group, "name_raw": name}, nil, &resp); err != nil {
		return "", err
	}
	if err := resp.Err(PathResolveStudent); err != nil {
		return "", err
	}
	return resp.StudentKey, nil
}

// WeekSummary fetches the parent-facing weekly results.
func WeekSummary(ctx context.Context, c Caller, studentKey string) (model.WeekSummary, error) {
	var resp struct {
		gateway.Envelope
		ImprovementSupport *model.ImprovementSupport `json:"improvement_support"`
		Results            model.AnalyticsSummary    `json:"results"`
	}
	if err := c.Call(ctx, PathWeekSummary, map[string]string{"student_key": studentKey}, nil, &resp); err != nil {
		return model.WeekSummary{}, err
	}
	if err := resp.Err(PathWeekSummary); err != nil {
		return model.WeekSummary{}, err
	}
	return model.WeekSummary{ImprovementSupport: resp.ImprovementSupport, Results: resp.Results}, nil
}

// GroupTable fetches the admin overview. The token travels in the query.
func GroupTable(ctx context.Context, c Caller, group, adminToken string) (model.AdminTable, error) {
	var resp struct {
		gateway.Envelope
		GroupName string           `json:"group_name"`
		Cycle     model.Cycle      `json:"cycle"`
		Weeks     []string         `json:"weeks"`
		Rows      []model.AdminRow `json:"rows"`
	}
	query := map[string]string{"group_name": group, "admin_token": adminToken}
	if err := c.Call(ctx, PathGroupTable, nil, query, &resp); err != nil {
		return model.AdminTable{}, err
	}
	if err := resp.Err(PathGroupTable); err != nil {
		return model.AdminTable{}, err
	}
	return model.AdminTable{GroupName: resp.GroupName, Cycle: resp.Cycle, Weeks: resp.Weeks, Rows: resp.Rows}, nil
}
