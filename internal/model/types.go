// Package model defines shared data structures.
package model

import "time"

// PlanStatus records whether the day's study plan was completed.
type PlanStatus string

// Plan statuses as sent on the wire.
const (
	PlanAchieved    PlanStatus = "achieved"
	PlanNotAchieved PlanStatus = "not_achieved"
)

// Valid reports whether s is one of the known statuses.
func (s PlanStatus) Valid() bool {
	return s == PlanAchieved || s == PlanNotAchieved
}

// Mark is the calendar-cell symbol for a day.
type Mark string

// Calendar marks as sent on the wire.
const (
	MarkNone      Mark = ""
	MarkSubmitted Mark = "○"
	MarkAchieved  Mark = "◎"
)

// Grade is the backend-assigned weekly rating.
type Grade string

// Known grades.
const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// Session is an authenticated student identity bound to a device token.
type Session struct {
	DeviceToken string
	StudentKey  string
	GroupName   string
	DisplayName string
}

// CalendarDay is one cell of the week calendar.
type CalendarDay struct {
	Date string `json:"date"`
	Mark Mark   `json:"mark"`
}

// ReportRecord is a submitted daily report as stored by the backend.
type ReportRecord struct {
	ReportDate        string     `json:"report_date"`
	PlanStatus        PlanStatus `json:"plan_status"`
	StudyMinutes      int        `json:"study_minutes"`
	NotAchievedReason string     `json:"not_achieved_reason"`
	ImprovementChoice string     `json:"improvement_choice"`
}

// ImprovementSupport is the "today's improvement" block derived from the previous day.
type ImprovementSupport struct {
	Raw  string `json:"raw"`
	Text string `json:"text"`
}

// WeekView is the report surface for one selected date.
type WeekView struct {
	Calendar           []CalendarDay
	SelectedDate       string
	ExistingReport     *ReportRecord
	ImprovementSupport *ImprovementSupport
}

// HasDate reports whether date is one of the calendar days.
func (w WeekView) HasDate(date string) bool {
	for _, d := range w.Calendar {
		if d.Date == date {
			return true
		}
	}
	return false
}

// Pie holds the day counts of the weekly achievement chart.
type Pie struct {
	Achieved    int `json:"achieved"`
	NotAchieved int `json:"not_achieved"`
	Unreported  int `json:"unreported"`
}

// AnalyticsSummary is the backend's weekly result snapshot.
type AnalyticsSummary struct {
	StreakDays          int     `json:"streak_days"`
	WeekAchievedRatePct float64 `json:"week_achieved_rate_pct"`
	Pie                 Pie     `json:"pie"`
	WeekTotalHours      float64 `json:"week_total_hours"`
	AvgDailyHours       float64 `json:"avg_daily_hours"`
	Grade               Grade   `json:"grade"`
	GradeMessage        string  `json:"grade_message"`
	TeamGrade           Grade   `json:"team_grade,omitempty"`
	TeamGradeMessage    string  `json:"team_grade_message,omitempty"`
}

// HasTeamGrade reports whether the backend returned a team rating.
func (a AnalyticsSummary) HasTeamGrade() bool {
	return a.TeamGrade != ""
}

// WeekSummary is the parent-facing weekly payload.
type WeekSummary struct {
	ImprovementSupport *ImprovementSupport
	Results            AnalyticsSummary
}

// Cycle is the reporting period shown on the admin table.
type Cycle struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeekCell is one per-week cell of an admin table row.
type WeekCell struct {
	Grade   string `json:"grade"`
	Reports string `json:"reports"`
	Rate    string `json:"rate"`
	Hours   string `json:"hours"`
}

// AdminRow is one student's line in the admin table.
type AdminRow struct {
	Name              string              `json:"name"`
	StudentKey        string              `json:"student_key"`
	LatestGrade       Grade               `json:"latest_grade"`
	PeriodReportsDays int                 `json:"period_reports_days"`
	PeriodTotalHours  float64             `json:"period_total_hours"`
	LatestStreakDays  int                 `json:"latest_streak_days"`
	Weeks             map[string]WeekCell `json:"weeks"`
}

// AdminTable is the group overview returned to administrators.
type AdminTable struct {
	GroupName string
	Cycle     Cycle
	Weeks     []string
	Rows      []AdminRow
}

// JournalEntry is a locally recorded submission.
type JournalEntry struct {
	StudentKey   string
	ReportDate   string
	PlanStatus   PlanStatus
	StudyMinutes int
	Reason       string
	Improvement  string
	Grade        Grade
	StreakDays   int
	RatePct      float64
	SubmittedAt  time.Time
}
