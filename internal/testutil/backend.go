// Package testutil provides an in-memory backend for package tests.
package testutil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/moneykin1993/habit-app/internal/model"
)

const dateLayout = "2006-01-02"

// Student is a roster entry of the fake backend.
type Student struct {
	Key   string
	Group string
	Name  string
	Email string
	Hint  string
}

// Backend is a fake of the remote backend served over httptest.
// It speaks the ?path= protocol and keeps reports in memory.
type Backend struct {
	AdminToken string
	TeamGrade  bool

	mu       sync.Mutex
	srv      *httptest.Server
	calls    map[string]int
	students map[string]Student
	tokens   map[string]string
	reports  map[string]map[string]model.ReportRecord
	failures map[string]string
	raw      map[string]string
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		AdminToken: "admin-secret",
		calls:      map[string]int{},
		students:   map[string]Student{},
		tokens:     map[string]string{},
		reports:    map[string]map[string]model.ReportRecord{},
		failures:   map[string]string{},
		raw:        map[string]string{},
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

// URL is the endpoint to configure clients with.
func (b *Backend) URL() string {
	return b.srv.URL + "/api/gas"
}

// AddStudent registers a roster entry. An empty key gets a generated one.
func (b *Backend) AddStudent(s Student) Student {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.Key == "" {
		s.Key = "stu-" + uuid.NewString()[:8]
	}
	b.students[s.Key] = s
	return s
}

// IssueToken returns a valid device token for studentKey.
func (b *Backend) IssueToken(studentKey string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.tokens[token] = studentKey
	return token
}

// Fail makes every call to path answer {ok:false, message}.
func (b *Backend) Fail(path, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = message
}

// Raw makes every call to path answer body verbatim.
func (b *Backend) Raw(path, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.raw[path] = body
}

// Reset drops configured failures and raw bodies.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = map[string]string{}
	b.raw = map[string]string{}
}

// Calls returns how many times path was called.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// TotalCalls returns the number of calls across all paths.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// PutReport stores a report directly.
func (b *Backend) PutReport(studentKey string, rec model.ReportRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(studentKey, rec)
}

// Report returns the stored report for a student and date.
func (b *Backend) Report(studentKey, date string) (model.ReportRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.reports[studentKey][date]
	return rec, ok
}

func (b *Backend) putLocked(studentKey string, rec model.ReportRecord) {
	if b.reports[studentKey] == nil {
		b.reports[studentKey] = map[string]model.ReportRecord{}
	}
	b.reports[studentKey][rec.ReportDate] = rec
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[path]++

	if raw, ok := b.raw[path]; ok {
		_, _ = w.Write([]byte(raw))
		return
	}
	if msg, ok := b.failures[path]; ok {
		writeJSON(w, map[string]any{"ok": false, "message": msg})
		return
	}

	str := func(k string) string {
		v, _ := body[k].(string)
		return v
	}

	switch path {
	case "/auth/first-login":
		s, ok := b.findLocked(str("group_name"), str("name_raw"))
		if !ok || s.Email != str("email_raw") {
			writeJSON(w, map[string]any{"ok": false, "message": "not registered"})
			return
		}
		token := uuid.NewString()
		b.tokens[token] = s.Key
		writeJSON(w, map[string]any{"ok": true, "device_token": token})
	case "/auth/auto-login":
		s, ok := b.students[b.tokens[str("device_token")]]
		if !ok {
			writeJSON(w, map[string]any{"ok": false, "message": "unknown device"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "student_key": s.Key, "group_name": s.Group, "display_name": s.Name})
	case "/auth/email-hint":
		s, ok := b.findLocked(str("group_name"), str("name_raw"))
		if !ok || s.Hint == "" {
			writeJSON(w, map[string]any{"ok": false, "message": "not found"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "email_hint": s.Hint})
	case "/student/get-week":
		key := str("student_key")
		if _, ok := b.students[key]; !ok {
			writeJSON(w, map[string]any{"ok": false, "message": "student not found"})
			return
		}
		b.writeWeekLocked(w, key, str("selected_date"))
	case "/student/submit":
		key := str("student_key")
		if _, ok := b.students[key]; !ok {
			writeJSON(w, map[string]any{"ok": false, "message": "student not found"})
			return
		}
		minutes, _ := body["study_minutes"].(float64)
		rec := model.ReportRecord{
			ReportDate:        str("report_date"),
			PlanStatus:        model.PlanStatus(str("plan_status")),
			StudyMinutes:      int(minutes),
			NotAchievedReason: str("not_achieved_reason"),
			ImprovementChoice: str("improvement_choice"),
		}
		if !rec.PlanStatus.Valid() || rec.StudyMinutes < 0 || rec.StudyMinutes > 720 {
			writeJSON(w, map[string]any{"ok": false, "message": "invalid report"})
			return
		}
		b.putLocked(key, rec)
		writeJSON(w, map[string]any{"ok": true, "results": b.summaryLocked(key, rec.ReportDate)})
	case "/parent/resolve-student":
		s, ok := b.findLocked(str("group_name"), str("name_raw"))
		if !ok {
			writeJSON(w, map[string]any{"ok": false, "message": ""})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "student_key": s.Key})
	case "/parent/get-week-summary":
		key := str("student_key")
		today := time.Now().Format(dateLayout)
		writeJSON(w, map[string]any{
			"ok":                  true,
			"improvement_support": b.supportLocked(key, today),
			"results":             b.summaryLocked(key, today),
		})
	case "/admin/group-table":
		b.writeGroupTableLocked(w, r.URL.Query().Get("group_name"), r.URL.Query().Get("admin_token"))
	default:
		writeJSON(w, map[string]any{"ok": false, "message": "unknown path"})
	}
}

func (b *Backend) findLocked(group, name string) (Student, bool) {
	for _, s := range b.students {
		if s.Group == group && s.Name == name {
			return s, true
		}
	}
	return Student{}, false
}

func (b *Backend) writeWeekLocked(w http.ResponseWriter, key, selected string) {
	days := weekOf(selected)
	calendar := make([]model.CalendarDay, 0, len(days))
	for _, d := range days {
		calendar = append(calendar, model.CalendarDay{Date: d, Mark: b.markLocked(key, d)})
	}
	var existing *model.ReportRecord
	if rec, ok := b.reports[key][selected]; ok {
		existing = &rec
	}
	writeJSON(w, map[string]any{
		"ok":                  true,
		"calendar":            calendar,
		"selected_date":       selected,
		"existing_report":     existing,
		"improvement_support": b.supportLocked(key, selected),
	})
}

func (b *Backend) markLocked(key, date string) model.Mark {
	rec, ok := b.reports[key][date]
	switch {
	case !ok:
		return model.MarkNone
	case rec.PlanStatus == model.PlanAchieved:
		return model.MarkAchieved
	default:
		return model.MarkSubmitted
	}
}

func (b *Backend) supportLocked(key, date string) *model.ImprovementSupport {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil
	}
	prev, ok := b.reports[key][day.AddDate(0, 0, -1).Format(dateLayout)]
	if !ok || prev.ImprovementChoice == "" {
		return nil
	}
	return &model.ImprovementSupport{Raw: prev.ImprovementChoice, Text: "Yesterday you planned: " + prev.ImprovementChoice}
}

func (b *Backend) summaryLocked(key, date string) model.AnalyticsSummary {
	var pie model.Pie
	minutes := 0
	for _, d := range weekOf(date) {
		rec, ok := b.reports[key][d]
		switch {
		case !ok:
			pie.Unreported++
		case rec.PlanStatus == model.PlanAchieved:
			pie.Achieved++
		default:
			pie.NotAchieved++
		}
		if ok {
			minutes += rec.StudyMinutes
		}
	}
	streak := 0
	if day, err := time.Parse(dateLayout, date); err == nil {
		for {
			if _, ok := b.reports[key][day.Format(dateLayout)]; !ok {
				break
			}
			streak++
			day = day.AddDate(0, 0, -1)
		}
	}
	rate := math.Round(float64(pie.Achieved)*1000/7) / 10
	hours := math.Round(float64(minutes)/60*100) / 100
	sum := model.AnalyticsSummary{
		StreakDays:          streak,
		WeekAchievedRatePct: rate,
		Pie:                 pie,
		WeekTotalHours:      hours,
		AvgDailyHours:       math.Round(hours/7*100) / 100,
		Grade:               gradeFor(rate),
		GradeMessage:        "Keep it up!",
	}
	if b.TeamGrade {
		sum.TeamGrade = model.GradeA
		sum.TeamGradeMessage = "Your team is doing well."
	}
	return sum
}

func (b *Backend) writeGroupTableLocked(w http.ResponseWriter, group, token string) {
	if token == "" || token != b.AdminToken {
		writeJSON(w, map[string]any{"ok": false, "message": "no permission"})
		return
	}
	weeks := []string{"2025-W48", "2025-W49"}
	var rows []model.AdminRow
	for _, s := range b.students {
		if s.Group != group {
			continue
		}
		days := len(b.reports[s.Key])
		minutes := 0
		for _, rec := range b.reports[s.Key] {
			minutes += rec.StudyMinutes
		}
		cells := map[string]model.WeekCell{}
		for _, wk := range weeks {
			cells[wk] = model.WeekCell{Grade: "C", Reports: "0/7", Rate: "0%", Hours: "0"}
		}
		rows = append(rows, model.AdminRow{
			Name:              s.Name,
			StudentKey:        s.Key,
			LatestGrade:       model.GradeC,
			PeriodReportsDays: days,
			PeriodTotalHours:  float64(minutes) / 60,
			Weeks:             cells,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	writeJSON(w, map[string]any{
		"ok":         true,
		"group_name": group,
		"cycle":      model.Cycle{Start: "2025-11-24", End: "2025-12-07"},
		"weeks":      weeks,
		"rows":       rows,
	})
}

func gradeFor(rate float64) model.Grade {
	switch {
	case rate >= 80:
		return model.GradeS
	case rate >= 60:
		return model.GradeA
	case rate >= 40:
		return model.GradeB
	default:
		return model.GradeC
	}
}

// weekOf returns the Monday-to-Sunday dates around date.
func weekOf(date string) []string {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil
	}
	offset := (int(day.Weekday()) + 6) % 7
	mon := day.AddDate(0, 0, -offset)
	out := make([]string, 7)
	for i := range out {
		out[i] = mon.AddDate(0, 0, i).Format(dateLayout)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
