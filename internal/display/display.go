// Package display turns raw backend values into display-ready strings.
package display

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/moneykin1993/habit-app/internal/model"
)

// Study time bounds in minutes.
const (
	MinStudyMinutes  = 0
	MaxStudyMinutes  = 720
	StudyMinutesStep = 10
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var weekIDPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// TimeOption is one entry of the study time selector.
type TimeOption struct {
	Minutes int
	Label   string
}

// TimeOptions lists every selectable study time from 0 to 12 hours in 10 minute steps.
func TimeOptions() []TimeOption {
	out := make([]TimeOption, 0, MaxStudyMinutes/StudyMinutesStep+1)
	for min := MinStudyMinutes; min <= MaxStudyMinutes; min += StudyMinutesStep {
		out = append(out, TimeOption{Minutes: min, Label: MinutesLabel(min)})
	}
	return out
}

// MinutesLabel renders minutes as hours and minutes, omitting a zero unit.
// Zero minutes renders as "0 min".
func MinutesLabel(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h := minutes / 60
	m := minutes % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%d min", m)
	case m == 0:
		return fmt.Sprintf("%d h", h)
	default:
		return fmt.Sprintf("%d h %02d min", h, m)
	}
}

// HoursToHM splits fractional hours into whole hours and rounded minutes.
func HoursToHM(hours float64) (h, m int) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0, 0
	}
	total := int(math.Round(hours * 60))
	return total / 60, total % 60
}

// HoursLabel renders fractional hours as "H h M min".
func HoursLabel(hours float64) string {
	h, m := HoursToHM(hours)
	return fmt.Sprintf("%d h %d min", h, m)
}

// Number renders a backend number verbatim, without trailing zeros.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ISOWeekMonday returns the Monday (UTC midnight) of an ISO week id such as "2025-W49".
// Week 53 is accepted for every year; in a 52-week year it is the Monday of
// the next year's week 1.
func ISOWeekMonday(weekID string) (time.Time, error) {
	match := weekIDPattern.FindStringSubmatch(strings.TrimSpace(weekID))
	if match == nil {
		return time.Time{}, fmt.Errorf("invalid week id %q (expected YYYY-Www)", weekID)
	}
	year, _ := strconv.Atoi(match[1])
	week, _ := strconv.Atoi(match[2])
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("week %d out of range for %d", week, year)
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	week1Monday := jan4.AddDate(0, 0, -offset)
	return week1Monday.AddDate(0, 0, (week-1)*7), nil
}

// WeekLabel renders a week id as its Monday ("12/1~"). Invalid ids are returned unchanged.
func WeekLabel(weekID string) string {
	mon, err := ISOWeekMonday(weekID)
	if err != nil {
		return weekID
	}
	return fmt.Sprintf("%d/%d~", int(mon.Month()), mon.Day())
}

// PieAngles returns the cumulative angle boundaries of the achievement pie:
// the end of the achieved slice and the end of the not-achieved slice.
// The unreported slice implicitly runs from the second boundary to 360.
func PieAngles(p model.Pie) (achievedEnd, notAchievedEnd float64) {
	a := math.Max(0, float64(p.Achieved))
	n := math.Max(0, float64(p.NotAchieved))
	u := math.Max(0, float64(p.Unreported))
	total := a + n + u
	if total == 0 {
		total = 1
	}
	achievedEnd = a / total * 360
	notAchievedEnd = achievedEnd + n/total*360
	if notAchievedEnd > 360 {
		notAchievedEnd = 360
	}
	return achievedEnd, notAchievedEnd
}

// Today returns the calendar date of now in loc as YYYY-MM-DD.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}

// ShortDate trims a YYYY-MM-DD date to MM-DD for calendar cells.
func ShortDate(date string) string {
	if len(date) == len(DateLayout) {
		return date[5:]
	}
	return date
}

// HasAnySpace reports whether s contains a half-width or full-width space.
func HasAnySpace(s string) bool {
	return strings.ContainsAny(s, " 　")
}
