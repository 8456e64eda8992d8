// Package analytics renders backend results for terminals. It computes
// nothing beyond presentation: labels, pie boundaries and table layout.
package analytics

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/moneykin1993/habit-app/internal/display"
	"github.com/moneykin1993/habit-app/internal/model"
)

const (
	terminalWidthBackup = 80
	defaultPieWidth     = 28
	minPieWidth         = 10
	pieMargin           = 4
	colorReset          = "\x1b[0m"
	colorGradeC         = "\x1b[1;31m"

	pieAchieved    = '█'
	pieNotAchieved = '▒'
	pieUnreported  = '░'
)

// HoursStyle selects how hour totals are printed.
type HoursStyle int

const (
	// HoursDecimal prints backend hours verbatim, e.g. "5.5 h".
	HoursDecimal HoursStyle = iota
	// HoursClock prints hours as "5 h 30 min".
	HoursClock
)

// Options control result rendering.
type Options struct {
	ShowAverage bool
	Hours       HoursStyle
	Color       bool
	PieWidth    int
}

// Metric is one card of the result summary.
type Metric struct {
	Label string
	Value string
	Note  string
}

// Metrics returns the summary cards. The team card is present only when the
// backend returned a team grade.
func Metrics(sum model.AnalyticsSummary, hours HoursStyle) []Metric {
	metrics := []Metric{
		{Label: "Streak", Value: fmt.Sprintf("%d days", sum.StreakDays), Note: "in a row"},
		{Label: "Week total", Value: formatHours(sum.WeekTotalHours, hours), Note: "this week"},
		{Label: "Grade", Value: string(sum.Grade), Note: "this week"},
	}
	if sum.HasTeamGrade() {
		metrics = append(metrics, Metric{Label: "Team grade", Value: string(sum.TeamGrade), Note: "this week"})
	}
	return metrics
}

func formatHours(hours float64, style HoursStyle) string {
	if style == HoursClock {
		return display.HoursLabel(hours)
	}
	return display.Number(hours) + " h"
}

// AverageLine is the revealed average daily study time.
func AverageLine(sum model.AnalyticsSummary, hours HoursStyle) string {
	return "Per day: " + formatHours(sum.AvgDailyHours, hours)
}

// RateLine states the week's achievement percentage verbatim.
func RateLine(sum model.AnalyticsSummary) string {
	return fmt.Sprintf("This week: %s%% achieved", display.Number(sum.WeekAchievedRatePct))
}

// PieLegend lists the day counts of each slice.
func PieLegend(p model.Pie) []string {
	return []string{
		fmt.Sprintf("%c Achieved: %d day", pieAchieved, p.Achieved),
		fmt.Sprintf("%c Not achieved: %d day", pieNotAchieved, p.NotAchieved),
		fmt.Sprintf("%c Unreported: %d day", pieUnreported, p.Unreported),
	}
}

// PieBar draws the pie as a horizontal bar split at the pie's angle boundaries.
func PieBar(p model.Pie, width int) string {
	if width <= 0 {
		width = defaultPieWidth
	}
	b1, b2 := display.PieAngles(p)
	if p.Achieved+p.NotAchieved+p.Unreported <= 0 {
		return strings.Repeat(string(pieUnreported), width)
	}
	end1 := int(math.Round(b1 / 360 * float64(width)))
	end2 := int(math.Round(b2 / 360 * float64(width)))
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < end1:
			b.WriteRune(pieAchieved)
		case i < end2:
			b.WriteRune(pieNotAchieved)
		default:
			b.WriteRune(pieUnreported)
		}
	}
	return b.String()
}

// SupportText is the "today's improvement" block or a placeholder.
func SupportText(s *model.ImprovementSupport) string {
	if s == nil || strings.TrimSpace(s.Text) == "" {
		return "-"
	}
	return s.Text
}

// ResultLines renders a summary as plain lines.
func ResultLines(sum model.AnalyticsSummary, opts Options) []string {
	lines := []string{}
	for _, m := range Metrics(sum, opts.Hours) {
		lines = append(lines, fmt.Sprintf("%-11s %s (%s)", m.Label+":", m.Value, m.Note))
	}
	lines = append(lines, RateLine(sum), PieBar(sum.Pie, opts.PieWidth))
	lines = append(lines, PieLegend(sum.Pie)...)
	if opts.ShowAverage {
		lines = append(lines, AverageLine(sum, opts.Hours))
	}
	if sum.GradeMessage != "" {
		lines = append(lines, sum.GradeMessage)
	}
	if sum.HasTeamGrade() && sum.TeamGradeMessage != "" {
		lines = append(lines, sum.TeamGradeMessage)
	}
	return lines
}

// RenderResults prints a result summary.
func RenderResults(w io.Writer, sum model.AnalyticsSummary, opts Options) error {
	if _, err := fmt.Fprintln(w, "Results"); err != nil {
		return err
	}
	return writeLines(w, ResultLines(sum, opts))
}

// RenderWeekSummary prints the parent view.
func RenderWeekSummary(w io.Writer, student string, sum model.WeekSummary, opts Options) error {
	if _, err := fmt.Fprintf(w, "Study status: %s\n", student); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Today's improvement (from yesterday): %s\n\n", SupportText(sum.ImprovementSupport)); err != nil {
		return err
	}
	return RenderResults(w, sum.Results, opts)
}

// AdminHeaders returns the column headers for a group table.
func AdminHeaders(weeks []string) []string {
	headers := []string{"Name", "Latest", "Days", "Hours", "Streak"}
	for _, wk := range weeks {
		headers = append(headers, display.WeekLabel(wk))
	}
	return headers
}

// AdminCell renders one per-week cell. Missing cells render empty.
func AdminCell(c model.WeekCell) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.Grade, c.Reports, c.Rate, c.Hours} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// AdminRows returns the table body and the set of [row][col] cells graded C.
func AdminRows(table model.AdminTable) ([][]string, map[[2]int]bool) {
	rows := make([][]string, 0, len(table.Rows))
	gradeC := map[[2]int]bool{}
	for r, row := range table.Rows {
		cells := []string{
			row.Name,
			string(row.LatestGrade),
			fmt.Sprintf("%d", row.PeriodReportsDays),
			display.Number(row.PeriodTotalHours) + "h",
			fmt.Sprintf("%d", row.LatestStreakDays),
		}
		for i, wk := range table.Weeks {
			cell := row.Weeks[wk]
			if cell.Grade == string(model.GradeC) {
				gradeC[[2]int{r, 5 + i}] = true
			}
			cells = append(cells, AdminCell(cell))
		}
		rows = append(rows, cells)
	}
	return rows, gradeC
}

// RenderAdminTable prints the group table. Week cells graded C are highlighted
// when color is enabled and marked with "!" otherwise.
func RenderAdminTable(w io.Writer, table model.AdminTable, color bool) error {
	if _, err := fmt.Fprintf(w, "%s  period: %s ~ %s\n", table.GroupName, table.Cycle.Start, table.Cycle.End); err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No students found.")
		return err
	}
	rows, gradeC := AdminRows(table)
	if !color {
		for key := range gradeC {
			rows[key[0]][key[1]] = "!" + rows[key[0]][key[1]]
		}
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true}
	style := func(row, col int, padded string) string {
		if color && gradeC[[2]int{row, col}] {
			return colorGradeC + padded + colorReset
		}
		return padded
	}
	return writeLines(w, formatTable(AdminHeaders(table.Weeks), rows, rightAlign, style))
}

// RenderJournal prints locally recorded submissions.
func RenderJournal(w io.Writer, entries []model.JournalEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No submissions recorded on this device.")
		return err
	}
	headers := []string{"Date", "Plan", "Time", "Reason", "Improvement", "Grade", "Streak", "Rate"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		plan := "achieved"
		if e.PlanStatus == model.PlanNotAchieved {
			plan = "not achieved"
		}
		rows = append(rows, []string{
			e.ReportDate,
			plan,
			display.MinutesLabel(e.StudyMinutes),
			e.Reason,
			e.Improvement,
			string(e.Grade),
			fmt.Sprintf("%d", e.StreakDays),
			display.Number(e.RatePct) + "%",
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{6: true, 7: true}, nil))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// TerminalWidth returns the width of stdout or a fallback.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// PieWidthFor sizes the pie bar for a terminal termWidth columns wide.
func PieWidthFor(termWidth int) int {
	width := termWidth - pieMargin
	if width > defaultPieWidth {
		return defaultPieWidth
	}
	if width < minPieWidth {
		return minPieWidth
	}
	return width
}

// ShouldUseColor reports whether w is a terminal that accepts ANSI color.
func ShouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
