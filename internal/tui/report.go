package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/moneykin1993/habit-app/internal/analytics"
	"github.com/moneykin1993/habit-app/internal/catalog"
	"github.com/moneykin1993/habit-app/internal/display"
	"github.com/moneykin1993/habit-app/internal/draft"
	"github.com/moneykin1993/habit-app/internal/model"
	"github.com/moneykin1993/habit-app/internal/report"
)

type reportField int

const (
	fieldDate reportField = iota
	fieldStatus
	fieldMinutes
	fieldReason
	fieldReasonOther
	fieldImprovement
	fieldImprovementOther
)

var fieldLabels = map[reportField]string{
	fieldDate:             "Date",
	fieldStatus:           "Plan",
	fieldMinutes:          "Study time",
	fieldReason:           "Reason",
	fieldReasonOther:      "Reason (other)",
	fieldImprovement:      "Improvement",
	fieldImprovementOther: "Improvement (free text)",
}

type reportForm struct {
	focused          reportField
	reasonOther      textinput.Model
	improvementOther textinput.Model
	notice           string
}

func newReportForm() reportForm {
	return reportForm{
		reasonOther:      newTextInput("", "describe the reason"),
		improvementOther: newTextInput("", "what will you change tomorrow"),
	}
}

// visibleFields lists the form rows the draft currently shows, top to bottom.
func visibleFields(d draft.Draft) []reportField {
	fields := []reportField{fieldDate, fieldStatus, fieldMinutes}
	if d.ShowsReason() {
		fields = append(fields, fieldReason)
	}
	if d.ShowsReasonOther() {
		fields = append(fields, fieldReasonOther)
	}
	if d.ShowsImprovement() {
		if len(d.ImprovementOptions()) > 0 {
			fields = append(fields, fieldImprovement)
		}
		fields = append(fields, fieldImprovementOther)
	}
	return fields
}

func (f *reportForm) editingText() bool {
	return f.focused == fieldReasonOther || f.focused == fieldImprovementOther
}

// sync mirrors the controller's draft into the text inputs and keeps the
// focus on a visible row.
func (f *reportForm) sync(ctrl *report.Controller) tea.Cmd {
	d := ctrl.Draft()
	na := d.Fields()
	if f.reasonOther.Value() != na.ReasonOther {
		f.reasonOther.SetValue(na.ReasonOther)
	}
	if f.improvementOther.Value() != na.ImprovementOther {
		f.improvementOther.SetValue(na.ImprovementOther)
	}
	fields := visibleFields(d)
	visible := false
	for _, fld := range fields {
		if fld == f.focused {
			visible = true
			break
		}
	}
	if !visible {
		next := fieldDate
		for _, fld := range fields {
			if fld < f.focused {
				next = fld
			}
		}
		f.focused = next
	}
	return f.focusInput()
}

func (f *reportForm) focusInput() tea.Cmd {
	f.reasonOther.Blur()
	f.improvementOther.Blur()
	switch f.focused {
	case fieldReasonOther:
		return f.reasonOther.Focus()
	case fieldImprovementOther:
		return f.improvementOther.Focus()
	}
	return nil
}

func (f *reportForm) move(delta int, d draft.Draft) tea.Cmd {
	fields := visibleFields(d)
	idx := 0
	for i, fld := range fields {
		if fld == f.focused {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(fields) {
		idx = len(fields) - 1
	}
	f.focused = fields[idx]
	return f.focusInput()
}

func (f *reportForm) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focused {
	case fieldReasonOther:
		f.reasonOther, cmd = f.reasonOther.Update(msg)
	case fieldImprovementOther:
		f.improvementOther, cmd = f.improvementOther.Update(msg)
	}
	return cmd
}

func (m *Model) updateReport(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, m.form.updateInput(msg)
	}
	f := &m.form
	switch key.Type {
	case tea.KeyUp, tea.KeyShiftTab:
		return m, f.move(-1, m.ctrl.Draft())
	case tea.KeyDown, tea.KeyTab:
		return m, f.move(1, m.ctrl.Draft())
	case tea.KeyEnter:
		return m, m.startSubmit()
	}
	if f.editingText() {
		if m.ctrl.Busy() {
			return m, nil
		}
		cmd := f.updateInput(key)
		switch f.focused {
		case fieldReasonOther:
			m.ctrl.Edit(draft.SetReasonOther{Text: f.reasonOther.Value()})
		case fieldImprovementOther:
			m.ctrl.Edit(draft.SetImprovementOther{Text: f.improvementOther.Value()})
		}
		f.notice = ""
		return m, cmd
	}
	switch key.String() {
	case "q", "esc":
		return m, tea.Quit
	case "a":
		m.ctrl.ToggleAverage()
		return m, nil
	case "r":
		return m, m.reload()
	case "left", "h":
		return m, m.change(-1)
	case "right", "l", " ":
		return m, m.change(1)
	}
	return m, nil
}

// change steps the focused row's value.
func (m *Model) change(delta int) tea.Cmd {
	if m.form.focused == fieldDate {
		return m.moveDate(delta)
	}
	if m.ctrl.Busy() {
		return nil
	}
	d := m.ctrl.Draft()
	switch m.form.focused {
	case fieldStatus:
		next := model.PlanNotAchieved
		if d.Status() == model.PlanNotAchieved {
			next = model.PlanAchieved
		}
		m.ctrl.Edit(draft.SetStatus{Status: next})
	case fieldMinutes:
		minutes := d.Minutes + delta*display.StudyMinutesStep
		if minutes < display.MinStudyMinutes {
			minutes = display.MinStudyMinutes
		}
		if minutes > display.MaxStudyMinutes {
			minutes = display.MaxStudyMinutes
		}
		m.ctrl.Edit(draft.SetMinutes{Minutes: minutes})
	case fieldReason:
		options := append([]string{""}, catalog.Reasons()...)
		m.ctrl.Edit(draft.SelectReason{Reason: cycle(options, d.Fields().Reason, delta)})
	case fieldImprovement:
		options := append([]string{""}, d.ImprovementOptions()...)
		m.ctrl.Edit(draft.SelectImprovement{Choice: cycle(options, d.Fields().Improvement, delta)})
	}
	m.form.notice = ""
	return m.form.sync(m.ctrl)
}

func cycle(options []string, current string, delta int) string {
	idx := 0
	for i, opt := range options {
		if opt == current {
			idx = i
			break
		}
	}
	n := len(options)
	return options[((idx+delta)%n+n)%n]
}

func (m *Model) moveDate(delta int) tea.Cmd {
	view := m.ctrl.View()
	if view == nil {
		return nil
	}
	idx := -1
	for i, day := range view.Calendar {
		if day.Date == m.ctrl.Selection().Date {
			idx = i
			break
		}
	}
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(view.Calendar) {
		return nil
	}
	req, ok := m.ctrl.SelectDate(view.Calendar[next].Date)
	if !ok {
		return nil
	}
	m.form.notice = ""
	return tea.Batch(m.spinner.Tick, m.fetchCmd(req))
}

func (m *Model) reload() tea.Cmd {
	if m.ctrl.Busy() {
		return nil
	}
	sel := m.ctrl.Selection()
	req := m.ctrl.Select(sel.StudentKey, sel.Date)
	m.form.notice = ""
	return tea.Batch(m.spinner.Tick, m.fetchCmd(req))
}

func (m *Model) startSubmit() tea.Cmd {
	req, err := m.ctrl.PrepareSubmit()
	if err != nil {
		var verr *draft.ValidationError
		if errors.As(err, &verr) && verr.Field == "not_achieved_reason" {
			m.form.notice = "Choose a reason before submitting."
		} else if errors.Is(err, draft.ErrNotSubmittable) {
			m.form.notice = "The report is not complete yet."
		}
		return nil
	}
	m.form.notice = ""
	return tea.Batch(m.spinner.Tick, m.submitCmd(req))
}

func (m *Model) viewReport() string {
	header := titleStyle.Render("Daily report")
	if m.session.DisplayName != "" {
		header += "  " + mutedStyle.Render(m.session.DisplayName+" · "+m.session.GroupName)
	}
	lines := []string{header, ""}

	view := m.ctrl.View()
	if view == nil {
		if m.ctrl.Busy() {
			lines = append(lines, m.spinner.View()+" Loading week...")
		}
		if msg := m.ctrl.Message(); msg != "" {
			lines = append(lines, errorStyle.Render(msg), mutedStyle.Render("Press r to retry."))
		}
		return strings.Join(lines, "\n")
	}

	lines = append(lines,
		m.renderCalendar(view.Calendar),
		mutedStyle.Render(string(model.MarkAchieved)+" achieved  "+string(model.MarkSubmitted)+" submitted"),
		"",
		labelStyle.Render("Today's improvement (from yesterday)"),
		valueStyle.Render(wrapText(analytics.SupportText(view.ImprovementSupport), m.width)),
		"",
	)
	if m.ctrl.EditMode() {
		lines = append(lines, noticeStyle.Render("Already submitted. Resubmitting overwrites the report."))
	}
	lines = append(lines, m.renderForm()...)
	lines = append(lines, "", m.renderSubmitLine())
	if msg := m.ctrl.Message(); msg != "" {
		lines = append(lines, errorStyle.Render(wrapText(msg, m.width)))
	}
	if a := m.ctrl.Analytics(); a != nil {
		lines = append(lines, "", m.renderAnalytics(*a))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderCalendar(days []model.CalendarDay) string {
	cells := make([]string, 0, len(days))
	selected := m.ctrl.Selection().Date
	for _, day := range days {
		mark := string(day.Mark)
		if mark == "" {
			mark = " "
		}
		text := display.ShortDate(day.Date) + " " + mark
		style := dayStyle
		if day.Date == selected {
			style = selectedStyle.Padding(0, 1)
		}
		cells = append(cells, style.Render(text))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *Model) renderForm() []string {
	d := m.ctrl.Draft()
	na := d.Fields()
	lines := []string{}
	for _, fld := range visibleFields(d) {
		var value string
		switch fld {
		case fieldDate:
			value = m.ctrl.Selection().Date
		case fieldStatus:
			value = "Achieved"
			if d.Status() == model.PlanNotAchieved {
				value = "Not achieved"
			}
		case fieldMinutes:
			value = display.MinutesLabel(d.Minutes)
		case fieldReason:
			value = orNone(na.Reason)
		case fieldReasonOther:
			value = m.form.reasonOther.View()
		case fieldImprovement:
			value = orNone(na.Improvement)
		case fieldImprovementOther:
			value = m.form.improvementOther.View()
		}
		lines = append(lines, m.formRow(fld, value))
	}
	return lines
}

func (m *Model) formRow(fld reportField, value string) string {
	label := padLine(fieldLabels[fld], 24)
	if fld != m.form.focused {
		return "  " + labelStyle.Render(label) + valueStyle.Render(value)
	}
	if m.form.editingText() {
		return focusStyle.Render("> "+label) + value
	}
	return focusStyle.Render("> "+label) + "< " + valueStyle.Render(value) + " >"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func (m *Model) renderSubmitLine() string {
	switch {
	case m.ctrl.Busy():
		return m.spinner.View() + " Working..."
	case m.form.notice != "":
		return noticeStyle.Render(m.form.notice)
	case m.ctrl.CanSubmit():
		return focusStyle.Render("[ Submit: enter ]")
	default:
		return mutedStyle.Render("[ Submit ]")
	}
}

func (m *Model) renderAnalytics(sum model.AnalyticsSummary) string {
	metrics := analytics.Metrics(sum, analytics.HoursDecimal)
	cards := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		cards = append(cards, metricCard(metric))
	}
	var row string
	if m.width > 0 && m.width < 80 {
		row = lipgloss.JoinVertical(lipgloss.Left, cards...)
	} else {
		row = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	lines := []string{titleStyle.Render("Results"), row, analytics.RateLine(sum), analytics.PieBar(sum.Pie, 0)}
	lines = append(lines, analytics.PieLegend(sum.Pie)...)
	if m.ctrl.ShowAverage() {
		lines = append(lines, analytics.AverageLine(sum, analytics.HoursDecimal))
	} else {
		lines = append(lines, mutedStyle.Render("Per day: press a to show"))
	}
	if sum.GradeMessage != "" {
		lines = append(lines, wrapText(sum.GradeMessage, m.width))
	}
	if sum.HasTeamGrade() && sum.TeamGradeMessage != "" {
		lines = append(lines, wrapText(sum.TeamGradeMessage, m.width))
	}
	return strings.Join(lines, "\n")
}

func metricCard(metric analytics.Metric) string {
	content := cardTitleStyle.Render(metric.Label) + "\n" +
		cardValueStyle.Render(metric.Value) + "\n" +
		cardTitleStyle.Render(metric.Note)
	return cardStyle.Render(content)
}
