package update

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vikramsk/tickd/internal/calendar"
	"github.com/vikramsk/tickd/internal/model"
)

func (m Model) startImport() (Model, tea.Cmd) {
	if m.source == nil {
		m.Status = StatusBar{Text: "calendar import is not configured", IsError: true}
		return m, nil
	}
	day := m.tracker.CurrentDay()
	m.spinnerActive = true
	m.Status = StatusBar{Text: fmt.Sprintf("importing events from %s", m.cfg.CalendarID), IsError: false}
	return m, tea.Batch(m.syncSpinner.Tick, fetchEventsCmd(m.source, day))
}

func fetchEventsCmd(source EventSource, day model.DayKey) tea.Cmd {
	return func() tea.Msg {
		date, err := day.Date()
		if err != nil {
			return CalendarEventsMsg{Day: day, Err: err}
		}
		events, err := source.EventsForDay(date)
		return CalendarEventsMsg{Day: day, Events: events, Err: err}
	}
}

func (m Model) onCalendarEvents(msg CalendarEventsMsg) (tea.Model, tea.Cmd) {
	m.spinnerActive = false
	if msg.Err != nil {
		if errors.Is(msg.Err, calendar.ErrAuthExpired) {
			m.Status = StatusBar{Text: "calendar authorization expired, sign in and retry", IsError: true}
		} else {
			m.Status = StatusBar{Text: msg.Err.Error(), IsError: true}
		}
		m.LastError = msg.Err
		return m, nil
	}

	date, err := msg.Day.Date()
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	merged := calendar.Merge(m.tracker.Tasks(msg.Day), msg.Events, date)
	m.tracker.ReplaceDay(msg.Day, merged, false)
	m.ensureTodayState()
	m.Status = StatusBar{Text: fmt.Sprintf("imported %d calendar event(s)", len(msg.Events)), IsError: false}
	return m, nil
}
