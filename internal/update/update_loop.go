package update

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vikramsk/tickd/internal/scheduler"
	"github.com/vikramsk/tickd/internal/tracker"
	"github.com/vikramsk/tickd/internal/views"
)

func (m Model) Init() tea.Cmd {
	if m.engine != nil {
		return waitForTickCmd(m.engine.C())
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	defer m.syncBubbleData()

	switch typed := msg.(type) {
	case tea.KeyMsg:
		m.ensureTodayState()

		if m.Palette.Active {
			if typed.String() == m.Keys.Help {
				m.HelpVisible = !m.HelpVisible
				return m, nil
			}
			return m.handlePaletteKey(typed)
		}

		if m.CaptureMode {
			return m.handleCaptureKey(typed), nil
		}

		switch typed.String() {
		case "/":
			m.Palette.Active = true
			m.Palette.Input = ""
			m.commandInput.Focus()
			m.commandInput.SetValue("")
			m.Status = StatusBar{Text: "command palette active", IsError: false}
			return m, nil
		case m.Keys.Today:
			m.CurrentView = ViewToday
			return m, nil
		case m.Keys.Timeline:
			m.CurrentView = ViewTimeline
			return m, nil
		case m.Keys.Goals:
			m.CurrentView = ViewGoals
			return m, nil
		case m.Keys.Help:
			m.HelpVisible = !m.HelpVisible
			return m, nil
		case "i":
			return m.startImport()
		case "ctrl+c", m.Keys.Quit:
			m.Quitting = true
			return m, tea.Quit
		}

		switch m.CurrentView {
		case ViewToday:
			return m.handleTodayKey(typed), nil
		case ViewTimeline:
			return m.handleTimelineKey(typed), nil
		case ViewGoals:
			return m.handleGoalsKey(typed), nil
		}
	case spinner.TickMsg:
		if m.spinnerActive {
			var cmd tea.Cmd
			m.syncSpinner, cmd = m.syncSpinner.Update(typed)
			return m, cmd
		}
	case TickMsg:
		return m.onTick(typed.Tick)
	case CalendarEventsMsg:
		return m.onCalendarEvents(typed)
	case SwitchViewMsg:
		if isKnownView(typed.View) {
			m.CurrentView = typed.View
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	}

	return m, nil
}

func (m Model) onTick(tick scheduler.Tick) (tea.Model, tea.Cmd) {
	if tick.ID == scheduler.TickGuard {
		if m.tracker.CheckAutoStop() {
			m.Status = StatusBar{
				Text:    fmt.Sprintf("session auto-stopped after %s", formatClock(tracker.MaxSessionDuration)),
				IsError: false,
			}
		}
	}
	if m.engine != nil {
		return m, waitForTickCmd(m.engine.C())
	}
	return m, nil
}

func (m Model) View() string {
	m.syncBubbleData()

	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	leftPane := ""
	switch m.CurrentView {
	case ViewToday:
		leftPane = m.renderTodayView()
	case ViewTimeline:
		leftPane = m.renderTimelineView()
	case ViewGoals:
		leftPane = m.renderGoalsView()
	}
	rightPane := strings.TrimSpace(strings.Join([]string{
		views.RenderCommandPalette(m.Palette.Active, m.Palette.Input),
		m.renderHelpIfVisible(),
	}, "\n"))

	syncLine := ""
	if m.spinnerActive {
		syncLine = "import: " + m.syncSpinner.View() + " running"
	}
	if m.reporter != nil {
		if err := m.reporter.LastError(); err != nil {
			syncLine = strings.TrimSpace(syncLine + "\nsync: write pending retry: " + err.Error())
		}
	}

	day := m.tracker.CurrentDay()
	return views.RenderApp(views.AppData{
		Header:     fmt.Sprintf("tickd | view: %s | day: %s", m.CurrentView, day),
		LeftPane:   leftPane,
		RightPane:  rightPane,
		StatusLine: status,
		SyncLine:   syncLine,
		Footer:     fmt.Sprintf("keys: %s today | %s timeline | %s goals | i import | / cmd | %s help | %s quit", m.Keys.Today, m.Keys.Timeline, m.Keys.Goals, m.Keys.Help, m.Keys.Quit),
	})
}

func isKnownView(v View) bool {
	switch v {
	case ViewToday, ViewTimeline, ViewGoals:
		return true
	default:
		return false
	}
}

func waitForTickCmd(ch <-chan scheduler.Tick) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		tick, ok := <-ch
		if !ok {
			return nil
		}
		return TickMsg{Tick: tick}
	}
}
