package update

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/vikramsk/tickd/internal/calendar"
	"github.com/vikramsk/tickd/internal/model"
	"github.com/vikramsk/tickd/internal/scheduler"
	"github.com/vikramsk/tickd/internal/tracker"
)

type View string

const (
	ViewToday    View = "Today"
	ViewTimeline View = "Timeline"
	ViewGoals    View = "Goals"
)

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Today    string
	Timeline string
	Goals    string
	Help     string
	Quit     string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

// EventSource supplies external calendar events for one day. The real
// implementation dials Google Calendar; tests stub it.
type EventSource interface {
	EventsForDay(day time.Time) ([]calendar.Event, error)
}

// SyncReporter exposes the last persistence error so the status line can
// surface rejected writes without blocking anything.
type SyncReporter interface {
	LastError() error
}

type Model struct {
	CurrentView    View
	SelectedTaskID string
	TodayCursor    int
	GoalCursor     int
	CaptureMode    bool
	Palette        CommandPaletteState
	HelpVisible    bool
	Status         StatusBar
	Keys           GlobalKeyMap
	Quitting       bool
	LastError      error

	tracker  *tracker.Tracker
	engine   *scheduler.Engine
	source   EventSource
	reporter SyncReporter
	cfg      RuntimeConfig
	now      func() time.Time

	// Bubble components used for rich TUI controls
	taskList      list.Model
	timelineTable table.Model
	quickAddInput textinput.Model
	commandInput  textinput.Model
	syncSpinner   spinner.Model
	goalProgress  progress.Model
	helpModel     help.Model
	guideViewport viewport.Model
	spinnerActive bool
}

type listItem struct {
	title       string
	description string
}

func (i listItem) FilterValue() string { return i.title + " " + i.description }
func (i listItem) Title() string       { return i.title }
func (i listItem) Description() string { return i.description }

type SwitchViewMsg struct {
	View View
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

type TickMsg struct {
	Tick scheduler.Tick
}

type CalendarEventsMsg struct {
	Day    model.DayKey
	Events []calendar.Event
	Err    error
}

func NewModel() Model {
	return NewModelWithConfig(tracker.New(), nil, nil, nil, DefaultRuntimeConfig())
}

func NewModelWithConfig(tr *tracker.Tracker, engine *scheduler.Engine, source EventSource, reporter SyncReporter, cfg RuntimeConfig) Model {
	m := Model{
		CurrentView: ViewToday,
		tracker:     tr,
		engine:      engine,
		source:      source,
		reporter:    reporter,
		cfg:         cfg,
		now:         time.Now,
		Keys: GlobalKeyMap{
			Today:    "1",
			Timeline: "2",
			Goals:    "3",
			Help:     "?",
			Quit:     "q",
		},
	}
	m.initBubbleComponents()
	m.syncBubbleData()
	return m
}

func (m *Model) initBubbleComponents() {
	m.taskList = list.New([]list.Item{}, list.NewDefaultDelegate(), 58, 12)
	m.taskList.Title = "Tasks"
	m.taskList.SetShowHelp(false)
	m.taskList.SetFilteringEnabled(false)

	cols := []table.Column{
		{Title: "From", Width: 6},
		{Title: "To", Width: 6},
		{Title: "Col", Width: 4},
		{Title: "Task", Width: 30},
	}
	m.timelineTable = table.New(table.WithColumns(cols), table.WithRows([]table.Row{}), table.WithFocused(true), table.WithHeight(8))

	m.quickAddInput = textinput.New()
	m.quickAddInput.Prompt = "add> "
	m.quickAddInput.CharLimit = 256
	m.quickAddInput.Width = 42

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.syncSpinner = spinner.New()
	m.syncSpinner.Spinner = spinner.Dot

	m.goalProgress = progress.New(progress.WithDefaultGradient())
	m.goalProgress.Width = 12

	m.helpModel = help.New()
	m.guideViewport = viewport.New(44, 12)
}

func (m *Model) syncBubbleData() {
	day := m.tracker.CurrentDay()
	tasks := m.tracker.Tasks(day)
	activeID, _ := m.tracker.Active()

	items := make([]list.Item, 0, len(tasks))
	for _, task := range tasks {
		desc := formatClock(task.TotalTime)
		if task.ID == activeID {
			desc += " (running)"
		}
		items = append(items, listItem{title: task.Name, description: desc})
	}
	m.taskList.SetItems(items)
	if len(items) > 0 {
		if m.TodayCursor >= len(items) {
			m.TodayCursor = len(items) - 1
		}
		m.taskList.Select(m.TodayCursor)
	}

	m.timelineTable.SetRows(m.timelineRows(tasks))

	m.commandInput.SetValue(m.Palette.Input)
	if m.Palette.Active {
		m.commandInput.Focus()
	}
	if m.CaptureMode {
		m.quickAddInput.Focus()
	}
}

func (m *Model) ensureTodayState() {
	tasks := m.tracker.Tasks(m.tracker.CurrentDay())
	if m.TodayCursor < 0 {
		m.TodayCursor = 0
	}
	if m.TodayCursor >= len(tasks) && len(tasks) > 0 {
		m.TodayCursor = len(tasks) - 1
	}
	if len(tasks) == 0 {
		m.SelectedTaskID = ""
		return
	}
	m.SelectedTaskID = tasks[m.TodayCursor].ID
}
