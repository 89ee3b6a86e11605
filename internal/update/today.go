package update

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vikramsk/tickd/internal/model"
	"github.com/vikramsk/tickd/internal/views"
)

func (m Model) handleTodayKey(msg tea.KeyMsg) Model {
	day := m.tracker.CurrentDay()
	tasks := m.tracker.Tasks(day)

	switch msg.String() {
	case "j", "down":
		if m.TodayCursor < len(tasks)-1 {
			m.TodayCursor++
		}
	case "k", "up":
		if m.TodayCursor > 0 {
			m.TodayCursor--
		}
	case "a":
		m.CaptureMode = true
		m.quickAddInput.SetValue("")
		m.quickAddInput.Focus()
		m.Status = StatusBar{Text: "quick add active", IsError: false}
	case "s", "enter":
		if m.SelectedTaskID == "" {
			m.Status = StatusBar{Text: "no task selected", IsError: true}
			break
		}
		if err := m.tracker.Start(day, m.SelectedTaskID); err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			break
		}
		m.Status = StatusBar{Text: "tracking started", IsError: false}
	case "x":
		activeID, _ := m.tracker.Active()
		if activeID == "" {
			m.Status = StatusBar{Text: "no task is running", IsError: true}
			break
		}
		if err := m.tracker.Stop(day, activeID); err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			break
		}
		m.Status = StatusBar{Text: "tracking stopped", IsError: false}
	case "d":
		if m.SelectedTaskID == "" {
			break
		}
		if err := m.tracker.DeleteTask(day, m.SelectedTaskID); err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			break
		}
		m.Status = StatusBar{Text: "task deleted", IsError: false}
	}
	m.ensureTodayState()
	return m
}

func (m Model) handleCaptureKey(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc":
		m.CaptureMode = false
		m.quickAddInput.SetValue("")
		m.quickAddInput.Blur()
		m.Status = StatusBar{Text: "quick add cancelled", IsError: false}
	case "enter":
		name := strings.TrimSpace(m.quickAddInput.Value())
		if name == "" {
			m.Status = StatusBar{Text: "task name is empty", IsError: true}
			return m
		}
		task, err := m.tracker.AddTask(m.tracker.CurrentDay(), name)
		if err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			return m
		}
		m.CaptureMode = false
		m.quickAddInput.SetValue("")
		m.quickAddInput.Blur()
		m.SelectedTaskID = task.ID
		m.Status = StatusBar{Text: fmt.Sprintf("added task: %s", name), IsError: false}
	default:
		if msg.Type == tea.KeyRunes {
			m.quickAddInput.SetValue(m.quickAddInput.Value() + string(msg.Runes))
			return m
		}
		var cmd tea.Cmd
		m.quickAddInput, cmd = m.quickAddInput.Update(msg)
		_ = cmd
	}
	return m
}

func (m Model) renderTodayView() string {
	day := m.tracker.CurrentDay()
	tasks := m.tracker.Tasks(day)
	activeID, activeStart := m.tracker.Active()
	now := m.now()

	items := make([]views.TodayTaskData, 0, len(tasks))
	for _, task := range tasks {
		total := task.TotalTime
		running := task.ID == activeID
		if running && !activeStart.IsZero() {
			total += now.Sub(activeStart)
		}
		scheduled := ""
		if task.ScheduledStart != nil && task.ScheduledEnd != nil {
			scheduled = fmt.Sprintf("%s-%s", task.ScheduledStart.Format("15:04"), task.ScheduledEnd.Format("15:04"))
		}
		items = append(items, views.TodayTaskData{
			ID:        task.ID,
			Name:      task.Name,
			Total:     formatClock(total),
			Running:   running,
			Imported:  task.FromCalendar(),
			Scheduled: scheduled,
		})
	}

	return views.RenderTodayPanel(views.TodayPanelData{
		Date:         string(day),
		QuickAddView: m.quickAddInput.View(),
		ListView:     m.taskList.View(),
		Tasks:        items,
		SelectedID:   m.SelectedTaskID,
		CaptureMode:  m.CaptureMode,
	})
}

// findTask resolves a palette target against the day's tasks, by exact id
// first, then by case-insensitive name.
func (m Model) findTask(day model.DayKey, target string) (string, error) {
	tasks := m.tracker.Tasks(day)
	for _, task := range tasks {
		if task.ID == target {
			return task.ID, nil
		}
	}
	for _, task := range tasks {
		if strings.EqualFold(task.Name, target) {
			return task.ID, nil
		}
	}
	return "", errors.New("no task matches " + target)
}
