package update

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vikramsk/tickd/internal/model"
	"github.com/vikramsk/tickd/internal/views"
)

const rateStep = 10

func (m Model) handleGoalsKey(msg tea.KeyMsg) Model {
	day := m.tracker.CurrentDay()

	switch msg.String() {
	case "j", "down":
		if m.GoalCursor < 2*model.QuadrantSize-1 {
			m.GoalCursor++
		}
	case "k", "up":
		if m.GoalCursor > 0 {
			m.GoalCursor--
		}
	case "+", "=":
		m.adjustSelectedRate(day, rateStep)
	case "-":
		m.adjustSelectedRate(day, -rateStep)
	case "c":
		date, err := day.Date()
		if err != nil {
			break
		}
		previous := model.DayKeyOf(date.AddDate(0, 0, -1))
		m.tracker.CopyGoals(previous, day)
		m.Status = StatusBar{Text: "goals copied from " + string(previous), IsError: false}
	}
	return m
}

func (m *Model) adjustSelectedRate(day model.DayKey, delta int) {
	goals := m.tracker.GoalsFor(day)
	goal := goalAt(goals, m.GoalCursor)
	if err := m.tracker.SetGoal(day, m.GoalCursor, goal.Text, goal.AchievementRate+delta); err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return
	}
	m.Status = StatusBar{Text: "achievement rate updated", IsError: false}
}

func goalAt(goals model.Goals, slot int) model.Goal {
	if slot < model.QuadrantSize {
		return goals.Primary[slot]
	}
	return goals.Secondary[slot-model.QuadrantSize]
}

func (m Model) renderGoalsView() string {
	day := m.tracker.CurrentDay()
	goals := m.tracker.GoalsFor(day)

	primary := make([]views.GoalSlotData, 0, model.QuadrantSize)
	secondary := make([]views.GoalSlotData, 0, model.QuadrantSize)
	for i, g := range goals.Primary {
		primary = append(primary, m.goalSlotData(i, g))
	}
	for i, g := range goals.Secondary {
		secondary = append(secondary, m.goalSlotData(model.QuadrantSize+i, g))
	}

	return views.RenderGoalsPanel(views.GoalsPanelData{
		Date:         string(day),
		Primary:      primary,
		Secondary:    secondary,
		SelectedSlot: m.GoalCursor,
	})
}

func (m Model) goalSlotData(slot int, g model.Goal) views.GoalSlotData {
	return views.GoalSlotData{
		Slot: slot,
		Text: g.Text,
		Rate: g.AchievementRate,
		Bar:  m.goalProgress.ViewAs(float64(g.AchievementRate) / 100),
	}
}
