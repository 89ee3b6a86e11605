package update

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vikramsk/tickd/internal/commands"
	"github.com/vikramsk/tickd/internal/model"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Palette.Active = false
		m.Palette.Input = ""
		m.commandInput.SetValue("")
		m.commandInput.Blur()
		m.Status = StatusBar{Text: "command palette closed", IsError: false}
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	default:
		if msg.Type == tea.KeyRunes {
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			m.Palette.Input = m.commandInput.Value()
			return m, nil
		}
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		_ = cmd
		m.Palette.Input = m.commandInput.Value()
	}
	return m, nil
}

func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}

	// Import runs asynchronously; everything else applies in place.
	if cmd.Type == commands.TypeImport {
		return m.startImport()
	}

	day := m.tracker.CurrentDay()
	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			task, err := m.tracker.AddTask(day, a.Name)
			if err != nil {
				return commands.Result{}, err
			}
			m.SelectedTaskID = task.ID
			return commands.Result{Message: fmt.Sprintf("added task: %s", a.Name)}, nil
		},
		Start: func(s commands.StartArgs) (commands.Result, error) {
			id, err := m.findTask(day, s.Target)
			if err != nil {
				return commands.Result{}, err
			}
			if err := m.tracker.Start(day, id); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "tracking started"}, nil
		},
		Stop: func() (commands.Result, error) {
			activeID, _ := m.tracker.Active()
			if activeID == "" {
				return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: "no task is running"}
			}
			if err := m.tracker.Stop(day, activeID); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "tracking stopped"}, nil
		},
		Goal: func(g commands.GoalArgs) (commands.Result, error) {
			current := goalAt(m.tracker.GoalsFor(day), g.Slot)
			if err := m.tracker.SetGoal(day, g.Slot, g.Text, current.AchievementRate); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("goal %d updated", g.Slot+1)}, nil
		},
		Clear: func() (commands.Result, error) {
			m.tracker.ClearDay(day)
			return commands.Result{Message: "day cleared"}, nil
		},
		Day: func(d commands.DayArgs) (commands.Result, error) {
			target := model.DayKeyOf(d.When)
			if d.Today {
				target = model.DayKeyOf(m.now())
			}
			m.tracker.SetDay(target)
			m.TodayCursor = 0
			return commands.Result{Message: "switched to " + string(target)}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
	} else {
		m.Status = StatusBar{Text: res.Message, IsError: false}
	}
	m.ensureTodayState()
	return m, nil
}
