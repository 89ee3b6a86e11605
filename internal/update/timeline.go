package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vikramsk/tickd/internal/layout"
	"github.com/vikramsk/tickd/internal/model"
	"github.com/vikramsk/tickd/internal/views"
)

// The hourly grid covers the usual waking window. Scheduled blocks outside
// it still show up in the table above the grid.
const (
	timelineFirstHour = 6
	timelineLastHour  = 22
)

func (m Model) handleTimelineKey(msg tea.KeyMsg) Model {
	day := m.tracker.CurrentDay()
	date, err := day.Date()
	if err != nil {
		return m
	}
	switch msg.String() {
	case "h", "left":
		m.tracker.SetDay(model.DayKeyOf(date.AddDate(0, 0, -1)))
		m.TodayCursor = 0
	case "l", "right":
		m.tracker.SetDay(model.DayKeyOf(date.AddDate(0, 0, 1)))
		m.TodayCursor = 0
	case "t":
		m.tracker.SetDay(model.DayKeyOf(m.now()))
		m.TodayCursor = 0
	case "j", "down", "k", "up":
		var cmd tea.Cmd
		m.timelineTable, cmd = m.timelineTable.Update(msg)
		_ = cmd
	}
	m.ensureTodayState()
	return m
}

func (m Model) renderTimelineView() string {
	day := m.tracker.CurrentDay()
	tasks := m.tracker.Tasks(day)

	blocks := scheduledBlocks(tasks)
	columns := layout.Assign(blocks)

	byID := make(map[string]layout.Block, len(blocks))
	names := make(map[string]string, len(tasks))
	for _, b := range blocks {
		byID[b.ID] = b
	}
	for _, task := range tasks {
		names[task.ID] = task.Name
	}

	now := m.now()
	today := model.DayKeyOf(now) == day

	slots := make([]views.TimelineSlotData, 0, timelineLastHour-timelineFirstHour)
	for hour := timelineFirstHour; hour < timelineLastHour; hour++ {
		cells := make([]string, layout.ColumnCount)
		for id, col := range columns {
			block := byID[id]
			if block.Start.Hour() <= hour && hour < endHour(block) {
				cells[col] = truncate(names[id], 16)
			}
		}
		slots = append(slots, views.TimelineSlotData{
			Label: fmt.Sprintf("%02d:00", hour),
			Cells: cells,
			Now:   today && now.Hour() == hour,
		})
	}

	return views.RenderTimelinePanel(views.TimelinePanelData{
		Date:      string(day),
		TableView: m.timelineTable.View(),
		Slots:     slots,
	})
}

func (m Model) timelineRows(tasks []model.Task) []table.Row {
	blocks := scheduledBlocks(tasks)
	columns := layout.Assign(blocks)
	rows := make([]table.Row, 0, len(blocks))
	for _, task := range tasks {
		col, ok := columns[task.ID]
		if !ok {
			continue
		}
		rows = append(rows, table.Row{
			task.ScheduledStart.Format("15:04"),
			task.ScheduledEnd.Format("15:04"),
			fmt.Sprintf("%d", col),
			truncate(task.Name, 30),
		})
	}
	return rows
}

func scheduledBlocks(tasks []model.Task) []layout.Block {
	blocks := make([]layout.Block, 0, len(tasks))
	for _, task := range tasks {
		if task.ScheduledStart == nil || task.ScheduledEnd == nil {
			continue
		}
		blocks = append(blocks, layout.Block{
			ID:    task.ID,
			Start: *task.ScheduledStart,
			End:   *task.ScheduledEnd,
		})
	}
	return blocks
}

func endHour(block layout.Block) int {
	h := block.End.Hour()
	if block.End.Minute() > 0 || block.End.Second() > 0 {
		h++
	}
	return h
}
