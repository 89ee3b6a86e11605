package views

import (
	"fmt"
	"strings"
)

type TodayTaskData struct {
	ID        string
	Name      string
	Total     string
	Running   bool
	Imported  bool
	Scheduled string
}

type TodayPanelData struct {
	Date         string
	QuickAddView string
	ListView     string
	Tasks        []TodayTaskData
	SelectedID   string
	CaptureMode  bool
}

type TimelineSlotData struct {
	Label string
	Cells []string
	Now   bool
}

type TimelinePanelData struct {
	Date      string
	TableView string
	Slots     []TimelineSlotData
}

type GoalSlotData struct {
	Slot int
	Text string
	Rate int
	Bar  string
}

type GoalsPanelData struct {
	Date         string
	Primary      []GoalSlotData
	Secondary    []GoalSlotData
	SelectedSlot int
}

type HelpPanelData struct {
	CurrentView string
	Bindings    []string
	HelpView    string
	GuideView   string
}

func RenderTodayPanel(data TodayPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("today: %s\n", data.Date))
	if data.CaptureMode {
		b.WriteString(data.QuickAddView + "\n")
	}
	b.WriteString("actions: [a]add [s]start [x]stop [d]delete [j/k]move\n")
	b.WriteString(data.ListView + "\n")
	if len(data.Tasks) == 0 {
		b.WriteString("(no tasks)")
		return strings.TrimSpace(b.String())
	}
	for _, task := range data.Tasks {
		cursor := " "
		if task.ID == data.SelectedID {
			cursor = ">"
		}
		marker := " "
		if task.Running {
			marker = "*"
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s", cursor, marker, task.Total, task.Name))
		if task.Scheduled != "" {
			b.WriteString(" @" + task.Scheduled)
		}
		if task.Imported {
			b.WriteString(" [cal]")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func RenderTimelinePanel(data TimelinePanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("timeline: %s\n", data.Date))
	b.WriteString("actions: [h/l]day [t]today\n")
	if data.TableView != "" {
		b.WriteString(data.TableView + "\n")
	}
	for _, slot := range data.Slots {
		marker := " "
		if slot.Now {
			marker = ">"
		}
		b.WriteString(fmt.Sprintf("%s%s |", marker, slot.Label))
		for _, cell := range slot.Cells {
			b.WriteString(fmt.Sprintf("%-16s|", cell))
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func RenderGoalsPanel(data GoalsPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("goals: %s\n", data.Date))
	b.WriteString("actions: [j/k]slot [+/-]rate [c]copy previous day\n")
	renderQuadrant(&b, "primary", data.Primary, data.SelectedSlot)
	renderQuadrant(&b, "secondary", data.Secondary, data.SelectedSlot)
	return strings.TrimSpace(b.String())
}

func renderQuadrant(b *strings.Builder, title string, slots []GoalSlotData, selected int) {
	b.WriteString(fmt.Sprintf("\n%s:\n", title))
	for _, slot := range slots {
		cursor := " "
		if slot.Slot == selected {
			cursor = ">"
		}
		text := slot.Text
		if strings.TrimSpace(text) == "" {
			text = "(empty)"
		}
		b.WriteString(fmt.Sprintf("%s %d. %s %3d%% %s\n", cursor, slot.Slot+1, slot.Bar, slot.Rate, text))
	}
}

func RenderHelpPanel(data HelpPanelData) string {
	var b strings.Builder
	b.WriteString("help:\n")
	b.WriteString(fmt.Sprintf("%s view:\n", strings.ToLower(data.CurrentView)))
	b.WriteString(strings.Join(data.Bindings, "\n"))
	if data.HelpView != "" {
		b.WriteString("\n" + data.HelpView)
	}
	if data.GuideView != "" {
		b.WriteString("\n" + data.GuideView)
	}
	return b.String()
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: /%s", input)
}
