package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/vikramsk/tickd/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

const paletteGuide = `## Command palette

- ` + "`/add <name>`" + ` create a task on the current day
- ` + "`/start <task>`" + ` start tracking (stops the running task first)
- ` + "`/stop`" + ` stop the running task
- ` + "`/import`" + ` merge today's calendar events
- ` + "`/goal <1-6> <text>`" + ` set a goal slot
- ` + "`/clear`" + ` remove every task on the current day
- ` + "`/day <date|today>`" + ` switch the visible day
`

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	return m.renderHelpView()
}

func (m Model) renderHelpView() string {
	bindings := m.helpBindings()
	var plain []string
	for _, kb := range m.viewBindings() {
		plain = append(plain, fmt.Sprintf("- %s: %s", kb.Key, kb.Action))
	}
	guide := m.guideViewport
	guide.SetContent(views.RenderMarkdown(paletteGuide))
	return views.RenderHelpPanel(views.HelpPanelData{
		CurrentView: string(m.CurrentView),
		Bindings:    plain,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]key.Binding{bindings},
		}),
		GuideView: guide.View(),
	})
}

func (m Model) globalBindings() []KeyBinding {
	return []KeyBinding{
		{Key: m.Keys.Today, Action: "switch to Today"},
		{Key: m.Keys.Timeline, Action: "switch to Timeline"},
		{Key: m.Keys.Goals, Action: "switch to Goals"},
		{Key: "i", Action: "import calendar events"},
		{Key: "/", Action: "open command palette"},
		{Key: m.Keys.Help, Action: "toggle help panel"},
		{Key: m.Keys.Quit, Action: "quit app"},
	}
}

func (m Model) viewBindings() []KeyBinding {
	switch m.CurrentView {
	case ViewToday:
		return []KeyBinding{
			{Key: "j/k", Action: "move selection"},
			{Key: "a", Action: "quick add task"},
			{Key: "s", Action: "start tracking selected"},
			{Key: "x", Action: "stop running task"},
			{Key: "d", Action: "delete selected task"},
		}
	case ViewTimeline:
		return []KeyBinding{
			{Key: "h/l", Action: "previous/next day"},
			{Key: "t", Action: "jump to today"},
			{Key: "j/k", Action: "move table cursor"},
		}
	case ViewGoals:
		return []KeyBinding{
			{Key: "j/k", Action: "move slot cursor"},
			{Key: "+/-", Action: "adjust achievement rate"},
			{Key: "c", Action: "copy goals from previous day"},
		}
	default:
		return []KeyBinding{{Key: "-", Action: "no contextual bindings"}}
	}
}

func (m Model) helpBindings() []key.Binding {
	out := make([]key.Binding, 0, len(m.globalBindings())+len(m.viewBindings()))
	for _, kb := range m.globalBindings() {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	for _, kb := range m.viewBindings() {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
