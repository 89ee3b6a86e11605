// Package calendar imports external calendar events as scheduled tasks and
// merges re-imports without destroying recorded history.
package calendar

import (
	"strings"
	"time"

	"github.com/vikramsk/tickd/internal/model"
)

// Event is the validated shape of one external calendar entry. All-day
// events carry only the flag; timed events carry explicit instants.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// All-day events are displayed as a fixed working-hours window.
const (
	allDayStartHour = 9
	allDayEndHour   = 17
)

// palette cycles by event position so imported tasks get stable, readable
// colors without any per-event configuration.
var palette = []string{
	"#7986cb", "#33b679", "#8e24aa", "#e67c73", "#f6bf26",
	"#f4511e", "#039be5", "#616161", "#3f51b5", "#0b8043",
}

// Merge folds one day's events into its existing task list. Existing
// calendar-origin tasks matching an event are updated in place: name and
// scheduling fields converge to the event, sessions and recorded time
// carry over unchanged. Events without a match append after the current
// maximum order. Manual tasks pass through untouched. Running Merge twice
// with the same events changes nothing the second time.
func Merge(existing []model.Task, events []Event, day time.Time) []model.Task {
	candidates := make([]model.Task, 0, len(events))
	for i, ev := range events {
		task, ok := candidate(ev, day, i)
		if !ok {
			continue
		}
		candidates = append(candidates, task)
	}

	out := make([]model.Task, 0, len(existing)+len(candidates))
	matched := make(map[string]bool, len(candidates))
	maxOrder := -1
	for _, task := range existing {
		if task.Order > maxOrder {
			maxOrder = task.Order
		}
		if !task.FromCalendar() {
			out = append(out, task.Clone())
			continue
		}
		updated := task.Clone()
		for _, cand := range candidates {
			if cand.ID != task.ID {
				continue
			}
			matched[cand.ID] = true
			updated.Name = cand.Name
			updated.Color = cand.Color
			updated.EstimatedTime = cand.EstimatedTime
			updated.ScheduledStart = cand.ScheduledStart
			updated.ScheduledEnd = cand.ScheduledEnd
			break
		}
		out = append(out, updated)
	}

	for _, cand := range candidates {
		if matched[cand.ID] {
			continue
		}
		maxOrder++
		cand.Order = maxOrder
		out = append(out, cand)
	}
	return out
}

// candidate maps one event to a task record. Malformed events fail closed:
// they are skipped rather than imported with undefined fields.
func candidate(ev Event, day time.Time, position int) (model.Task, bool) {
	if strings.TrimSpace(ev.ID) == "" {
		return model.Task{}, false
	}
	start, end := ev.Start, ev.End
	if ev.AllDay {
		midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		start = midnight.Add(allDayStartHour * time.Hour)
		end = midnight.Add(allDayEndHour * time.Hour)
	}
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return model.Task{}, false
	}

	name := strings.TrimSpace(ev.Summary)
	if name == "" {
		name = "(untitled event)"
	}
	estimate := end.Sub(start)
	return model.Task{
		ID:             model.CalendarTaskPrefix + ev.ID,
		Name:           name,
		Color:          palette[position%len(palette)],
		Sessions:       []model.Session{},
		EstimatedTime:  &estimate,
		ScheduledStart: &start,
		ScheduledEnd:   &end,
	}, true
}
