package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOpenSessionOrder   = errors.New("model: open session must be last")
	ErrSessionOutOfOrder  = errors.New("model: session start must be before end")
	ErrMultipleOpen       = errors.New("model: task has more than one open session")
	ErrMissingSessionTime = errors.New("model: session start is required")
)

// CalendarTaskPrefix marks tasks created by calendar import. The suffix is
// the external event id, so re-imports find their task again.
const CalendarTaskPrefix = "calendar-"

// DayKey partitions tasks and goals by host-local calendar date.
type DayKey string

const dayKeyLayout = "2006-01-02"

func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.Local().Format(dayKeyLayout))
}

func (k DayKey) IsValid() bool {
	_, err := time.ParseInLocation(dayKeyLayout, string(k), time.Local)
	return err == nil
}

// Date returns the midnight instant of the day key in the host location.
func (k DayKey) Date() (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, string(k), time.Local)
}

// Session is one contiguous interval of active tracking. A nil End means
// the session is still running.
type Session struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

func (s Session) Open() bool {
	return s.End == nil
}

func (s Session) Duration(now time.Time) time.Duration {
	if s.End != nil {
		return s.End.Sub(s.Start)
	}
	return now.Sub(s.Start)
}

func (s Session) Validate() error {
	if s.Start.IsZero() {
		return ErrMissingSessionTime
	}
	if s.End != nil && !s.Start.Before(*s.End) {
		return fmt.Errorf("%w: start=%s end=%s", ErrSessionOutOfOrder, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	return nil
}

type Task struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Color          string         `json:"color"`
	Order          int            `json:"order"`
	TotalTime      time.Duration  `json:"totalTime"`
	Sessions       []Session      `json:"sessions"`
	EstimatedTime  *time.Duration `json:"estimatedTime,omitempty"`
	ScheduledStart *time.Time     `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time     `json:"scheduledEnd,omitempty"`
}

// NewTaskID generates an id for a manually created task. Imported tasks use
// CalendarTaskPrefix plus the external event id instead.
func NewTaskID() string {
	return "task-" + uuid.NewString()
}

func (t Task) FromCalendar() bool {
	return strings.HasPrefix(t.ID, CalendarTaskPrefix)
}

// OpenSession returns the index of the task's open session, or -1.
func (t Task) OpenSession() int {
	for i, s := range t.Sessions {
		if s.Open() {
			return i
		}
	}
	return -1
}

// RecordedTime sums all closed sessions, plus the open one up to now.
func (t Task) RecordedTime(now time.Time) time.Duration {
	var total time.Duration
	for _, s := range t.Sessions {
		total += s.Duration(now)
	}
	return total
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("model: task name is required")
	}
	open := 0
	for i, s := range t.Sessions {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.Open() {
			open++
			if i != len(t.Sessions)-1 {
				return ErrOpenSessionOrder
			}
		}
	}
	if open > 1 {
		return ErrMultipleOpen
	}
	return nil
}

// Clone deep-copies the task so snapshots never alias live session slices.
func (t Task) Clone() Task {
	out := t
	if t.Sessions != nil {
		out.Sessions = make([]Session, len(t.Sessions))
		for i, s := range t.Sessions {
			out.Sessions[i] = s
			if s.End != nil {
				end := *s.End
				out.Sessions[i].End = &end
			}
		}
	}
	if t.EstimatedTime != nil {
		est := *t.EstimatedTime
		out.EstimatedTime = &est
	}
	if t.ScheduledStart != nil {
		v := *t.ScheduledStart
		out.ScheduledStart = &v
	}
	if t.ScheduledEnd != nil {
		v := *t.ScheduledEnd
		out.ScheduledEnd = &v
	}
	return out
}

// CloneTasks deep-copies a day's task list.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
