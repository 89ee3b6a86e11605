package calendar

import (
	"reflect"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/vikramsk/tickd/internal/model"
)

var testDay = time.Date(2026, 2, 9, 0, 0, 0, 0, time.Local)

func timedEvent(id string, startHour, endHour int) Event {
	return Event{
		ID:      id,
		Summary: "event " + id,
		Start:   testDay.Add(time.Duration(startHour) * time.Hour),
		End:     testDay.Add(time.Duration(endHour) * time.Hour),
	}
}

func TestMergeImportIntoEmptyDay(t *testing.T) {
	got := Merge(nil, []Event{timedEvent("e1", 9, 10)}, testDay)
	if len(got) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got))
	}
	task := got[0]
	if task.ID != "calendar-e1" {
		t.Fatalf("unexpected id: %q", task.ID)
	}
	if task.EstimatedTime == nil || *task.EstimatedTime != time.Hour {
		t.Fatalf("expected 1h estimate, got %v", task.EstimatedTime)
	}
	if len(task.Sessions) != 0 {
		t.Fatalf("imported task must start with no sessions")
	}
	if task.ScheduledStart == nil || !task.ScheduledStart.Equal(testDay.Add(9*time.Hour)) {
		t.Fatalf("unexpected scheduled start: %v", task.ScheduledStart)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	events := []Event{timedEvent("e1", 9, 10), timedEvent("e2", 13, 15)}

	once := Merge(nil, events, testDay)
	// Record some history between imports.
	end := testDay.Add(10 * time.Hour)
	once[0].Sessions = []model.Session{{Start: testDay.Add(9 * time.Hour), End: &end}}
	once[0].TotalTime = time.Hour

	twice := Merge(once, events, testDay)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("re-import changed the day:\nfirst:  %#v\nsecond: %#v", once, twice)
	}
}

func TestMergeUpdatesSchedulingFieldsOnly(t *testing.T) {
	existing := Merge(nil, []Event{timedEvent("e1", 9, 10)}, testDay)
	end := testDay.Add(10 * time.Hour)
	existing[0].Sessions = []model.Session{{Start: testDay.Add(9 * time.Hour), End: &end}}
	existing[0].TotalTime = time.Hour

	moved := Event{
		ID:      "e1",
		Summary: "event e1 (moved)",
		Start:   testDay.Add(14 * time.Hour),
		End:     testDay.Add(16 * time.Hour),
	}
	got := Merge(existing, []Event{moved}, testDay)
	if len(got) != 1 {
		t.Fatalf("expected no duplicate, got %d tasks", len(got))
	}
	task := got[0]
	if task.Name != "event e1 (moved)" {
		t.Fatalf("expected name to follow the event, got %q", task.Name)
	}
	if *task.EstimatedTime != 2*time.Hour || !task.ScheduledStart.Equal(moved.Start) {
		t.Fatalf("scheduling fields did not converge: %+v", task)
	}
	if len(task.Sessions) != 1 || task.TotalTime != time.Hour {
		t.Fatalf("recorded history was not carried over: %+v", task)
	}
}

func TestMergePreservesManualTasksAndOrder(t *testing.T) {
	manual := []model.Task{
		{ID: "task-1", Name: "manual a", Order: 0},
		{ID: "task-2", Name: "manual b", Order: 1},
	}
	got := Merge(manual, []Event{timedEvent("e1", 9, 10)}, testDay)
	if len(got) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got))
	}
	if got[0].ID != "task-1" || got[1].ID != "task-2" {
		t.Fatalf("manual order disturbed: %v, %v", got[0].ID, got[1].ID)
	}
	if got[2].Order != 2 {
		t.Fatalf("expected appended task order 2, got %d", got[2].Order)
	}
}

func TestMergeAllDayEventWindow(t *testing.T) {
	got := Merge(nil, []Event{{ID: "e1", Summary: "offsite", AllDay: true}}, testDay)
	if len(got) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got))
	}
	task := got[0]
	if !task.ScheduledStart.Equal(testDay.Add(9*time.Hour)) || !task.ScheduledEnd.Equal(testDay.Add(17*time.Hour)) {
		t.Fatalf("unexpected all-day window: %v - %v", task.ScheduledStart, task.ScheduledEnd)
	}
	if *task.EstimatedTime != 8*time.Hour {
		t.Fatalf("expected 8h estimate, got %s", *task.EstimatedTime)
	}
}

func TestMergeSkipsMalformedEvents(t *testing.T) {
	events := []Event{
		{ID: "", Summary: "missing id", Start: testDay, End: testDay.Add(time.Hour)},
		{ID: "rev", Summary: "reversed", Start: testDay.Add(2 * time.Hour), End: testDay.Add(time.Hour)},
		{ID: "zero", Summary: "no times"},
		timedEvent("ok", 9, 10),
	}
	got := Merge(nil, events, testDay)
	if len(got) != 1 || got[0].ID != "calendar-ok" {
		t.Fatalf("expected only the well-formed event, got %#v", got)
	}
}

func TestMergeColorsCycleByPosition(t *testing.T) {
	events := make([]Event, len(palette)+1)
	for i := range events {
		events[i] = timedEvent(string(rune('a'+i)), 9, 10)
	}
	got := Merge(nil, events, testDay)
	if got[0].Color != got[len(palette)].Color {
		t.Fatalf("expected palette to wrap around")
	}
	if got[0].Color == got[1].Color {
		t.Fatalf("expected neighboring events to differ in color")
	}
}

func TestMapItemShapes(t *testing.T) {
	timed := &calendar.Event{
		Id:      "e1",
		Summary: "standup",
		Start:   &calendar.EventDateTime{DateTime: "2026-02-09T09:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2026-02-09T09:30:00Z"},
	}
	ev, ok := mapItem(timed)
	if !ok || ev.AllDay || ev.End.Sub(ev.Start) != 30*time.Minute {
		t.Fatalf("unexpected timed mapping: %+v ok=%v", ev, ok)
	}

	allDay := &calendar.Event{
		Id:    "e2",
		Start: &calendar.EventDateTime{Date: "2026-02-09"},
		End:   &calendar.EventDateTime{Date: "2026-02-10"},
	}
	ev, ok = mapItem(allDay)
	if !ok || !ev.AllDay {
		t.Fatalf("expected all-day mapping, got %+v ok=%v", ev, ok)
	}

	bad := &calendar.Event{
		Id:    "e3",
		Start: &calendar.EventDateTime{DateTime: "not-a-time"},
		End:   &calendar.EventDateTime{DateTime: "2026-02-09T10:00:00Z"},
	}
	if _, ok := mapItem(bad); ok {
		t.Fatalf("expected malformed item rejected")
	}
	if _, ok := mapItem(&calendar.Event{Id: "e4"}); ok {
		t.Fatalf("expected item without times rejected")
	}
}
