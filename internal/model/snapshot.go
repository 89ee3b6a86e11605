package model

import "time"

// Snapshot is the full externally persisted projection for one user: the
// day-partitioned task index, per-day goals, the selected day, and the
// running-task marker. It is the sole unit exchanged with the durable
// store.
//
// LegacyTasks and LegacyDay carry the payload shape from before the index
// was day-partitioned; they are only read during inbound migration and are
// never written back.
type Snapshot struct {
	Days        map[DayKey][]Task `json:"days"`
	Goals       map[DayKey]Goals  `json:"goals"`
	CurrentDay  DayKey            `json:"currentDay"`
	ActiveTask  string            `json:"activeTask"`
	ActiveStart *time.Time        `json:"activeStart,omitempty"`

	LegacyTasks []Task `json:"tasks,omitempty"`
	LegacyDay   DayKey `json:"taskDate,omitempty"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Days != nil {
		out.Days = make(map[DayKey][]Task, len(s.Days))
		for k, v := range s.Days {
			out.Days[k] = CloneTasks(v)
		}
	}
	if s.Goals != nil {
		out.Goals = make(map[DayKey]Goals, len(s.Goals))
		for k, v := range s.Goals {
			out.Goals[k] = v
		}
	}
	if s.ActiveStart != nil {
		v := *s.ActiveStart
		out.ActiveStart = &v
	}
	out.LegacyTasks = CloneTasks(s.LegacyTasks)
	return out
}

// TaskIDs returns the sorted-insensitive id set of one day as a lookup map.
func TaskIDs(tasks []Task) map[string]struct{} {
	out := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		out[t.ID] = struct{}{}
	}
	return out
}

// SameIDSet reports whether two task lists contain exactly the same ids,
// ignoring order and every other field. This is the diff-gate primitive:
// equal id sets mean the local day is left untouched.
func SameIDSet(a, b []Task) bool {
	if len(a) != len(b) {
		return false
	}
	ids := TaskIDs(a)
	for _, t := range b {
		if _, ok := ids[t.ID]; !ok {
			return false
		}
	}
	return true
}
