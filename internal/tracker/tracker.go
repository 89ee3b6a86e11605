// Package tracker owns the per-day task collection and the start/stop
// session state machine. At most one task is running at any time.
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vikramsk/tickd/internal/model"
)

var (
	ErrTaskNotFound        = errors.New("tracker: task not found")
	ErrSessionNotFound     = errors.New("tracker: session not found")
	ErrSessionRunning      = errors.New("tracker: cannot edit a running session")
	ErrInvalidSessionRange = errors.New("tracker: session start must be before end")
	ErrEmptyName           = errors.New("tracker: task name is required")
)

// MaxSessionDuration caps a single running session. The guard tick
// force-stops anything older so a crashed or idle client cannot leave a
// session open indefinitely.
const MaxSessionDuration = 9*time.Hour + 59*time.Minute + 59*time.Second

// ChangeFunc is invoked after every committed mutation. urgent marks
// changes that must be persisted immediately instead of debounced
// (start, stop, delete, day clear).
type ChangeFunc func(urgent bool)

type Tracker struct {
	mu sync.Mutex

	days       map[model.DayKey][]model.Task
	goals      map[model.DayKey]model.Goals
	currentDay model.DayKey

	activeID    string
	activeStart time.Time

	maxSession time.Duration
	now        func() time.Time
	onChange   ChangeFunc
}

type Option func(*Tracker)

// WithClock injects the time source, so the state machine is testable
// without wall-clock delays.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMaxSession overrides the auto-stop cap.
func WithMaxSession(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.maxSession = d
		}
	}
}

func New(opts ...Option) *Tracker {
	t := &Tracker{
		days:       make(map[model.DayKey][]model.Task),
		goals:      make(map[model.DayKey]model.Goals),
		maxSession: MaxSessionDuration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.currentDay = model.DayKeyOf(t.now())
	return t
}

// SetOnChange registers the mutation hook. The sync reconciler subscribes
// here; nil disables notifications.
func (t *Tracker) SetOnChange(fn ChangeFunc) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// pending records whether a mutation should be announced once the lock is
// released. The callback is free to call back into the tracker.
type pending struct {
	fire   bool
	urgent bool
}

func (t *Tracker) emit(p *pending) {
	if !p.fire {
		return
	}
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(p.urgent)
	}
}

// CurrentDay returns the selected day key.
func (t *Tracker) CurrentDay() model.DayKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentDay
}

// SetDay switches the selected day.
func (t *Tracker) SetDay(day model.DayKey) {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()
	if day == t.currentDay {
		return
	}
	t.currentDay = day
	change = pending{fire: true, urgent: false}
}

// Tasks returns a deep copy of one day's task list.
func (t *Tracker) Tasks(day model.DayKey) []model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.CloneTasks(t.days[day])
}

// Active returns the running task id and its session start instant.
func (t *Tracker) Active() (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeID, t.activeStart
}

// AddTask appends a manual task to the given day.
func (t *Tracker) AddTask(day model.DayKey, name string) (model.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Task{}, ErrEmptyName
	}
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	task := model.Task{
		ID:       model.NewTaskID(),
		Name:     name,
		Color:    defaultPalette[len(t.days[day])%len(defaultPalette)],
		Order:    nextOrder(t.days[day]),
		Sessions: []model.Session{},
	}
	t.days[day] = append(t.days[day], task)
	change = pending{fire: true, urgent: false}
	return task.Clone(), nil
}

// RenameTask changes a task's display name.
func (t *Tracker) RenameTask(day model.DayKey, taskID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOf(t.days[day], taskID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	t.days[day][idx].Name = name
	change = pending{fire: true, urgent: false}
	return nil
}

// DeleteTask removes a task. Deleting the running task clears the active
// marker; the write is immediate so a deleted short session is not lost.
func (t *Tracker) DeleteTask(day model.DayKey, taskID string) error {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOf(t.days[day], taskID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	t.days[day] = append(t.days[day][:idx], t.days[day][idx+1:]...)
	if t.activeID == taskID {
		t.activeID = ""
		t.activeStart = time.Time{}
	}
	change = pending{fire: true, urgent: true}
	return nil
}

// ClearDay removes every task of the given day.
func (t *Tracker) ClearDay(day model.DayKey) {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, task := range t.days[day] {
		if task.ID == t.activeID {
			t.activeID = ""
			t.activeStart = time.Time{}
		}
	}
	delete(t.days, day)
	change = pending{fire: true, urgent: true}
}

// Start switches tracking to taskID: the previously running task's open
// session is closed and the new one opened in a single atomic update, so
// there is no observable instant with zero or two running tasks.
// Starting the already-active task is a no-op.
func (t *Tracker) Start(day model.DayKey, taskID string) error {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOf(t.days[day], taskID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if t.activeID == taskID {
		return nil
	}
	now := t.now()

	if t.activeID != "" {
		t.closeOpenSessionsLocked(t.activeID, now)
	}
	// A stray open session on the target that does not match the active
	// marker is closed before a fresh one opens.
	t.closeTaskSessionsLocked(day, idx, now)

	t.days[day][idx].Sessions = append(t.days[day][idx].Sessions, model.Session{Start: now})
	t.activeID = taskID
	t.activeStart = now
	change = pending{fire: true, urgent: true}
	return nil
}

// Stop closes all open sessions owned by taskID and clears the active
// marker.
func (t *Tracker) Stop(day model.DayKey, taskID string) error {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOf(t.days[day], taskID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	now := t.now()
	t.closeTaskSessionsLocked(day, idx, now)
	if t.activeID == taskID {
		t.activeID = ""
		t.activeStart = time.Time{}
	}
	change = pending{fire: true, urgent: true}
	return nil
}

// CheckAutoStop is evaluated on each guard tick. When the running session
// has exceeded the cap it is force-stopped; the return value tells the
// caller to persist immediately, bypassing the debounce.
func (t *Tracker) CheckAutoStop() bool {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeID == "" {
		return false
	}
	now := t.now()
	if now.Sub(t.activeStart) < t.maxSession {
		return false
	}
	t.closeOpenSessionsLocked(t.activeID, now)
	t.activeID = ""
	t.activeStart = time.Time{}
	change = pending{fire: true, urgent: true}
	return true
}

// EditSession rewrites a closed session's boundaries. Open sessions are
// rejected, as is any edit producing start >= end.
func (t *Tracker) EditSession(day model.DayKey, taskID string, session int, start, end time.Time) error {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOf(t.days[day], taskID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	task := &t.days[day][idx]
	if session < 0 || session >= len(task.Sessions) {
		return fmt.Errorf("%w: index %d", ErrSessionNotFound, session)
	}
	if task.Sessions[session].Open() {
		return ErrSessionRunning
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start=%s end=%s", ErrInvalidSessionRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	task.Sessions[session] = model.Session{Start: start, End: &end}
	task.TotalTime = task.RecordedTime(t.now())
	change = pending{fire: true, urgent: false}
	return nil
}

// DeleteSession removes a closed session.
func (t *Tracker) DeleteSession(day model.DayKey, taskID string, session int) error {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOf(t.days[day], taskID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	task := &t.days[day][idx]
	if session < 0 || session >= len(task.Sessions) {
		return fmt.Errorf("%w: index %d", ErrSessionNotFound, session)
	}
	if task.Sessions[session].Open() {
		return ErrSessionRunning
	}
	task.Sessions = append(task.Sessions[:session], task.Sessions[session+1:]...)
	task.TotalTime = task.RecordedTime(t.now())
	change = pending{fire: true, urgent: false}
	return nil
}

// GoalsFor lazily materializes the default quadrants on first read of an
// unseen day key.
func (t *Tracker) GoalsFor(day model.DayKey) model.Goals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goalsForLocked(day)
}

func (t *Tracker) goalsForLocked(day model.DayKey) model.Goals {
	if g, ok := t.goals[day]; ok {
		return g
	}
	g := model.DefaultGoals()
	t.goals[day] = g
	return g
}

// SetGoal updates one goal slot. Slots 0-2 address the primary quadrant,
// 3-5 the secondary one.
func (t *Tracker) SetGoal(day model.DayKey, slot int, text string, rate int) error {
	if slot < 0 || slot >= 2*model.QuadrantSize {
		return fmt.Errorf("tracker: goal slot out of range: %d", slot)
	}
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.goalsForLocked(day)
	if slot < model.QuadrantSize {
		g.Primary[slot].Text = text
		g.Primary[slot].AchievementRate = model.ClampRate(rate)
	} else {
		g.Secondary[slot-model.QuadrantSize].Text = text
		g.Secondary[slot-model.QuadrantSize].AchievementRate = model.ClampRate(rate)
	}
	t.goals[day] = g
	change = pending{fire: true, urgent: false}
	return nil
}

// CopyGoals copies one day's goals to another day.
func (t *Tracker) CopyGoals(from, to model.DayKey) {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.goals[to] = t.goalsForLocked(from)
	change = pending{fire: true, urgent: false}
}

// ReplaceDay swaps in a new task list for one day. Used by the calendar
// merge and by the sync reconciler for days whose remote id set changed.
func (t *Tracker) ReplaceDay(day model.DayKey, tasks []model.Task, urgent bool) {
	var change pending
	defer t.emit(&change)
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(tasks) == 0 {
		delete(t.days, day)
	} else {
		t.days[day] = model.CloneTasks(tasks)
	}
	if t.activeID != "" && !t.hasOpenSessionLocked(t.activeID) {
		t.activeID = ""
		t.activeStart = time.Time{}
	}
	change = pending{fire: true, urgent: urgent}
}

// Snapshot builds a deep-copied projection of the whole collection.
func (t *Tracker) Snapshot() model.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := model.Snapshot{
		Days:       make(map[model.DayKey][]model.Task, len(t.days)),
		Goals:      make(map[model.DayKey]model.Goals, len(t.goals)),
		CurrentDay: t.currentDay,
		ActiveTask: t.activeID,
	}
	for k, v := range t.days {
		snap.Days[k] = model.CloneTasks(v)
	}
	for k, v := range t.goals {
		snap.Goals[k] = v
	}
	if t.activeID != "" {
		start := t.activeStart
		snap.ActiveStart = &start
	}
	return snap
}

// Restore loads a snapshot wholesale, replacing local state. Used once at
// startup with the store's current value.
func (t *Tracker) Restore(snap model.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.days = make(map[model.DayKey][]model.Task, len(snap.Days))
	for k, v := range snap.Days {
		t.days[k] = model.CloneTasks(v)
	}
	t.goals = make(map[model.DayKey]model.Goals, len(snap.Goals))
	for k, v := range snap.Goals {
		t.goals[k] = v
	}
	if snap.CurrentDay.IsValid() {
		t.currentDay = snap.CurrentDay
	}
	t.activeID = ""
	t.activeStart = time.Time{}
	if snap.ActiveTask != "" && snap.ActiveStart != nil && t.hasOpenSessionLocked(snap.ActiveTask) {
		t.activeID = snap.ActiveTask
		t.activeStart = *snap.ActiveStart
	}
}

// SetActive restores the running marker, but only when the task still has
// an open session. Returns whether the marker is set afterwards.
func (t *Tracker) SetActive(taskID string, start time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if taskID == "" || !t.hasOpenSessionLocked(taskID) {
		t.activeID = ""
		t.activeStart = time.Time{}
		return false
	}
	t.activeID = taskID
	t.activeStart = start
	return true
}

// ClearActive drops the running marker without touching sessions.
func (t *Tracker) ClearActive() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeID = ""
	t.activeStart = time.Time{}
}

// HasDay reports whether the day key holds any tasks.
func (t *Tracker) HasDay(day model.DayKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.days[day]) > 0
}

// Days returns the day keys that currently hold tasks, sorted.
func (t *Tracker) Days() []model.DayKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.DayKey, 0, len(t.days))
	for k := range t.days {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GoalDays returns the day keys that hold goals, sorted.
func (t *Tracker) GoalDays() []model.DayKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.DayKey, 0, len(t.goals))
	for k := range t.goals {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *Tracker) closeOpenSessionsLocked(taskID string, now time.Time) {
	for day := range t.days {
		if idx := indexOf(t.days[day], taskID); idx >= 0 {
			t.closeTaskSessionsLocked(day, idx, now)
		}
	}
}

func (t *Tracker) closeTaskSessionsLocked(day model.DayKey, idx int, now time.Time) {
	task := &t.days[day][idx]
	closed := false
	for i := range task.Sessions {
		if task.Sessions[i].Open() {
			end := now
			if !task.Sessions[i].Start.Before(end) {
				// Never record a reversed interval; drop the degenerate
				// zero-length session instead.
				task.Sessions = append(task.Sessions[:i], task.Sessions[i+1:]...)
				closed = true
				break
			}
			task.Sessions[i].End = &end
			closed = true
		}
	}
	if closed {
		task.TotalTime = task.RecordedTime(now)
	}
}

func (t *Tracker) hasOpenSessionLocked(taskID string) bool {
	for _, tasks := range t.days {
		if idx := indexOf(tasks, taskID); idx >= 0 {
			return tasks[idx].OpenSession() >= 0
		}
	}
	return false
}

func indexOf(tasks []model.Task, id string) int {
	for i, task := range tasks {
		if task.ID == id {
			return i
		}
	}
	return -1
}

func nextOrder(tasks []model.Task) int {
	max := -1
	for _, task := range tasks {
		if task.Order > max {
			max = task.Order
		}
	}
	return max + 1
}

var defaultPalette = []string{
	"#4285f4", "#ea4335", "#fbbc04", "#34a853", "#ff6d01", "#46bdc6",
}
