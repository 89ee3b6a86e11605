// Package sync keeps the local task collection and the durable snapshot
// store converged without feedback loops: outbound writes are debounced
// and suppressed when structurally unchanged, inbound snapshots are merged
// through a per-day id-set diff gate.
package sync

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vikramsk/tickd/internal/model"
	"github.com/vikramsk/tickd/internal/storage"
	"github.com/vikramsk/tickd/internal/tracker"
)

// DefaultDebounce is the quiet period before a non-urgent change is
// written out. Each new change resets the timer.
const DefaultDebounce = 3 * time.Second

type Reconciler struct {
	mu sync.Mutex

	tracker  *tracker.Tracker
	store    storage.SnapshotStore
	userID   string
	debounce time.Duration

	timer          *time.Timer
	lastSig        string
	lastErr        error
	unsubscribe    func()
	applyingRemote bool
	closed         bool
}

type Option func(*Reconciler)

// WithDebounce overrides the outbound quiet period.
func WithDebounce(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.debounce = d
		}
	}
}

func New(tr *tracker.Tracker, store storage.SnapshotStore, userID string, opts ...Option) *Reconciler {
	r := &Reconciler{
		tracker:  tr,
		store:    store,
		userID:   userID,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}
	tr.SetOnChange(r.NoteChange)
	return r
}

// Subscribe attaches the inbound listener. The store echoes this client's
// own writes; the diff gate absorbs them.
func (r *Reconciler) Subscribe() error {
	unsub, err := r.store.Subscribe(r.userID, func(snap model.Snapshot) {
		r.ApplyRemote(&snap)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.unsubscribe = unsub
	r.mu.Unlock()
	return nil
}

// NoteChange is the tracker's mutation hook. Urgent changes (start, stop,
// delete, day clear) flush immediately so short sessions are never lost;
// everything else rearms the debounce timer.
func (r *Reconciler) NoteChange(urgent bool) {
	r.mu.Lock()
	if r.closed || r.applyingRemote {
		r.mu.Unlock()
		return
	}
	if urgent {
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		r.mu.Unlock()
		r.Flush()
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.Flush)
	r.mu.Unlock()
}

// Flush writes the current snapshot, unless its structural signature
// matches the last pushed one: derived recomputation that changed no task
// id set must not amplify into writes. A rejected write is recorded and
// implicitly retried by the next cycle with the latest snapshot.
func (r *Reconciler) Flush() {
	snap := r.tracker.Snapshot()
	sig := signature(snap)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if sig == r.lastSig {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	err := r.store.Put(context.Background(), r.userID, snap, true)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
	if err == nil {
		r.lastSig = sig
	}
}

// LastError reports the most recent outbound failure, nil after a
// successful write. Failures are never fatal; local state stays
// authoritative.
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// ApplyRemote merges one pushed snapshot. A nil snapshot (subscription
// error degraded to "nothing received") is a no-op.
func (r *Reconciler) ApplyRemote(snap *model.Snapshot) {
	if snap == nil {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	// Inbound application must not schedule echo writes of itself.
	r.applyingRemote = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.applyingRemote = false
		r.mu.Unlock()
	}()

	incoming := snap.Clone()
	migrateLegacy(&incoming)

	// Per-day diff gate: a day is replaced only when its id set differs
	// from the local one. Equal id sets keep the local objects even when
	// remote fields differ; a stale echo must not clobber in-flight edits.
	for day, remoteTasks := range incoming.Days {
		local := r.tracker.Tasks(day)
		if model.SameIDSet(local, remoteTasks) {
			continue
		}
		r.tracker.ReplaceDay(day, remoteTasks, false)
	}

	r.reconcileActive(incoming)

	// Goals merge is local-wins: remote values fill only day keys where
	// nothing has been entered locally. Lazily materialized empty defaults
	// do not count as local data.
	localGoalDays := make(map[model.DayKey]bool)
	for _, day := range r.tracker.GoalDays() {
		if !r.tracker.GoalsFor(day).Empty() {
			localGoalDays[day] = true
		}
	}
	for day, goals := range incoming.Goals {
		if localGoalDays[day] {
			continue
		}
		for slot := 0; slot < model.QuadrantSize; slot++ {
			_ = r.tracker.SetGoal(day, slot, goals.Primary[slot].Text, goals.Primary[slot].AchievementRate)
			_ = r.tracker.SetGoal(day, slot+model.QuadrantSize, goals.Secondary[slot].Text, goals.Secondary[slot].AchievementRate)
		}
	}
}

func (r *Reconciler) reconcileActive(incoming model.Snapshot) {
	if incoming.ActiveTask == "" || incoming.ActiveStart == nil {
		return
	}
	// A running session recorded under a different day than the current
	// one is stale; drop the marker instead of resurrecting it.
	if model.DayKeyOf(*incoming.ActiveStart) != r.tracker.CurrentDay() {
		r.tracker.ClearActive()
		return
	}
	r.tracker.SetActive(incoming.ActiveTask, *incoming.ActiveStart)
}

// Close flushes once more, cancels the debounce timer, and unsubscribes.
// Mandatory on logout/teardown so a stale user's data is never touched.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	r.Flush()

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// migrateLegacy folds the old single-day payload into the partitioned
// index, but only when its recorded day key is otherwise empty.
func migrateLegacy(snap *model.Snapshot) {
	if len(snap.LegacyTasks) == 0 || !snap.LegacyDay.IsValid() {
		return
	}
	if snap.Days == nil {
		snap.Days = make(map[model.DayKey][]model.Task)
	}
	if len(snap.Days[snap.LegacyDay]) > 0 {
		return
	}
	snap.Days[snap.LegacyDay] = snap.LegacyTasks
	snap.LegacyTasks = nil
	snap.LegacyDay = ""
}

// signature digests everything the snapshot carries except the derived
// TotalTime cache: that field is recomputed on every mutation and is the
// write-amplification source the suppression exists for. Two snapshots
// with the same signature would persist identically.
func signature(snap model.Snapshot) string {
	days := make([]model.DayKey, 0, len(snap.Days))
	for day := range snap.Days {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	var b strings.Builder
	b.WriteString(string(snap.CurrentDay))
	b.WriteByte('|')
	b.WriteString(snap.ActiveTask)
	if snap.ActiveStart != nil {
		b.WriteByte('@')
		b.WriteString(snap.ActiveStart.Format(time.RFC3339Nano))
	}
	for _, day := range days {
		tasks := snap.Days[day]
		lines := make([]string, 0, len(tasks))
		for _, task := range tasks {
			lines = append(lines, taskLine(task))
		}
		sort.Strings(lines)
		b.WriteByte('\n')
		b.WriteString(string(day))
		b.WriteByte(':')
		b.WriteString(strings.Join(lines, ";"))
	}

	goalDays := make([]model.DayKey, 0, len(snap.Goals))
	for day := range snap.Goals {
		goalDays = append(goalDays, day)
	}
	sort.Slice(goalDays, func(i, j int) bool { return goalDays[i] < goalDays[j] })
	for _, day := range goalDays {
		goals := snap.Goals[day]
		b.WriteByte('\n')
		b.WriteString("goals ")
		b.WriteString(string(day))
		for slot := 0; slot < model.QuadrantSize; slot++ {
			writeGoal(&b, goals.Primary[slot])
			writeGoal(&b, goals.Secondary[slot])
		}
	}
	return b.String()
}

func taskLine(task model.Task) string {
	var b strings.Builder
	b.WriteString(task.ID)
	b.WriteByte(',')
	b.WriteString(task.Name)
	b.WriteByte(',')
	b.WriteString(task.Color)
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(task.Order))
	if task.EstimatedTime != nil {
		b.WriteByte(',')
		b.WriteString(task.EstimatedTime.String())
	}
	writeInstant(&b, task.ScheduledStart)
	writeInstant(&b, task.ScheduledEnd)
	for _, s := range task.Sessions {
		b.WriteByte(',')
		b.WriteString(s.Start.Format(time.RFC3339Nano))
		writeInstant(&b, s.End)
	}
	return b.String()
}

func writeInstant(b *strings.Builder, t *time.Time) {
	if t == nil {
		return
	}
	b.WriteByte(',')
	b.WriteString(t.Format(time.RFC3339Nano))
}

func writeGoal(b *strings.Builder, g model.Goal) {
	b.WriteByte('|')
	b.WriteString(g.ID)
	b.WriteByte('=')
	b.WriteString(g.Text)
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(g.AchievementRate))
}
