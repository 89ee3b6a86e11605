package sync

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/vikramsk/tickd/internal/model"
	"github.com/vikramsk/tickd/internal/tracker"
)

// fakeStore records puts and lets tests inject failures and pushes.
type fakeStore struct {
	mu       sync.Mutex
	puts     []model.Snapshot
	failNext error
	onChange func(model.Snapshot)
}

func (f *fakeStore) Get(ctx context.Context, userID string) (model.Snapshot, error) {
	return model.Snapshot{}, nil
}

func (f *fakeStore) Put(ctx context.Context, userID string, snap model.Snapshot, merge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.puts = append(f.puts, snap)
	return nil
}

func (f *fakeStore) Subscribe(userID string, fn func(model.Snapshot)) (func(), error) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.onChange = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeStore) lastPut() model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[len(f.puts)-1]
}

func newTestReconciler(t *testing.T) (*tracker.Tracker, *fakeStore, *Reconciler) {
	t.Helper()
	clock := time.Date(2026, 2, 9, 9, 0, 0, 0, time.Local)
	tr := tracker.New(tracker.WithClock(func() time.Time { return clock }))
	store := &fakeStore{}
	rec := New(tr, store, "u1", WithDebounce(25*time.Millisecond))
	t.Cleanup(rec.Close)
	return tr, store, rec
}

func TestUrgentChangeWritesImmediately(t *testing.T) {
	tr, store, _ := newTestReconciler(t)
	day := tr.CurrentDay()

	task, err := tr.AddTask(day, "quick one")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tr.Start(day, task.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if store.putCount() == 0 {
		t.Fatal("expected an immediate write after start")
	}
	if got := store.lastPut(); got.ActiveTask != task.ID {
		t.Fatalf("unexpected snapshot written: %+v", got)
	}
}

func TestNonUrgentChangeIsDebounced(t *testing.T) {
	tr, store, _ := newTestReconciler(t)
	day := tr.CurrentDay()

	if _, err := tr.AddTask(day, "debounced"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if store.putCount() != 0 {
		t.Fatal("write fired before the quiet period")
	}
	time.Sleep(60 * time.Millisecond)
	if store.putCount() != 1 {
		t.Fatalf("expected one debounced write, got %d", store.putCount())
	}
}

func TestDebounceResetsOnNewChanges(t *testing.T) {
	tr, store, _ := newTestReconciler(t)
	day := tr.CurrentDay()

	for i := 0; i < 3; i++ {
		if _, err := tr.AddTask(day, "burst"); err != nil {
			t.Fatalf("add: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	if store.putCount() != 1 {
		t.Fatalf("expected a single coalesced write, got %d", store.putCount())
	}
}

func TestFlushSuppressedWhenNothingChanged(t *testing.T) {
	tr, store, rec := newTestReconciler(t)
	day := tr.CurrentDay()

	if _, err := tr.AddTask(day, "stable"); err != nil {
		t.Fatalf("add: %v", err)
	}
	rec.Flush()
	rec.Flush()
	rec.Flush()
	if store.putCount() != 1 {
		t.Fatalf("expected suppression of unchanged snapshots, got %d writes", store.putCount())
	}
}

func TestRejectedWriteIsRetriedNextCycle(t *testing.T) {
	tr, store, rec := newTestReconciler(t)
	day := tr.CurrentDay()

	store.failNext = errors.New("backend unavailable")
	if _, err := tr.AddTask(day, "unlucky"); err != nil {
		t.Fatalf("add: %v", err)
	}
	rec.Flush()
	if rec.LastError() == nil {
		t.Fatal("expected the failure to be recorded")
	}
	if store.putCount() != 0 {
		t.Fatal("write should have been rejected")
	}

	rec.Flush()
	if rec.LastError() != nil {
		t.Fatalf("expected retry to clear the error, got %v", rec.LastError())
	}
	if store.putCount() != 1 {
		t.Fatalf("expected the retry to write, got %d", store.putCount())
	}
}

func TestDiffGateKeepsLocalDayOnEqualIDSet(t *testing.T) {
	tr, store, rec := newTestReconciler(t)
	day := tr.CurrentDay()

	a, _ := tr.AddTask(day, "task a")
	b, _ := tr.AddTask(day, "task b")
	rec.Flush()
	before := tr.Tasks(day)
	writes := store.putCount()

	// Same id set, field-level difference: a stale echo must not clobber.
	remote := model.Snapshot{
		Days: map[model.DayKey][]model.Task{
			day: {
				{ID: b.ID, Name: "renamed remotely"},
				{ID: a.ID, Name: "task a"},
			},
		},
	}
	rec.ApplyRemote(&remote)

	after := tr.Tasks(day)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("local day changed despite equal id set:\nbefore: %#v\nafter:  %#v", before, after)
	}
	time.Sleep(60 * time.Millisecond)
	if store.putCount() != writes {
		t.Fatalf("inbound application scheduled an echo write")
	}
}

func TestDiffGateReplacesDayOnDifferentIDSet(t *testing.T) {
	tr, _, rec := newTestReconciler(t)
	day := tr.CurrentDay()

	if _, err := tr.AddTask(day, "will vanish"); err != nil {
		t.Fatalf("add: %v", err)
	}
	remote := model.Snapshot{
		Days: map[model.DayKey][]model.Task{
			day: {{ID: "remote-1", Name: "remote task"}},
		},
	}
	rec.ApplyRemote(&remote)

	got := tr.Tasks(day)
	if len(got) != 1 || got[0].ID != "remote-1" {
		t.Fatalf("expected remote day to win wholesale, got %#v", got)
	}
}

func TestLegacyPayloadMigratesIntoEmptyDayOnly(t *testing.T) {
	tr, _, rec := newTestReconciler(t)

	legacyDay := model.DayKey("2026-02-01")
	remote := model.Snapshot{
		LegacyTasks: []model.Task{{ID: "old-1", Name: "from the old format"}},
		LegacyDay:   legacyDay,
	}
	rec.ApplyRemote(&remote)
	if got := tr.Tasks(legacyDay); len(got) != 1 || got[0].ID != "old-1" {
		t.Fatalf("expected legacy migration, got %#v", got)
	}

	// Re-applying against a now-populated key must not overwrite it.
	remote2 := model.Snapshot{
		Days: map[model.DayKey][]model.Task{
			legacyDay: {{ID: "old-1", Name: "from the old format"}},
		},
		LegacyTasks: []model.Task{{ID: "stale", Name: "stale legacy"}},
		LegacyDay:   legacyDay,
	}
	rec.ApplyRemote(&remote2)
	if got := tr.Tasks(legacyDay); len(got) != 1 || got[0].ID != "old-1" {
		t.Fatalf("legacy payload overwrote an occupied day: %#v", got)
	}
}

func TestActiveReconcileClearsCrossDayMarker(t *testing.T) {
	tr, _, rec := newTestReconciler(t)
	day := tr.CurrentDay()
	task, _ := tr.AddTask(day, "running")
	if err := tr.Start(day, task.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	yesterday := time.Date(2026, 2, 8, 22, 0, 0, 0, time.Local)
	remote := model.Snapshot{
		ActiveTask:  task.ID,
		ActiveStart: &yesterday,
	}
	rec.ApplyRemote(&remote)
	if active, _ := tr.Active(); active != "" {
		t.Fatalf("expected stale cross-day marker cleared, got %q", active)
	}
}

func TestActiveReconcileRestoresOnlyWithOpenSession(t *testing.T) {
	tr, _, rec := newTestReconciler(t)
	day := tr.CurrentDay()
	task, _ := tr.AddTask(day, "remote running")
	start := time.Date(2026, 2, 9, 8, 30, 0, 0, time.Local)

	remote := model.Snapshot{
		Days: map[model.DayKey][]model.Task{
			day: {
				{ID: task.ID, Name: "remote running", Sessions: []model.Session{{Start: start}}},
				{ID: "remote-extra", Name: "forces replacement"},
			},
		},
		ActiveTask:  task.ID,
		ActiveStart: &start,
	}
	rec.ApplyRemote(&remote)
	if active, at := tr.Active(); active != task.ID || !at.Equal(start) {
		t.Fatalf("expected restored running state, got %q %v", active, at)
	}

	// Same push but with the session closed: the marker must be dropped.
	end := start.Add(time.Hour)
	remote.Days[day][0].Sessions[0].End = &end
	remote.Days[day] = remote.Days[day][:1]
	rec.ApplyRemote(&remote)
	if active, _ := tr.Active(); active != "" {
		t.Fatalf("expected marker cleared without an open session, got %q", active)
	}
}

func TestGoalsMergeIsLocalWins(t *testing.T) {
	tr, _, rec := newTestReconciler(t)
	day := tr.CurrentDay()
	if err := tr.SetGoal(day, 0, "local goal", 50); err != nil {
		t.Fatalf("set goal: %v", err)
	}

	remoteGoals := model.DefaultGoals()
	remoteGoals.Primary[0].Text = "remote goal"
	otherDay := model.DayKey("2026-02-10")
	otherGoals := model.DefaultGoals()
	otherGoals.Secondary[2].Text = "only remote knows"

	remote := model.Snapshot{
		Goals: map[model.DayKey]model.Goals{
			day:      remoteGoals,
			otherDay: otherGoals,
		},
	}
	rec.ApplyRemote(&remote)

	if got := tr.GoalsFor(day); got.Primary[0].Text != "local goal" {
		t.Fatalf("local goal clobbered: %+v", got.Primary[0])
	}
	if got := tr.GoalsFor(otherDay); got.Secondary[2].Text != "only remote knows" {
		t.Fatalf("remote goals for unseen day not merged: %+v", got.Secondary[2])
	}
}

func TestApplyRemoteNilIsNoOp(t *testing.T) {
	tr, _, rec := newTestReconciler(t)
	day := tr.CurrentDay()
	if _, err := tr.AddTask(day, "kept"); err != nil {
		t.Fatalf("add: %v", err)
	}
	rec.ApplyRemote(nil)
	if len(tr.Tasks(day)) != 1 {
		t.Fatalf("nil snapshot mutated state")
	}
}

func TestCloseFlushesAndStopsTimers(t *testing.T) {
	tr, store, rec := newTestReconciler(t)
	day := tr.CurrentDay()

	if err := rec.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := tr.AddTask(day, "pending at logout"); err != nil {
		t.Fatalf("add: %v", err)
	}
	rec.Close()
	if store.putCount() != 1 {
		t.Fatalf("expected final flush on close, got %d writes", store.putCount())
	}
	store.mu.Lock()
	subscribed := store.onChange != nil
	store.mu.Unlock()
	if subscribed {
		t.Fatal("expected unsubscribe on close")
	}

	// After close nothing may write anymore.
	if _, err := tr.AddTask(day, "too late"); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if store.putCount() != 1 {
		t.Fatalf("write after close: %d", store.putCount())
	}
}
