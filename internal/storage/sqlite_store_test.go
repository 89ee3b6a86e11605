package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vikramsk/tickd/internal/model"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "tickd-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSnapshot() model.Snapshot {
	start := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	goals := model.DefaultGoals()
	goals.Primary[0].Text = "ship it"
	goals.Primary[0].AchievementRate = 40
	return model.Snapshot{
		Days: map[model.DayKey][]model.Task{
			"2026-02-09": {
				{
					ID:        "task-1",
					Name:      "deep work",
					Color:     "#4285f4",
					TotalTime: time.Hour,
					Sessions:  []model.Session{{Start: start, End: &end}},
				},
			},
		},
		Goals:       map[model.DayKey]model.Goals{"2026-02-09": goals},
		CurrentDay:  "2026-02-09",
		ActiveTask:  "task-1",
		ActiveStart: &start,
	}
}

func TestGetUnknownUser(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	snap := sampleSnapshot()

	if err := store.Put(ctx, "u1", snap, true); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	tasks := got.Days["2026-02-09"]
	if len(tasks) != 1 || tasks[0].Name != "deep work" || tasks[0].TotalTime != time.Hour {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if len(tasks[0].Sessions) != 1 || tasks[0].Sessions[0].End == nil {
		t.Fatalf("sessions lost in round trip: %#v", tasks[0].Sessions)
	}
	if got.CurrentDay != "2026-02-09" || got.ActiveTask != "task-1" {
		t.Fatalf("unexpected meta: %+v", got)
	}
	if got.ActiveStart == nil || !got.ActiveStart.Equal(*snap.ActiveStart) {
		t.Fatalf("active start lost: %v", got.ActiveStart)
	}
	if got.Goals["2026-02-09"].Primary[0].Text != "ship it" {
		t.Fatalf("goals lost: %+v", got.Goals)
	}
}

func TestPutMergeReconcilesDaysKeepsGoals(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, "u1", sampleSnapshot(), true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A later snapshot without the old day: the cleared day's row must go,
	// goals rows stay.
	next := model.Snapshot{
		Days: map[model.DayKey][]model.Task{
			"2026-02-10": {{ID: "task-2", Name: "new day"}},
		},
		CurrentDay: "2026-02-10",
	}
	if err := store.Put(ctx, "u1", next, true); err != nil {
		t.Fatalf("merge put: %v", err)
	}
	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, stale := got.Days["2026-02-09"]; stale {
		t.Fatalf("cleared day survived the merge: %v", got.Days)
	}
	if len(got.Days["2026-02-10"]) != 1 {
		t.Fatalf("new day missing: %v", got.Days)
	}
	if got.Goals["2026-02-09"].Primary[0].Text != "ship it" {
		t.Fatalf("goals must never be deleted by merge: %+v", got.Goals)
	}
}

func TestPutReplaceWipesUser(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, "u1", sampleSnapshot(), true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Put(ctx, "u1", model.Snapshot{CurrentDay: "2026-02-10"}, false); err != nil {
		t.Fatalf("replace put: %v", err)
	}
	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Days) != 0 || len(got.Goals) != 0 {
		t.Fatalf("replace should wipe old rows: %+v", got)
	}
}

func TestSubscribeReceivesEchoOfOwnWrite(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	received := make(chan model.Snapshot, 1)
	unsub, err := store.Subscribe("u1", func(snap model.Snapshot) {
		received <- snap
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	otherUser := make(chan model.Snapshot, 1)
	unsubOther, err := store.Subscribe("u2", func(snap model.Snapshot) {
		otherUser <- snap
	})
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}
	defer unsubOther()

	if err := store.Put(ctx, "u1", sampleSnapshot(), true); err != nil {
		t.Fatalf("put: %v", err)
	}

	select {
	case snap := <-received:
		if len(snap.Days["2026-02-09"]) != 1 {
			t.Fatalf("unexpected pushed snapshot: %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echo")
	}
	select {
	case <-otherUser:
		t.Fatal("u2 subscriber received u1's write")
	default:
	}
}

func TestUnsubscribeStopsPushes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	calls := 0
	unsub, err := store.Subscribe("u1", func(model.Snapshot) { calls++ })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := store.Put(ctx, "u1", sampleSnapshot(), true); err != nil {
		t.Fatalf("put: %v", err)
	}
	unsub()
	unsub() // second call is harmless
	if err := store.Put(ctx, "u1", sampleSnapshot(), true); err != nil {
		t.Fatalf("put after unsubscribe: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one push, got %d", calls)
	}
}

func TestMigrateDownAndUpAgain(t *testing.T) {
	store := setupStore(t)
	if err := MigrateDown(store.db); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if err := MigrateUp(store.db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if _, err := store.Get(context.Background(), "anyone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty store after re-migrate, got %v", err)
	}
}
