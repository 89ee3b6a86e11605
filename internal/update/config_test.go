package update

import "testing"

func TestDefaultRuntimeConfig(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	if cfg.CalendarID != "primary" {
		t.Fatalf("expected primary calendar, got %q", cfg.CalendarID)
	}
	if cfg.SyncDebounceSeconds != 3 {
		t.Fatalf("expected 3s debounce, got %d", cfg.SyncDebounceSeconds)
	}
	if cfg.GuardTickSeconds != 1 || cfg.NowlineTickSeconds != 60 {
		t.Fatalf("unexpected tick intervals: %+v", cfg)
	}
}

func TestRuntimeConfigFromEnv(t *testing.T) {
	t.Setenv("TICKD_DB_PATH", "/tmp/tickd-test.db")
	t.Setenv("TICKD_CALENDAR_ID", "work@example.com")
	t.Setenv("TICKD_SYNC_DEBOUNCE_SECONDS", "10")
	t.Setenv("TICKD_SCHEDULER_BUFFER", "128")
	t.Setenv("TICKD_GUARD_TICK_SECONDS", "2")
	t.Setenv("TICKD_NOWLINE_TICK_SECONDS", "30")

	cfg := RuntimeConfigFromEnv(DefaultRuntimeConfig())
	if cfg.DBPath != "/tmp/tickd-test.db" {
		t.Fatalf("unexpected db path: %q", cfg.DBPath)
	}
	if cfg.CalendarID != "work@example.com" {
		t.Fatalf("unexpected calendar id: %q", cfg.CalendarID)
	}
	if cfg.SyncDebounceSeconds != 10 || cfg.SchedulerBuffer != 128 {
		t.Fatalf("unexpected sync values: %+v", cfg)
	}
	if cfg.GuardTickSeconds != 2 || cfg.NowlineTickSeconds != 30 {
		t.Fatalf("unexpected tick values: %+v", cfg)
	}
}

func TestRuntimeConfigIgnoresInvalidEnv(t *testing.T) {
	t.Setenv("TICKD_SYNC_DEBOUNCE_SECONDS", "not-a-number")
	t.Setenv("TICKD_SCHEDULER_BUFFER", "-4")

	cfg := RuntimeConfigFromEnv(DefaultRuntimeConfig())
	if cfg.SyncDebounceSeconds != 3 || cfg.SchedulerBuffer != 64 {
		t.Fatalf("expected defaults kept, got %+v", cfg)
	}
}
