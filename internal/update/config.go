package update

import (
	"os"
	"strconv"
	"strings"
)

type RuntimeConfig struct {
	DBPath              string
	CalendarID          string
	SyncDebounceSeconds int
	SchedulerBuffer     int
	GuardTickSeconds    int
	NowlineTickSeconds  int
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		CalendarID:          "primary",
		SyncDebounceSeconds: 3,
		SchedulerBuffer:     64,
		GuardTickSeconds:    1,
		NowlineTickSeconds:  60,
	}
}

func RuntimeConfigFromEnv(base RuntimeConfig) RuntimeConfig {
	cfg := base
	if v, ok := getEnvString("TICKD_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := getEnvString("TICKD_CALENDAR_ID"); ok {
		cfg.CalendarID = v
	}
	if v, ok := getEnvInt("TICKD_SYNC_DEBOUNCE_SECONDS"); ok && v > 0 {
		cfg.SyncDebounceSeconds = v
	}
	if v, ok := getEnvInt("TICKD_SCHEDULER_BUFFER"); ok && v > 0 {
		cfg.SchedulerBuffer = v
	}
	if v, ok := getEnvInt("TICKD_GUARD_TICK_SECONDS"); ok && v > 0 {
		cfg.GuardTickSeconds = v
	}
	if v, ok := getEnvInt("TICKD_NOWLINE_TICK_SECONDS"); ok && v > 0 {
		cfg.NowlineTickSeconds = v
	}
	return cfg
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", false
	}
	return raw, true
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
