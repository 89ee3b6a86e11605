package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	stdsync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vikramsk/tickd/internal/auth"
	"github.com/vikramsk/tickd/internal/calendar"
	"github.com/vikramsk/tickd/internal/scheduler"
	"github.com/vikramsk/tickd/internal/storage"
	"github.com/vikramsk/tickd/internal/sync"
	"github.com/vikramsk/tickd/internal/tracker"
	"github.com/vikramsk/tickd/internal/update"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tickd failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := update.RuntimeConfigFromEnv(update.DefaultRuntimeConfig())

	userID, err := auth.LoadIdentity()
	if err != nil {
		return err
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dir, err := auth.ConfigDir()
		if err != nil {
			return err
		}
		dbPath = filepath.Join(dir, "tickd.db")
	}
	store, err := storage.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	tr := tracker.New()
	snap, err := store.Get(context.Background(), userID)
	switch {
	case err == nil:
		tr.Restore(snap)
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	reconciler := sync.New(tr, store, userID,
		sync.WithDebounce(time.Duration(cfg.SyncDebounceSeconds)*time.Second))
	if err := reconciler.Subscribe(); err != nil {
		return err
	}
	defer reconciler.Close()

	engine := scheduler.NewEngine(cfg.SchedulerBuffer)
	if err := engine.AddTick(scheduler.TickGuard, time.Duration(cfg.GuardTickSeconds)*time.Second); err != nil {
		return err
	}
	if err := engine.AddTick(scheduler.TickNowline, time.Duration(cfg.NowlineTickSeconds)*time.Second); err != nil {
		return err
	}
	engine.Start()
	defer engine.Stop()

	source := &lazyEventSource{calendarID: cfg.CalendarID}
	program := tea.NewProgram(update.NewModelWithConfig(tr, engine, source, reconciler, cfg))
	_, err = program.Run()
	return err
}

// lazyEventSource defers the OAuth flow until the first import, so the app
// starts without credentials and works offline until the user asks for
// calendar data.
type lazyEventSource struct {
	mu         stdsync.Mutex
	calendarID string
	client     *calendar.Client
}

func (s *lazyEventSource) EventsForDay(day time.Time) ([]calendar.Event, error) {
	client, err := s.dial()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return client.EventsForDay(ctx, day)
}

func (s *lazyEventSource) dial() (*calendar.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	srv, err := auth.CalendarService(context.Background())
	if err != nil {
		return nil, err
	}
	s.client = calendar.NewClient(srv, s.calendarID)
	return s.client, nil
}
