package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vikramsk/tickd/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteStore implements SnapshotStore on a local sqlite database.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	subs    map[int]subscriber
	nextSub int
}

type subscriber struct {
	userID string
	fn     func(model.Snapshot)
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteStore{db: db, subs: make(map[int]subscriber)}, nil
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (model.Snapshot, error) {
	snap := model.Snapshot{
		Days:  make(map[model.DayKey][]model.Task),
		Goals: make(map[model.DayKey]model.Goals),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT day_key, tasks_json FROM days WHERE user_id = ?`, userID)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var day, tasksJSON string
		if err := rows.Scan(&day, &tasksJSON); err != nil {
			return model.Snapshot{}, err
		}
		var tasks []model.Task
		if err := json.Unmarshal([]byte(tasksJSON), &tasks); err != nil {
			return model.Snapshot{}, fmt.Errorf("decode tasks for %s: %w", day, err)
		}
		snap.Days[model.DayKey(day)] = tasks
	}
	if err := rows.Err(); err != nil {
		return model.Snapshot{}, err
	}

	goalRows, err := s.db.QueryContext(ctx, `SELECT day_key, goals_json FROM goals WHERE user_id = ?`, userID)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer goalRows.Close()
	for goalRows.Next() {
		var day, goalsJSON string
		if err := goalRows.Scan(&day, &goalsJSON); err != nil {
			return model.Snapshot{}, err
		}
		var goals model.Goals
		if err := json.Unmarshal([]byte(goalsJSON), &goals); err != nil {
			return model.Snapshot{}, fmt.Errorf("decode goals for %s: %w", day, err)
		}
		snap.Goals[model.DayKey(day)] = goals
	}
	if err := goalRows.Err(); err != nil {
		return model.Snapshot{}, err
	}

	var currentDay, activeTask string
	var activeStart sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT current_day, active_task_id, active_start FROM meta WHERE user_id = ?`, userID).
		Scan(&currentDay, &activeTask, &activeStart)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if len(snap.Days) == 0 && len(snap.Goals) == 0 {
			return model.Snapshot{}, ErrNotFound
		}
	case err != nil:
		return model.Snapshot{}, err
	default:
		snap.CurrentDay = model.DayKey(currentDay)
		snap.ActiveTask = activeTask
		if activeStart.Valid && activeStart.String != "" {
			at, parseErr := time.Parse(sqliteTimeLayout, activeStart.String)
			if parseErr != nil {
				return model.Snapshot{}, parseErr
			}
			snap.ActiveStart = &at
		}
	}
	return snap, nil
}

// Put commits the snapshot. With merge the day index is reconciled (day
// rows absent from the snapshot are removed, so a cleared day propagates)
// while goals rows are only ever upserted; without merge the user's whole
// projection is replaced. Subscribers are notified after commit with the
// stored value, writer included.
func (s *SQLiteStore) Put(ctx context.Context, userID string, snap model.Snapshot, merge bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if !merge {
		for _, stmt := range []string{
			`DELETE FROM days WHERE user_id = ?`,
			`DELETE FROM goals WHERE user_id = ?`,
			`DELETE FROM meta WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
				return err
			}
		}
	}

	if merge {
		keep := make([]any, 0, len(snap.Days)+1)
		keep = append(keep, userID)
		placeholders := ""
		for day := range snap.Days {
			if placeholders != "" {
				placeholders += ","
			}
			placeholders += "?"
			keep = append(keep, string(day))
		}
		query := `DELETE FROM days WHERE user_id = ?`
		if placeholders != "" {
			query += ` AND day_key NOT IN (` + placeholders + `)`
		}
		if _, err := tx.ExecContext(ctx, query, keep...); err != nil {
			return err
		}
	}

	for day, tasks := range snap.Days {
		payload, err := json.Marshal(tasks)
		if err != nil {
			return fmt.Errorf("encode tasks for %s: %w", day, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO days (user_id, day_key, tasks_json) VALUES (?, ?, ?)
			ON CONFLICT(user_id, day_key) DO UPDATE SET tasks_json = excluded.tasks_json`,
			userID, string(day), string(payload),
		); err != nil {
			return err
		}
	}

	for day, goals := range snap.Goals {
		payload, err := json.Marshal(goals)
		if err != nil {
			return fmt.Errorf("encode goals for %s: %w", day, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO goals (user_id, day_key, goals_json) VALUES (?, ?, ?)
			ON CONFLICT(user_id, day_key) DO UPDATE SET goals_json = excluded.goals_json`,
			userID, string(day), string(payload),
		); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (user_id, current_day, active_task_id, active_start) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_day = excluded.current_day,
			active_task_id = excluded.active_task_id,
			active_start = excluded.active_start`,
		userID, string(snap.CurrentDay), snap.ActiveTask, nullTime(snap.ActiveStart),
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	stored, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	s.notify(userID, stored)
	return nil
}

// Subscribe registers a push listener for one user. The returned function
// removes it; calling it more than once is harmless.
func (s *SQLiteStore) Subscribe(userID string, fn func(model.Snapshot)) (func(), error) {
	if fn == nil {
		return nil, errors.New("storage: nil subscriber")
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscriber{userID: userID, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}, nil
}

func (s *SQLiteStore) notify(userID string, snap model.Snapshot) {
	s.mu.Lock()
	targets := make([]func(model.Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.userID == userID {
			targets = append(targets, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(snap.Clone())
	}
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}
