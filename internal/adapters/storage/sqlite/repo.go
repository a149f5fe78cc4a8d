package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/workboard/internal/adapters/wire"
	"github.com/evanschultz/workboard/internal/app"
	"github.com/evanschultz/workboard/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Keys of the persisted slots.
const (
	BoardKey    = "workboard-daily-tasks"
	ActivityKey = "workboard-last-activity"
	UnsyncedKey = "workboard-unsynced-tasks"
)

// Repository stores the local board snapshot in a key-value table.
type Repository struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// Get returns the raw value stored under key.
func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, app.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Put replaces the value stored under key.
func (r *Repository) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_store(key, value, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), ts(r.clock()))
	return err
}

// Delete removes key. Missing keys yield app.ErrNotFound.
func (r *Repository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// LoadBoard decodes the board snapshot. Rows that fail validation are dropped.
func (r *Repository) LoadBoard(ctx context.Context) (domain.Board, error) {
	raw, err := r.Get(ctx, BoardKey)
	if err != nil {
		return nil, err
	}
	return DecodeBoard(raw)
}

// SaveBoard writes the full board snapshot.
func (r *Repository) SaveBoard(ctx context.Context, board domain.Board) error {
	data, err := EncodeBoard(board)
	if err != nil {
		return err
	}
	return r.Put(ctx, BoardKey, data)
}

// LoadActivity decodes the last-activity slot.
func (r *Repository) LoadActivity(ctx context.Context) (domain.Activity, error) {
	raw, err := r.Get(ctx, ActivityKey)
	if err != nil {
		return domain.Activity{}, err
	}
	activity, err := wire.UnmarshalActivity(raw)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("decode last activity: %w", err)
	}
	return activity, nil
}

// SaveActivity writes the last-activity slot as {id, message, at}.
func (r *Repository) SaveActivity(ctx context.Context, activity domain.Activity) error {
	data, err := wire.Marshal(wire.ActivityRecord{
		ID:      activity.ID,
		Message: activity.Message,
		At:      wire.FormatTS(activity.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("encode last activity: %w", err)
	}
	return r.Put(ctx, ActivityKey, data)
}

// LoadUnsynced returns the ids whose remote write failed. Absence is an empty set.
func (r *Repository) LoadUnsynced(ctx context.Context) ([]string, error) {
	raw, err := r.Get(ctx, UnsyncedKey)
	if errors.Is(err, app.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := wire.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode unsynced ids: %w", err)
	}
	return ids, nil
}

// SaveUnsynced replaces the unsynced id set. An empty set clears the slot.
func (r *Repository) SaveUnsynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		err := r.Delete(ctx, UnsyncedKey)
		if errors.Is(err, app.ErrNotFound) {
			return nil
		}
		return err
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	data, err := wire.Marshal(slices.Compact(ids))
	if err != nil {
		return fmt.Errorf("encode unsynced ids: %w", err)
	}
	return r.Put(ctx, UnsyncedKey, data)
}

// EncodeBoard renders a board as day -> task records, writing both
// updated_at and the legacy updatedAt key.
func EncodeBoard(board domain.Board) ([]byte, error) {
	out := make(map[string][]wire.TaskRecord, len(board))
	for day, tasks := range board {
		records := make([]wire.TaskRecord, 0, len(tasks))
		for _, task := range tasks {
			rec := wire.FromTask(task)
			rec.LegacyUpdatedAt = rec.UpdatedAt
			records = append(records, rec)
		}
		out[day] = records
	}
	data, err := wire.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode board snapshot: %w", err)
	}
	return data, nil
}

// DecodeBoard parses a snapshot written by EncodeBoard or an older client.
func DecodeBoard(raw []byte) (domain.Board, error) {
	var in map[string][]wire.TaskRecord
	if err := wire.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode board snapshot: %w", err)
	}
	board := domain.Board{}
	for day, records := range in {
		if !domain.ValidDateKey(day) {
			continue
		}
		tasks := make([]domain.Task, 0, len(records))
		for _, rec := range records {
			if strings.TrimSpace(rec.Date) == "" {
				rec.Date = day
			}
			task, err := rec.ToTask()
			if err != nil {
				continue
			}
			tasks = append(tasks, task)
		}
		board[day] = tasks
	}
	return board, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
