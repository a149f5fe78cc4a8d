// Package pgstore implements the remote task and activity sources on
// PostgreSQL, with LISTEN/NOTIFY as the change feed.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/workboard/internal/adapters/wire"
	"github.com/evanschultz/workboard/internal/app"
	"github.com/evanschultz/workboard/internal/domain"
	"github.com/lib/pq"
)

const driverName = "postgres"

// Listener reconnect bounds.
const (
	minReconnect = 2 * time.Second
	maxReconnect = time.Minute
)

// fetchTimeout bounds the row read behind each notification.
const fetchTimeout = 5 * time.Second

var _ app.Remote = (*Store)(nil)

// Store is a PostgreSQL-backed remote.
type Store struct {
	db  *sql.DB
	dsn string
}

// Open prepares a pool for dsn without dialing. An empty dsn yields an
// unconfigured store.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return &Store{}, nil
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Store{db: db, dsn: dsn}, nil
}

// Configured reports whether a DSN was supplied.
func (s *Store) Configured() bool {
	return s != nil && s.db != nil
}

// Migrate creates the schema and notification triggers.
func (s *Store) Migrate(ctx context.Context) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if !s.Configured() {
		return nil
	}
	return s.db.Close()
}

// ListTasks returns every task, newest created first.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if !s.Configured() {
		return nil, app.ErrRemoteDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// InsertTasks writes rows whose id is absent. It returns app.ErrConflict when
// any id already existed.
func (s *Store) InsertTasks(ctx context.Context, tasks ...domain.Task) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	if len(tasks) == 0 {
		return nil
	}
	query, args := buildInsert(tasks)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}
	defer rows.Close()
	inserted := 0
	for rows.Next() {
		inserted++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}
	if inserted < len(tasks) {
		return fmt.Errorf("insert tasks: %d of %d ids exist: %w", len(tasks)-inserted, len(tasks), app.ErrConflict)
	}
	return nil
}

// UpdateTask writes the non-nil patch fields.
func (s *Store) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	query, args, ok := buildUpdate(id, patch)
	if !ok {
		return nil
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %q: %w", id, err)
	}
	return translateNoRows(res)
}

// DeleteTask removes one row.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %q: %w", id, err)
	}
	return translateNoRows(res)
}

// SubscribeTasks listens on the task channel.
func (s *Store) SubscribeTasks(ctx context.Context) (app.TaskFeed, error) {
	if !s.Configured() {
		return nil, app.ErrRemoteDisabled
	}
	listener, err := s.listen(ctx, tasksChannel)
	if err != nil {
		return nil, err
	}
	return newFeed(listener, func(ctx context.Context, payload []byte) (domain.ChangeEvent, error) {
		return taskChange(ctx, payload, s.getTask)
	}), nil
}

// LatestActivity returns the newest activity.
func (s *Store) LatestActivity(ctx context.Context) (domain.Activity, error) {
	if !s.Configured() {
		return domain.Activity{}, app.ErrRemoteDisabled
	}
	var (
		activity domain.Activity
		created  time.Time
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, message, created_at FROM activities ORDER BY created_at DESC LIMIT 1`).
		Scan(&activity.ID, &activity.Message, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Activity{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("latest activity: %w", err)
	}
	activity.CreatedAt = created.UTC()
	return activity, nil
}

// InsertActivity writes one activity.
func (s *Store) InsertActivity(ctx context.Context, activity domain.Activity) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, message, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		activity.ID, activity.Message, activity.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if err := translateNoRows(res); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			return fmt.Errorf("insert activity %q: %w", activity.ID, app.ErrConflict)
		}
		return err
	}
	return nil
}

// SubscribeActivities listens on the activity channel.
func (s *Store) SubscribeActivities(ctx context.Context) (app.ActivityFeed, error) {
	if !s.Configured() {
		return nil, app.ErrRemoteDisabled
	}
	listener, err := s.listen(ctx, activitiesChannel)
	if err != nil {
		return nil, err
	}
	return newFeed(listener, func(ctx context.Context, payload []byte) (domain.ActivityEvent, error) {
		return activityChange(ctx, payload, s.getActivity)
	}), nil
}

func (s *Store) getTask(ctx context.Context, id string) (domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task %q: %w", id, err)
	}
	return task, nil
}

func (s *Store) getActivity(ctx context.Context, id string) (domain.Activity, error) {
	var (
		activity domain.Activity
		created  time.Time
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, message, created_at FROM activities WHERE id = $1`, id).
		Scan(&activity.ID, &activity.Message, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Activity{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("get activity %q: %w", id, err)
	}
	activity.CreatedAt = created.UTC()
	return activity, nil
}

// listen opens a dedicated listener connection and confirms it is live.
func (s *Store) listen(ctx context.Context, channel string) (*pq.Listener, error) {
	listener := pq.NewListener(s.dsn, minReconnect, maxReconnect, nil)
	errCh := make(chan error, 1)
	go func() {
		if err := listener.Listen(channel); err != nil {
			errCh <- err
			return
		}
		errCh <- listener.Ping()
	}()
	select {
	case err := <-errCh:
		if err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("listen %s: %w", channel, err)
		}
		return listener, nil
	case <-ctx.Done():
		_ = listener.Close()
		return nil, ctx.Err()
	}
}

// feed adapts a listener into a typed event channel. resolve turns each
// notification payload into an event; payloads it rejects are skipped.
type feed[T any] struct {
	listener *pq.Listener
	resolve  func(context.Context, []byte) (T, error)
	events   chan T
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

func newFeed[T any](listener *pq.Listener, resolve func(context.Context, []byte) (T, error)) *feed[T] {
	ctx, cancel := context.WithCancel(context.Background())
	f := &feed[T]{
		listener: listener,
		resolve:  resolve,
		events:   make(chan T, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	go f.run()
	return f
}

func (f *feed[T]) run() {
	defer close(f.events)
	for {
		select {
		case <-f.ctx.Done():
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// A nil notification marks a reconnect.
			if n == nil {
				continue
			}
			callCtx, cancel := context.WithTimeout(f.ctx, fetchTimeout)
			ev, err := f.resolve(callCtx, []byte(n.Extra))
			cancel()
			if err != nil {
				continue
			}
			select {
			case f.events <- ev:
			case <-f.ctx.Done():
				return
			}
		}
	}
}

func (f *feed[T]) Events() <-chan T {
	return f.events
}

func (f *feed[T]) Close() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		err = f.listener.Close()
	})
	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		rec              wire.TaskRecord
		notes            sql.NullString
		created, updated time.Time
	)
	if err := s.Scan(
		&rec.ID, &rec.Title, &rec.Person, &notes, &rec.Status, &rec.Priority,
		&rec.SortOrder, &rec.Date, &rec.Continued, &created, &updated,
	); err != nil {
		return domain.Task{}, err
	}
	if notes.Valid {
		rec.Notes = &notes.String
	}
	rec.CreatedAt = wire.FormatTS(created)
	rec.UpdatedAt = wire.FormatTS(updated)
	task, err := rec.ToTask()
	if err != nil {
		return domain.Task{}, fmt.Errorf("decode task %q: %w", rec.ID, err)
	}
	return task, nil
}

// notice is a trigger payload: the operation and the row id.
type notice struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func decodeNotice(payload []byte) (notice, error) {
	var n notice
	if err := wire.Unmarshal(payload, &n); err != nil {
		return notice{}, err
	}
	n.Type = strings.ToLower(strings.TrimSpace(n.Type))
	n.ID = strings.TrimSpace(n.ID)
	if n.ID == "" {
		return notice{}, wire.ErrMalformedChange
	}
	return n, nil
}

// taskChange resolves a task notice. Inserts and updates read the current
// row; a row gone by then yields app.ErrNotFound and its delete notice
// follows.
func taskChange(ctx context.Context, payload []byte, fetch func(context.Context, string) (domain.Task, error)) (domain.ChangeEvent, error) {
	n, err := decodeNotice(payload)
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	kind := domain.ChangeKind(n.Type)
	switch kind {
	case domain.ChangeDelete:
		return domain.ChangeEvent{Kind: kind, Task: domain.Task{ID: n.ID}}, nil
	case domain.ChangeInsert, domain.ChangeUpdate:
		task, err := fetch(ctx, n.ID)
		if err != nil {
			return domain.ChangeEvent{}, err
		}
		return domain.ChangeEvent{Kind: kind, Task: task}, nil
	default:
		return domain.ChangeEvent{}, fmt.Errorf("notice type %q: %w", n.Type, wire.ErrMalformedChange)
	}
}

func activityChange(ctx context.Context, payload []byte, fetch func(context.Context, string) (domain.Activity, error)) (domain.ActivityEvent, error) {
	n, err := decodeNotice(payload)
	if err != nil {
		return domain.ActivityEvent{}, err
	}
	activity, err := fetch(ctx, n.ID)
	if err != nil {
		return domain.ActivityEvent{}, err
	}
	return domain.ActivityEvent{Activity: activity}, nil
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
