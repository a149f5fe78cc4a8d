// Package redisstore implements the remote task and activity sources on Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/workboard/internal/adapters/wire"
	"github.com/evanschultz/workboard/internal/app"
	"github.com/evanschultz/workboard/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key and channel.
const DefaultPrefix = "workboard:"

// maxTxRetries bounds optimistic-lock retries when a watched key changes.
const maxTxRetries = 3

// insertScript stores each (id, payload, score) triple whose id is absent and
// returns the ids it inserted.
var insertScript = redis.NewScript(`
local inserted = {}
for i = 1, #ARGV, 3 do
	local id = ARGV[i]
	if redis.call('HSETNX', KEYS[1], id, ARGV[i + 1]) == 1 then
		redis.call('ZADD', KEYS[2], ARGV[i + 2], id)
		table.insert(inserted, id)
	end
end
return inserted
`)

var _ app.Remote = (*Store)(nil)

// Options configures a Store.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps tasks and activities in hashes indexed by creation-time sorted
// sets, and publishes every change on a pub/sub channel.
type Store struct {
	client *redis.Client
	prefix string
}

// Open dials a client for opts. An empty address yields an unconfigured store.
func Open(opts Options) *Store {
	if strings.TrimSpace(opts.Addr) == "" {
		return &Store{prefix: normalizePrefix(opts.Prefix)}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return New(client, opts.Prefix)
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: normalizePrefix(prefix)}
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return DefaultPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return prefix
}

func (s *Store) tasksKey() string { return s.prefix + "tasks" }
func (s *Store) tasksIndexKey() string { return s.prefix + "tasks:created" }
func (s *Store) tasksChannel() string { return s.prefix + "tasks:changes" }
func (s *Store) activitiesKey() string { return s.prefix + "activities" }
func (s *Store) activitiesIndexKey() string { return s.prefix + "activities:created" }
func (s *Store) activitiesChannel() string { return s.prefix + "activities:changes" }

// Configured reports whether a client is attached.
func (s *Store) Configured() bool {
	return s != nil && s.client != nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	if !s.Configured() {
		return nil
	}
	return s.client.Close()
}

// ListTasks returns every task, newest created first.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if !s.Configured() {
		return nil, app.ErrRemoteDisabled
	}
	ids, err := s.client.ZRevRange(ctx, s.tasksIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list task index: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Task{}, nil
	}
	values, err := s.client.HMGet(ctx, s.tasksKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]domain.Task, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Index entry without a row; the row was deleted mid-read.
			continue
		}
		task, err := wire.UnmarshalTask([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode task %q: %w", ids[i], err)
		}
		out = append(out, task)
	}
	return out, nil
}

// InsertTasks inserts every task whose id is absent and publishes an insert
// event for each. It returns app.ErrConflict when any id already existed.
func (s *Store) InsertTasks(ctx context.Context, tasks ...domain.Task) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	if len(tasks) == 0 {
		return nil
	}
	args := make([]any, 0, len(tasks)*3)
	byID := make(map[string]domain.Task, len(tasks))
	for _, task := range tasks {
		data, err := wire.MarshalTask(task)
		if err != nil {
			return fmt.Errorf("encode task %q: %w", task.ID, err)
		}
		args = append(args, task.ID, string(data), task.CreatedAt.UnixMilli())
		byID[task.ID] = task
	}
	inserted, err := insertScript.Run(ctx, s.client, []string{s.tasksKey(), s.tasksIndexKey()}, args...).StringSlice()
	if err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}
	if len(inserted) > 0 {
		_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range inserted {
				msg, err := wire.MarshalChange(domain.ChangeEvent{Kind: domain.ChangeInsert, Task: byID[id]})
				if err != nil {
					return err
				}
				pipe.Publish(ctx, s.tasksChannel(), msg)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("publish task inserts: %w", err)
		}
	}
	if len(inserted) < len(tasks) {
		return fmt.Errorf("insert tasks: %d of %d ids exist: %w", len(tasks)-len(inserted), len(tasks), app.ErrConflict)
	}
	return nil
}

// UpdateTask applies patch to the stored row under an optimistic lock.
func (s *Store) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	return s.withRow(ctx, id, func(tx *redis.Tx, current domain.Task) error {
		next := patch.Apply(current)
		data, err := wire.MarshalTask(next)
		if err != nil {
			return err
		}
		msg, err := wire.MarshalChange(domain.ChangeEvent{Kind: domain.ChangeUpdate, Task: next})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.tasksKey(), id, string(data))
			pipe.Publish(ctx, s.tasksChannel(), msg)
			return nil
		})
		return err
	})
}

// DeleteTask removes the row and publishes a delete event carrying it.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	return s.withRow(ctx, id, func(tx *redis.Tx, current domain.Task) error {
		msg, err := wire.MarshalChange(domain.ChangeEvent{Kind: domain.ChangeDelete, Task: current})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, s.tasksKey(), id)
			pipe.ZRem(ctx, s.tasksIndexKey(), id)
			pipe.Publish(ctx, s.tasksChannel(), msg)
			return nil
		})
		return err
	})
}

// withRow runs fn against the current row inside a WATCH transaction.
func (s *Store) withRow(ctx context.Context, id string, fn func(*redis.Tx, domain.Task) error) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrInvalidID
	}
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, s.tasksKey(), id).Bytes()
		if errors.Is(err, redis.Nil) {
			return app.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := wire.UnmarshalTask(raw)
		if err != nil {
			return fmt.Errorf("decode task %q: %w", id, err)
		}
		return fn(tx, current)
	}
	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, s.tasksKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("task %q kept changing: %w", id, redis.TxFailedErr)
}

// SubscribeTasks subscribes to the change channel. The subscription is
// confirmed before returning so no later write is missed.
func (s *Store) SubscribeTasks(ctx context.Context) (app.TaskFeed, error) {
	if !s.Configured() {
		return nil, app.ErrRemoteDisabled
	}
	sub, err := s.subscribe(ctx, s.tasksChannel())
	if err != nil {
		return nil, err
	}
	return newFeed(sub, wire.UnmarshalChange), nil
}

// LatestActivity returns the newest activity.
func (s *Store) LatestActivity(ctx context.Context) (domain.Activity, error) {
	if !s.Configured() {
		return domain.Activity{}, app.ErrRemoteDisabled
	}
	ids, err := s.client.ZRevRange(ctx, s.activitiesIndexKey(), 0, 0).Result()
	if err != nil {
		return domain.Activity{}, fmt.Errorf("read activity index: %w", err)
	}
	if len(ids) == 0 {
		return domain.Activity{}, app.ErrNotFound
	}
	raw, err := s.client.HGet(ctx, s.activitiesKey(), ids[0]).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Activity{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("read activity: %w", err)
	}
	return wire.UnmarshalActivity(raw)
}

// InsertActivity stores and publishes one activity.
func (s *Store) InsertActivity(ctx context.Context, activity domain.Activity) error {
	if !s.Configured() {
		return app.ErrRemoteDisabled
	}
	data, err := wire.MarshalActivity(activity)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	keys := []string{s.activitiesKey(), s.activitiesIndexKey()}
	inserted, err := insertScript.Run(ctx, s.client, keys, activity.ID, string(data), activity.CreatedAt.UnixMilli()).StringSlice()
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if len(inserted) == 0 {
		return fmt.Errorf("insert activity %q: %w", activity.ID, app.ErrConflict)
	}
	if err := s.client.Publish(ctx, s.activitiesChannel(), data).Err(); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	return nil
}

// SubscribeActivities subscribes to activity inserts.
func (s *Store) SubscribeActivities(ctx context.Context) (app.ActivityFeed, error) {
	if !s.Configured() {
		return nil, app.ErrRemoteDisabled
	}
	sub, err := s.subscribe(ctx, s.activitiesChannel())
	if err != nil {
		return nil, err
	}
	return newFeed(sub, decodeActivityEvent), nil
}

func (s *Store) subscribe(ctx context.Context, channel string) (*redis.PubSub, error) {
	sub := s.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return sub, nil
}

func decodeActivityEvent(data []byte) (domain.ActivityEvent, error) {
	activity, err := wire.UnmarshalActivity(data)
	if err != nil {
		return domain.ActivityEvent{}, err
	}
	return domain.ActivityEvent{Activity: activity}, nil
}
