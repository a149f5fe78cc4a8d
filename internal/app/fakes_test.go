package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/evanschultz/workboard/internal/domain"
)

type fakeLocal struct {
	mu       sync.Mutex
	board    domain.Board
	boardErr error
	activity *domain.Activity
	unsynced []string
	saves    int
	saveErr  error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{}
}

func (f *fakeLocal) LoadBoard(context.Context) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.boardErr != nil {
		return nil, f.boardErr
	}
	if f.board == nil {
		return nil, ErrNotFound
	}
	return f.board.Clone(), nil
}

func (f *fakeLocal) SaveBoard(_ context.Context, b domain.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.board = b.Clone()
	f.boardErr = nil
	f.saves++
	return nil
}

func (f *fakeLocal) LoadActivity(context.Context) (domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activity == nil {
		return domain.Activity{}, ErrNotFound
	}
	return *f.activity, nil
}

func (f *fakeLocal) SaveActivity(_ context.Context, a domain.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity = &a
	return nil
}

func (f *fakeLocal) LoadUnsynced(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.unsynced), nil
}

func (f *fakeLocal) SaveUnsynced(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsynced = slices.Clone(ids)
	return nil
}

func (f *fakeLocal) snapshot() (domain.Board, []string, *domain.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.board.Clone(), slices.Clone(f.unsynced), f.activity
}

type fakeFeed[T any] struct {
	ch     chan T
	once   sync.Once
	closed chan struct{}
}

func newFakeFeed[T any]() *fakeFeed[T] {
	return &fakeFeed[T]{ch: make(chan T, 16), closed: make(chan struct{})}
}

func (f *fakeFeed[T]) Events() <-chan T { return f.ch }

func (f *fakeFeed[T]) Close() error {
	f.once.Do(func() {
		close(f.closed)
		close(f.ch)
	})
	return nil
}

func (f *fakeFeed[T]) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type fakeRemote struct {
	mu         sync.Mutex
	configured bool
	tasks      map[string]domain.Task
	activities []domain.Activity

	listErr      error
	insertErr    error
	updateErr    error
	deleteErr    error
	subscribeErr error

	inserts []string
	updates []string
	deletes []string

	taskFeed     *fakeFeed[domain.ChangeEvent]
	activityFeed *fakeFeed[domain.ActivityEvent]
}

func newFakeRemote(tasks ...domain.Task) *fakeRemote {
	r := &fakeRemote{configured: true, tasks: map[string]domain.Task{}}
	for _, task := range tasks {
		r.tasks[task.ID] = task
	}
	return r
}

func (r *fakeRemote) Configured() bool { return r.configured }

func (r *fakeRemote) ListTasks(context.Context) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		out = append(out, task)
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out, nil
}

func (r *fakeRemote) InsertTasks(_ context.Context, tasks ...domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	conflict := false
	for _, task := range tasks {
		if _, ok := r.tasks[task.ID]; ok {
			conflict = true
			continue
		}
		r.tasks[task.ID] = task
		r.inserts = append(r.inserts, task.ID)
	}
	if conflict {
		return fmt.Errorf("insert: %w", ErrConflict)
	}
	return nil
}

func (r *fakeRemote) UpdateTask(_ context.Context, id string, patch domain.TaskPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	task, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}
	r.tasks[id] = patch.Apply(task)
	r.updates = append(r.updates, id)
	return nil
}

func (r *fakeRemote) DeleteTask(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)
	r.deletes = append(r.deletes, id)
	return nil
}

func (r *fakeRemote) SubscribeTasks(context.Context) (TaskFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribeErr != nil {
		return nil, r.subscribeErr
	}
	r.taskFeed = newFakeFeed[domain.ChangeEvent]()
	return r.taskFeed, nil
}

func (r *fakeRemote) LatestActivity(context.Context) (domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.activities) == 0 {
		return domain.Activity{}, ErrNotFound
	}
	latest := r.activities[0]
	for _, a := range r.activities[1:] {
		if a.NewerThan(latest) {
			latest = a
		}
	}
	return latest, nil
}

func (r *fakeRemote) InsertActivity(_ context.Context, a domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, a)
	return nil
}

func (r *fakeRemote) SubscribeActivities(context.Context) (ActivityFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribeErr != nil {
		return nil, r.subscribeErr
	}
	r.activityFeed = newFakeFeed[domain.ActivityEvent]()
	return r.activityFeed, nil
}

func (r *fakeRemote) task(id string) (domain.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	return task, ok
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func sequentialIDs() IDGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// testNow is 2024-01-05 09:00 UTC.
var testNow = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, local LocalStore, remote Remote) (*Session, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: testNow}
	s := NewSession(local, remote, sequentialIDs(), clock.Now, SessionConfig{RemoteTimeout: time.Second})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s, clock
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func task(id, date string, status domain.Status, stamp time.Time) domain.Task {
	return domain.Task{
		ID:        id,
		Title:     "title " + id,
		Person:    "Dev",
		Status:    status,
		Priority:  domain.PriorityNone,
		Date:      date,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
}
