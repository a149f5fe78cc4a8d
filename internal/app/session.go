package app

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/workboard/internal/domain"
	"golang.org/x/sync/errgroup"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Mode is the session's storage mode.
type Mode string

// Mode values.
const (
	ModeLoading Mode = "loading"
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// DefaultRemoteTimeout bounds each remote call.
const DefaultRemoteTimeout = 5 * time.Second

// SessionConfig holds configuration for session.
type SessionConfig struct {
	// Location decides which calendar day is "today". Nil means UTC.
	Location      *time.Location
	RemoteTimeout time.Duration
	Logger        Logger
}

// Session owns the in-memory board, its backing stores, the background
// remote writer and the change-feed subscriptions.
type Session struct {
	local   LocalStore
	remote  Remote
	idGen   IDGenerator
	clock   Clock
	loc     *time.Location
	timeout time.Duration
	logger  Logger

	broker   *changeBroker
	queue    *writeQueue
	activity *ActivityLog

	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.Mutex
	mode     Mode
	board    domain.Board
	todayKey string
	unsynced map[string]struct{}
	feeds    []io.Closer
	closed   bool
}

// NewSession constructs a session and starts its remote writer. Call Reload
// to load the board. A nil remote means no remote is configured.
func NewSession(local LocalStore, remote Remote, idGen IDGenerator, clock Clock, cfg SessionConfig) *Session {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if remote == nil {
		remote = disabledRemote{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	s := &Session{
		local:    local,
		remote:   remote,
		idGen:    idGen,
		clock:    clock,
		loc:      cfg.Location,
		timeout:  cfg.RemoteTimeout,
		logger:   cfg.Logger,
		broker:   newChangeBroker(),
		queue:    newWriteQueue(),
		cancel:   cancel,
		group:    group,
		mode:     ModeLoading,
		board:    domain.Board{},
		unsynced: map[string]struct{}{},
	}
	s.activity = newActivityLog(s)
	group.Go(func() error {
		return s.runWriter(gctx)
	})
	return s
}

// Mode returns the current storage mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// TodayKey returns the day the session treats as today.
func (s *Session) TodayKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.todayKey
}

// Board returns a copy of every day.
func (s *Session) Board() domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Today returns a copy of today's list in list order.
func (s *Session) Today() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.board[s.todayKey])
}

// Column returns today's tasks in status ordered by sort order.
func (s *Session) Column(status domain.Status) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Column(s.todayKey, status)
}

// LastActivity returns the most recent activity, if any.
func (s *Session) LastActivity() (domain.Activity, bool) {
	return s.activity.Last()
}

// AddTaskInput holds input values for add task operations.
type AddTaskInput struct {
	Title  string
	Person string
	Notes  string
}

// AddTask creates a task at the top of today's Doing column.
func (s *Session) AddTask(ctx context.Context, in AddTaskInput) (domain.Task, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return domain.Task{}, err
	}
	sortOrder := domain.SortOrderBetween(nil, firstSortOrder(s.board.Column(s.todayKey, domain.StatusDoing)))
	task, err := domain.NewTask(domain.TaskInput{
		ID:        s.idGen(),
		Title:     in.Title,
		Person:    in.Person,
		Notes:     in.Notes,
		Date:      s.todayKey,
		SortOrder: sortOrder,
	}, s.clock())
	if err != nil {
		s.mu.Unlock()
		return domain.Task{}, err
	}
	s.board.PrependTask(task)
	err = s.commitLocked(ctx, writeJob{
		op:     "insert",
		taskID: task.ID,
		run: func(ctx context.Context) error {
			return s.remote.InsertTasks(ctx, task)
		},
	})
	s.mu.Unlock()

	s.broker.notify()
	s.recordActivity(ctx, addedMessage(task))
	return task, err
}

// MoveTask sets a task's status. Moving to the current status succeeds
// without writing anything.
func (s *Session) MoveTask(ctx context.Context, id string, status domain.Status) (domain.Task, error) {
	return s.updateToday(ctx, id, "move", func(t *domain.Task, now time.Time) (bool, error) {
		return t.Move(status, now)
	}, func(_, next domain.Task) string {
		return movedMessage(next)
	})
}

// EditTaskInput holds input values for edit task operations.
type EditTaskInput struct {
	Title  string
	Person string
	Notes  string
}

// EditTask replaces title, person and notes.
func (s *Session) EditTask(ctx context.Context, id string, in EditTaskInput) (domain.Task, error) {
	return s.updateToday(ctx, id, "edit", func(t *domain.Task, now time.Time) (bool, error) {
		return true, t.UpdateDetails(in.Title, in.Person, in.Notes, now)
	}, func(_, next domain.Task) string {
		return editedMessage(next)
	})
}

// UpdatePriority sets a task's priority flag.
func (s *Session) UpdatePriority(ctx context.Context, id string, priority domain.Priority) (domain.Task, error) {
	return s.updateToday(ctx, id, "priority", func(t *domain.Task, now time.Time) (bool, error) {
		return true, t.SetPriority(priority, now)
	}, func(_, next domain.Task) string {
		return priorityMessage(next)
	})
}

// PositionInput holds input values for reposition operations.
type PositionInput struct {
	Status    domain.Status
	SortOrder float64
}

// UpdateTaskPosition places a task in a column at a caller-computed sort order.
func (s *Session) UpdateTaskPosition(ctx context.Context, id string, in PositionInput) (domain.Task, error) {
	return s.updateToday(ctx, id, "position", func(t *domain.Task, now time.Time) (bool, error) {
		return true, t.Reposition(in.Status, in.SortOrder, now)
	}, repositionMessage)
}

// DropTask places a task at index within today's status column, counting
// positions among the other tasks of that column.
func (s *Session) DropTask(ctx context.Context, id string, status domain.Status, index int) (domain.Task, error) {
	return s.updateToday(ctx, id, "position", func(t *domain.Task, now time.Time) (bool, error) {
		neighbors := make([]float64, 0)
		for _, other := range s.board.Column(s.todayKey, status) {
			if other.ID != t.ID {
				neighbors = append(neighbors, other.SortOrder)
			}
		}
		sortOrder, err := domain.SortOrderForDrop(neighbors, index)
		if err != nil {
			return false, err
		}
		return true, t.Reposition(status, sortOrder, now)
	}, repositionMessage)
}

// DeleteTask removes a task from today and returns it.
func (s *Session) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return domain.Task{}, err
	}
	task, err := s.todayTaskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return domain.Task{}, err
	}
	s.board.RemoveTask(task.ID)
	err = s.commitLocked(ctx, writeJob{
		op:     "delete",
		taskID: task.ID,
		run: func(ctx context.Context) error {
			return s.remote.DeleteTask(ctx, task.ID)
		},
	})
	s.mu.Unlock()

	s.broker.notify()
	s.recordActivity(ctx, deletedMessage(task))
	return task, err
}

// Rollover re-runs carry-over when the calendar day changed since the board
// was loaded. It returns the number of carried tasks.
func (s *Session) Rollover(ctx context.Context) (int, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	now := s.clock()
	today := domain.DateKey(now, s.loc)
	if today == s.todayKey {
		s.mu.Unlock()
		return 0, nil
	}
	next, carried := domain.CarryOverBoard(s.board, today, now)
	s.board = next
	s.todayKey = today
	var err error
	if s.mode == ModeOnline {
		s.enqueueCarriedLocked(carried)
	} else {
		err = s.persistLocked(ctx)
	}
	s.mu.Unlock()

	s.logger.Info("day rolled over", "today", today, "carried", len(carried))
	s.broker.notify()
	if len(carried) > 0 {
		s.recordActivity(ctx, carriedMessage(len(carried), today))
	}
	return len(carried), err
}

// Close flushes queued remote writes, unsubscribes from change feeds and
// stops background work.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	feeds := s.feeds
	s.feeds = nil
	s.mu.Unlock()

	s.closeFeeds(feeds)
	s.queue.close()
	done := make(chan error, 1)
	go func() {
		done <- s.group.Wait()
	}()
	select {
	case err := <-done:
		s.cancel()
		return err
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// updateToday runs fn against a copy of today's task and commits it when fn
// reports a change.
func (s *Session) updateToday(
	ctx context.Context,
	id, op string,
	fn func(*domain.Task, time.Time) (bool, error),
	message func(prev, next domain.Task) string,
) (domain.Task, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return domain.Task{}, err
	}
	prev, err := s.todayTaskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return domain.Task{}, err
	}
	next := prev
	changed, err := fn(&next, s.clock())
	if err != nil {
		s.mu.Unlock()
		return domain.Task{}, err
	}
	if !changed {
		s.mu.Unlock()
		return prev, nil
	}
	s.board.ReplaceTask(s.todayKey, next)
	patch := domain.DiffPatch(prev, next)
	err = s.commitLocked(ctx, writeJob{
		op:     op,
		taskID: next.ID,
		run: func(ctx context.Context) error {
			return s.remote.UpdateTask(ctx, next.ID, patch)
		},
	})
	s.mu.Unlock()

	s.broker.notify()
	s.recordActivity(ctx, message(prev, next))
	return next, err
}

// commitLocked makes an applied mutation durable: online it queues the remote
// write, offline it saves the whole board. Offline changes to a configured
// remote are marked unsynced so the next remote load pushes them.
func (s *Session) commitLocked(ctx context.Context, job writeJob) error {
	ids := []string{job.taskID}
	if s.mode != ModeOnline {
		if s.remote.Configured() {
			s.markUnsyncedLocked(ctx, ids)
		}
		return s.persistLocked(ctx)
	}
	job.onError = func(err error) {
		s.remoteWriteFailed(job.op, ids, err)
	}
	job.onSuccess = func() {
		s.remoteWriteSucceeded(job.op, ids)
	}
	s.enqueue(job)
	return nil
}

// enqueueCarriedLocked writes new clones to the remote. Another session may
// have carried the same tasks first, so conflicts are expected.
func (s *Session) enqueueCarriedLocked(carried []domain.Task) {
	if len(carried) == 0 {
		return
	}
	ids := make([]string, 0, len(carried))
	for _, task := range carried {
		ids = append(ids, task.ID)
	}
	s.enqueue(writeJob{
		op: "insert_carried",
		run: func(ctx context.Context) error {
			err := s.remote.InsertTasks(ctx, carried...)
			if isConflict(err) {
				return nil
			}
			return err
		},
		onError: func(err error) {
			s.remoteWriteFailed("insert_carried", ids, err)
		},
	})
}

// remoteWriteFailed keeps the optimistic state, saves the board locally and
// marks the ids for reconciliation on the next remote load.
func (s *Session) remoteWriteFailed(op string, ids []string, err error) {
	s.logger.Error("remote write failed; keeping local change", "op", op, "task_ids", strings.Join(ids, ","), "err", err)
	s.mu.Lock()
	for _, id := range ids {
		s.unsynced[id] = struct{}{}
	}
	board := s.board.Clone()
	unsynced := s.unsyncedLocked()
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.local.SaveBoard(ctx, board); err != nil {
		s.logger.Error("save local board failed", "err", err)
	}
	if err := s.local.SaveUnsynced(ctx, unsynced); err != nil {
		s.logger.Error("save unsynced ids failed", "err", err)
	}
}

// remoteWriteSucceeded refreshes state for ids an earlier write left
// unsynced. A landed insert or delete settles the id. A landed patch may not
// carry what the failed one did, so the id stays and the snapshot the next
// reconcile reads is brought up to date.
func (s *Session) remoteWriteSucceeded(op string, ids []string) {
	s.mu.Lock()
	pending := false
	for _, id := range ids {
		if _, ok := s.unsynced[id]; ok {
			pending = true
		}
	}
	if !pending {
		s.mu.Unlock()
		return
	}
	settled := op == "insert" || op == "delete"
	if settled {
		for _, id := range ids {
			delete(s.unsynced, id)
		}
	}
	board := s.board.Clone()
	unsynced := s.unsyncedLocked()
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.local.SaveBoard(ctx, board); err != nil {
		s.logger.Error("save local board failed", "err", err)
	}
	if !settled {
		return
	}
	if err := s.local.SaveUnsynced(ctx, unsynced); err != nil {
		s.logger.Error("save unsynced ids failed", "err", err)
	}
	s.logger.Info("unsynced task settled", "op", op, "task_ids", strings.Join(ids, ","))
}

// markUnsyncedLocked records ids changed while offline.
func (s *Session) markUnsyncedLocked(ctx context.Context, ids []string) {
	for _, id := range ids {
		s.unsynced[id] = struct{}{}
	}
	if err := s.local.SaveUnsynced(ctx, s.unsyncedLocked()); err != nil {
		s.logger.Error("save unsynced ids failed", "err", err)
	}
}

func (s *Session) persistLocked(ctx context.Context) error {
	if err := s.local.SaveBoard(ctx, s.board); err != nil {
		s.logger.Error("save local board failed", "err", err)
		return err
	}
	return nil
}

func (s *Session) recordActivity(ctx context.Context, message string) {
	if _, err := s.activity.Record(ctx, message); err != nil {
		s.logger.Warn("record activity failed", "err", err)
	}
}

func (s *Session) readyLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.mode == ModeLoading {
		return ErrNotLoaded
	}
	return nil
}

// todayTaskLocked finds id on today's list. A task that exists only on an
// earlier day is read-only.
func (s *Session) todayTaskLocked(id string) (domain.Task, error) {
	id = strings.TrimSpace(id)
	for _, task := range s.board[s.todayKey] {
		if task.ID == id {
			return task, nil
		}
	}
	if _, _, ok := s.board.Find(id); ok {
		return domain.Task{}, ErrReadOnlyDay
	}
	return domain.Task{}, ErrNotFound
}

func (s *Session) unsyncedLocked() []string {
	ids := make([]string, 0, len(s.unsynced))
	for id := range s.unsynced {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Session) closeFeeds(feeds []io.Closer) {
	for _, feed := range feeds {
		if err := feed.Close(); err != nil {
			s.logger.Debug("close change feed", "err", err)
		}
	}
}

func repositionMessage(prev, next domain.Task) string {
	if prev.Status != next.Status {
		return movedMessage(next)
	}
	return reorderedMessage(next)
}

func firstSortOrder(column []domain.Task) *float64 {
	if len(column) == 0 {
		return nil
	}
	first := column[0].SortOrder
	return &first
}
