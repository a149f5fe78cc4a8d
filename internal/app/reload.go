package app

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/workboard/internal/domain"
)

// Reload runs a load cycle: the remote board when it answers, otherwise the
// local snapshot, with carry-over applied either way. Existing subscriptions
// are dropped first; a remote that fails here is not retried until the next
// Reload.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	feeds := s.feeds
	s.feeds = nil
	s.mode = ModeLoading
	s.mu.Unlock()
	s.closeFeeds(feeds)

	unsynced, err := s.local.LoadUnsynced(ctx)
	if err != nil {
		s.logger.Warn("unsynced ids unreadable", "err", err)
	}
	s.mu.Lock()
	s.unsynced = make(map[string]struct{}, len(unsynced))
	for _, id := range unsynced {
		s.unsynced[id] = struct{}{}
	}
	s.mu.Unlock()

	now := s.clock()
	today := domain.DateKey(now, s.loc)

	carried, online := 0, false
	if s.remote.Configured() {
		carried, online, err = s.loadRemote(ctx, now, today)
		if err != nil {
			return err
		}
	} else {
		s.logger.Info("no remote configured; using local board")
	}
	if !online {
		carried = s.loadLocal(ctx, now, today)
	}

	s.activity.Load(ctx, online)
	if online {
		s.subscribeActivities(ctx)
	}
	s.logger.Info("board loaded", "mode", s.Mode(), "today", today, "carried", carried)
	s.broker.notify()
	if carried > 0 {
		s.recordActivity(ctx, carriedMessage(carried, today))
	}
	return nil
}

// loadRemote loads the remote board and goes online. It reports online=false
// when the caller should fall back to local storage.
func (s *Session) loadRemote(ctx context.Context, now time.Time, today string) (int, bool, error) {
	// Subscribe before listing so no change between the two is lost.
	subCtx, cancel := s.callContext(ctx)
	feed, err := s.remote.SubscribeTasks(subCtx)
	cancel()
	if err != nil {
		s.logger.Warn("subscribe to task changes failed", "err", err)
		feed = nil
	}
	dropFeed := func() {
		if feed != nil {
			_ = feed.Close()
		}
	}

	listCtx, cancel := s.callContext(ctx)
	tasks, err := s.remote.ListTasks(listCtx)
	cancel()
	if err != nil {
		s.logger.Warn("remote unavailable; falling back to local board", "err", err)
		dropFeed()
		return 0, false, nil
	}

	if len(tasks) == 0 {
		tasks = SampleTasks(today, now, s.idGen)
		seedCtx, cancel := s.callContext(ctx)
		err := s.remote.InsertTasks(seedCtx, tasks...)
		cancel()
		if err != nil && !isConflict(err) {
			s.logger.Warn("seed remote board failed; falling back to local board", "err", err)
			dropFeed()
			return 0, false, nil
		}
		s.logger.Info("seeded remote board with sample data", "tasks", len(tasks))
	}
	tasks = s.reconcileUnsynced(ctx, tasks)

	all, carried := domain.CarryOver(tasks, today, now)
	board := domain.GroupByDate(all)
	if _, ok := board[today]; !ok {
		board[today] = []domain.Task{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		dropFeed()
		return 0, false, ErrClosed
	}
	s.board = board
	s.todayKey = today
	s.mode = ModeOnline
	if feed != nil {
		s.feeds = append(s.feeds, feed)
		s.group.Go(func() error {
			s.consumeTasks(feed)
			return nil
		})
	}
	s.enqueueCarriedLocked(carried)
	s.mu.Unlock()
	return len(carried), true, nil
}

// loadLocal loads the local snapshot, or sample data when it is empty or
// unreadable, and goes offline.
func (s *Session) loadLocal(ctx context.Context, now time.Time, today string) int {
	board, err := s.local.LoadBoard(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		board = nil
	case err != nil:
		s.logger.Warn("local board unreadable; starting from sample data", "err", err)
		board = nil
	}
	if board.TaskCount() == 0 {
		board = domain.GroupByDate(SampleTasks(today, now, s.idGen))
		s.logger.Info("seeded local board with sample data", "tasks", board.TaskCount())
	}
	next, carried := domain.CarryOverBoard(board, today, now)

	s.mu.Lock()
	s.board = next
	s.todayKey = today
	s.mode = ModeOffline
	_ = s.persistLocked(ctx)
	s.mu.Unlock()
	return len(carried)
}

// reconcileUnsynced pushes ids whose earlier remote write failed. The local
// snapshot is the truth for those ids: present only locally means insert,
// present in both means the newer updatedAt wins with ties going to local,
// present only remotely means the local delete never landed. Ids that settle
// leave the set.
func (s *Session) reconcileUnsynced(ctx context.Context, remote []domain.Task) []domain.Task {
	s.mu.Lock()
	ids := s.unsyncedLocked()
	s.mu.Unlock()
	if len(ids) == 0 {
		return remote
	}
	local, err := s.local.LoadBoard(ctx)
	if err != nil {
		s.logger.Warn("cannot reconcile unsynced tasks; local board unreadable", "err", err)
		return remote
	}

	index := make(map[string]int, len(remote))
	for i, task := range remote {
		index[task.ID] = i
	}
	removed := map[string]struct{}{}
	settled := make([]string, 0, len(ids))
	for _, id := range ids {
		localTask, _, inLocal := local.Find(id)
		idx, inRemote := index[id]
		callCtx, cancel := s.callContext(ctx)
		switch {
		case inLocal && !inRemote:
			err = s.remote.InsertTasks(callCtx, localTask)
			if err == nil {
				remote = append(remote, localTask)
				index[id] = len(remote) - 1
			} else if isConflict(err) {
				err = nil
			}
		case inLocal && inRemote:
			remoteTask := remote[idx]
			err = nil
			patch := domain.DiffPatch(remoteTask, localTask)
			if !patch.Empty() && !localTask.UpdatedAt.Before(remoteTask.UpdatedAt) {
				err = s.remote.UpdateTask(callCtx, id, patch)
				if err == nil {
					remote[idx] = patch.Apply(remoteTask)
				}
			}
		case inRemote:
			err = s.remote.DeleteTask(callCtx, id)
			if err == nil || errors.Is(err, ErrNotFound) {
				err = nil
				removed[id] = struct{}{}
			}
		default:
			err = nil
		}
		cancel()
		if err != nil {
			s.logger.Warn("reconcile unsynced task failed", "task_id", id, "err", err)
			continue
		}
		settled = append(settled, id)
	}

	s.mu.Lock()
	for _, id := range settled {
		delete(s.unsynced, id)
	}
	pending := s.unsyncedLocked()
	s.mu.Unlock()
	if err := s.local.SaveUnsynced(ctx, pending); err != nil {
		s.logger.Error("save unsynced ids failed", "err", err)
	}
	s.logger.Info("reconciled unsynced tasks", "settled", len(settled), "pending", len(pending))

	if len(removed) == 0 {
		return remote
	}
	out := make([]domain.Task, 0, len(remote))
	for _, task := range remote {
		if _, ok := removed[task.ID]; !ok {
			out = append(out, task)
		}
	}
	return out
}

// consumeTasks merges remote task changes until the feed closes.
func (s *Session) consumeTasks(feed TaskFeed) {
	for ev := range feed.Events() {
		s.applyRemoteChange(ev)
	}
	s.logger.Debug("task feed closed")
}

// applyRemoteChange merges one change-feed event into the online board.
func (s *Session) applyRemoteChange(ev domain.ChangeEvent) bool {
	s.mu.Lock()
	if s.mode != ModeOnline {
		s.mu.Unlock()
		return false
	}
	next, changed := s.board.ApplyChange(ev)
	if changed {
		s.board = next
	}
	s.mu.Unlock()
	if changed {
		s.logger.Debug("applied remote change", "kind", string(ev.Kind), "task_id", ev.Task.ID)
		s.broker.notify()
	}
	return changed
}

// subscribeActivities follows remote activity inserts while online.
func (s *Session) subscribeActivities(ctx context.Context) {
	subCtx, cancel := s.callContext(ctx)
	feed, err := s.remote.SubscribeActivities(subCtx)
	cancel()
	if err != nil {
		s.logger.Warn("subscribe to activity feed failed", "err", err)
		return
	}
	s.mu.Lock()
	if s.closed || s.mode != ModeOnline {
		s.mu.Unlock()
		_ = feed.Close()
		return
	}
	s.feeds = append(s.feeds, feed)
	s.group.Go(func() error {
		for ev := range feed.Events() {
			if s.activity.apply(ev) {
				s.broker.notify()
			}
		}
		return nil
	})
	s.mu.Unlock()
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
