package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evanschultz/workboard/internal/domain"
)

// Activity message builders.
func addedMessage(t domain.Task) string {
	return fmt.Sprintf("%s added %q", t.Person, t.Title)
}

func movedMessage(t domain.Task) string {
	return fmt.Sprintf("%s moved %q to %s", t.Person, t.Title, t.Status.Label())
}

func editedMessage(t domain.Task) string {
	return fmt.Sprintf("%s edited %q", t.Person, t.Title)
}

func priorityMessage(t domain.Task) string {
	return fmt.Sprintf("%s set %q priority to %s", t.Person, t.Title, t.Priority)
}

func reorderedMessage(t domain.Task) string {
	return fmt.Sprintf("%s reordered %q", t.Person, t.Title)
}

func deletedMessage(t domain.Task) string {
	return fmt.Sprintf("%s deleted %q", t.Person, t.Title)
}

func carriedMessage(n int, dayKey string) string {
	return fmt.Sprintf("Carried %d unfinished task(s) into %s", n, domain.DateLabel(dayKey))
}

// ActivityLog keeps the single most recent activity with the same
// remote/local duality as the board.
type ActivityLog struct {
	local   LocalStore
	remote  ActivitySource
	idGen   IDGenerator
	clock   Clock
	logger  Logger
	timeout time.Duration
	enqueue func(writeJob)
	notify  func()

	mu     sync.Mutex
	last   domain.Activity
	has    bool
	online bool
}

func newActivityLog(s *Session) *ActivityLog {
	return &ActivityLog{
		local:   s.local,
		remote:  s.remote,
		idGen:   s.idGen,
		clock:   s.clock,
		logger:  s.logger,
		timeout: s.timeout,
		enqueue: s.enqueue,
		notify:  s.broker.notify,
	}
}

// Load reads the newest record, remote first when online, else local.
func (l *ActivityLog) Load(ctx context.Context, online bool) {
	l.mu.Lock()
	l.online = online
	l.mu.Unlock()

	if online {
		callCtx, cancel := context.WithTimeout(ctx, l.timeout)
		activity, err := l.remote.LatestActivity(callCtx)
		cancel()
		switch {
		case err == nil:
			l.set(activity)
			return
		case errors.Is(err, ErrNotFound):
		default:
			l.logger.Warn("load remote activity failed; using local", "err", err)
		}
	}
	activity, err := l.local.LoadActivity(ctx)
	switch {
	case err == nil:
		l.set(activity)
	case errors.Is(err, ErrNotFound):
	default:
		l.logger.Warn("local activity unreadable", "err", err)
	}
}

func (l *ActivityLog) set(activity domain.Activity) {
	l.mu.Lock()
	l.last, l.has = activity, true
	l.mu.Unlock()
}

// Last returns the most recent activity, if any.
func (l *ActivityLog) Last() (domain.Activity, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.has
}

// Record sets message as the last activity. Online it is written to the
// remote in the background and saved locally if that fails; offline it is
// saved locally straight away.
func (l *ActivityLog) Record(ctx context.Context, message string) (domain.Activity, error) {
	activity, err := domain.NewActivity(l.idGen(), message, l.clock())
	if err != nil {
		return domain.Activity{}, err
	}
	l.mu.Lock()
	l.last, l.has = activity, true
	online := l.online
	l.mu.Unlock()
	l.notify()

	if !online {
		if err := l.local.SaveActivity(ctx, activity); err != nil {
			l.logger.Error("save activity locally failed", "err", err)
			return activity, fmt.Errorf("save activity: %w", err)
		}
		return activity, nil
	}
	l.enqueue(writeJob{
		op: "insert_activity",
		run: func(ctx context.Context) error {
			return l.remote.InsertActivity(ctx, activity)
		},
		onError: func(err error) {
			l.logger.Error("remote activity write failed; saving locally", "err", err)
			if serr := l.local.SaveActivity(context.Background(), activity); serr != nil {
				l.logger.Error("save activity locally failed", "err", serr)
			}
		},
	})
	return activity, nil
}

// apply merges a remote activity, keeping whichever is newer.
func (l *ActivityLog) apply(ev domain.ActivityEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.has && !ev.Activity.NewerThan(l.last) {
		return false
	}
	l.last, l.has = ev.Activity, true
	return true
}
