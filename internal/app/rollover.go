package app

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ResolveID expands a unique prefix of one of today's task ids. An exact
// match always wins.
func (s *Session) ResolveID(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return "", err
	}
	today := s.board[s.todayKey]
	for _, task := range today {
		if task.ID == prefix {
			return task.ID, nil
		}
	}
	match := ""
	for _, task := range today {
		if !strings.HasPrefix(task.ID, prefix) {
			continue
		}
		if match != "" {
			return "", ErrAmbiguousID
		}
		match = task.ID
	}
	if match == "" {
		if _, _, ok := s.board.Find(prefix); ok {
			return "", ErrReadOnlyDay
		}
		return "", ErrNotFound
	}
	return match, nil
}

// RunRollover calls Rollover every interval until ctx ends, so a long-lived
// session picks up the new day shortly after midnight.
func (s *Session) RunRollover(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Rollover(ctx); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				s.logger.Warn("rollover failed", "err", err)
			}
		}
	}
}
