package app

import "sync"

// changeBroker fans board-changed signals out to watchers. Signals coalesce:
// a slow watcher sees one pending signal, not a backlog.
type changeBroker struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newChangeBroker() *changeBroker {
	return &changeBroker{subs: make(map[chan struct{}]struct{})}
}

func (b *changeBroker) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *changeBroker) unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *changeBroker) notify() {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

// Watch returns a channel signalled after every board or activity change,
// and a func that stops the subscription.
func (s *Session) Watch() (<-chan struct{}, func()) {
	ch := s.broker.subscribe()
	var once sync.Once
	return ch, func() {
		once.Do(func() { s.broker.unsubscribe(ch) })
	}
}
