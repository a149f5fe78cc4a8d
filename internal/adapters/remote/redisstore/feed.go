package redisstore

import (
	"sync"

	"github.com/redis/go-redis/v9"
)

// feed adapts a pub/sub subscription into a typed event channel.
type feed[T any] struct {
	sub    *redis.PubSub
	events chan T
	done   chan struct{}
	once   sync.Once
}

func newFeed[T any](sub *redis.PubSub, decode func([]byte) (T, error)) *feed[T] {
	f := &feed[T]{
		sub:    sub,
		events: make(chan T, 64),
		done:   make(chan struct{}),
	}
	go f.run(decode)
	return f
}

func (f *feed[T]) run(decode func([]byte) (T, error)) {
	defer close(f.events)
	ch := f.sub.Channel()
	for {
		select {
		case <-f.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := decode([]byte(msg.Payload))
			if err != nil {
				// Foreign or malformed payloads are not ours to act on.
				continue
			}
			select {
			case f.events <- ev:
			case <-f.done:
				return
			}
		}
	}
}

// Events returns the event stream. It is closed after Close or when the
// subscription drops.
func (f *feed[T]) Events() <-chan T {
	return f.events
}

// Close unsubscribes. It is safe to call more than once.
func (f *feed[T]) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.sub.Close()
	})
	return err
}
