package service

import (
	"context"
	"sync"
)

// broadcaster is a single-producer, multi-subscriber stream. Every subscriber
// receives every published value in order; values are queued per subscriber
// and never coalesced, so a slow reader never blocks the publisher.
type broadcaster[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscriber[T]
}

type subscriber[T any] struct {
	mu    sync.Mutex
	queue []T
	wake  chan struct{}
	out   chan T
}

func newBroadcaster[T any]() *broadcaster[T] {
	return &broadcaster[T]{subs: make(map[uint64]*subscriber[T])}
}

// subscribe registers a subscriber whose first value is initial. The returned
// channel is closed once ctx is done.
func (b *broadcaster[T]) subscribe(ctx context.Context, initial T) <-chan T {
	s := &subscriber[T]{
		queue: []T{initial},
		wake:  make(chan struct{}, 1),
		out:   make(chan T),
	}
	s.wake <- struct{}{}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = s
	b.mu.Unlock()

	go s.pump(ctx, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	})
	return s.out
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.push(v)
	}
}

func (b *broadcaster[T]) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) pump(ctx context.Context, done func()) {
	defer close(s.out)
	defer done()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-ctx.Done():
			return
		}
	}
}
