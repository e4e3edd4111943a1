package midiport

import (
	"context"
	"sync"
)

// hub fans messages out to subscribers. publish never blocks: each
// subscriber owns an unbounded queue drained by its own goroutine.
type hub[T any] struct {
	mu     sync.Mutex
	subs   map[*queue[T]]struct{}
	closed bool
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[*queue[T]]struct{})}
}

func (h *hub[T]) subscribe(ctx context.Context) (<-chan T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrNotConnected
	}
	q := newQueue[T]()
	h.subs[q] = struct{}{}
	go q.run(ctx, func() { h.remove(q) })
	return q.out, nil
}

func (h *hub[T]) remove(q *queue[T]) {
	h.mu.Lock()
	delete(h.subs, q)
	h.mu.Unlock()
}

func (h *hub[T]) publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for q := range h.subs {
		q.push(v)
	}
}

// close lets every subscriber drain what it already has, then closes it.
func (h *hub[T]) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for q := range h.subs {
		q.finish()
	}
}

func (h *hub[T]) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	closing bool
	wake    chan struct{}
	out     chan T
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
	}
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) finish() {
	q.mu.Lock()
	q.closing = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue[T]) run(ctx context.Context, done func()) {
	defer close(q.out)
	defer done()
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closing := q.closing
			q.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		v := q.items[0]
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- v:
		case <-ctx.Done():
			return
		}
	}
}
