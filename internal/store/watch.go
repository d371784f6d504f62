package store

import (
	"sync"
)

// mailbox holds at most one undelivered value. put replaces any pending
// value, so the consumer always receives the newest one.
type mailbox[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ch: make(chan T, 1)}
}

func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case <-m.ch:
	default:
	}
	m.ch <- v
}

func (m *mailbox[T]) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

// Watch is a live subscription to one document. Snapshots arrive on
// Events until Close is called, after which the channel is closed.
type Watch[T any] struct {
	box     *mailbox[T]
	release func() error
	once    sync.Once
	err     error
}

// NewWatch creates a watch. release is called once by Close, before the
// channel is closed. Store implementations outside this package build
// their watches with NewWatch and Deliver.
func NewWatch[T any](release func() error) *Watch[T] {
	return &Watch[T]{box: newMailbox[T](), release: release}
}

// Events returns the snapshot channel.
func (w *Watch[T]) Events() <-chan T {
	return w.box.ch
}

// Close stops delivery and releases the underlying subscription.
// It is safe to call more than once.
func (w *Watch[T]) Close() error {
	w.once.Do(func() {
		if w.release != nil {
			w.err = w.release()
		}
		w.box.close()
	})
	return w.err
}

// Deliver hands v to the consumer, replacing any undelivered snapshot.
// It does nothing after Close.
func (w *Watch[T]) Deliver(v T) {
	w.box.put(v)
}
