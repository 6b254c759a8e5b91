package teleop

import "sync/atomic"

// Mailbox holds at most one pending value. Put never blocks: a newer value
// replaces an unread older one, which is counted as dropped.
type Mailbox[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// NewMailbox returns an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Put stores v, discarding any value that has not been read yet.
func (m *Mailbox[T]) Put(v T) {
	for {
		select {
		case m.ch <- v:
			return
		default:
		}
		select {
		case <-m.ch:
			m.dropped.Add(1)
		default:
		}
	}
}

// TryTake returns the pending value, if any.
func (m *Mailbox[T]) TryTake() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Dropped returns the number of values overwritten before they were read.
func (m *Mailbox[T]) Dropped() uint64 { return m.dropped.Load() }
