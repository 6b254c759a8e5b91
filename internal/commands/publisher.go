package commands

import (
	"context"
	"errors"
	"sync"
)

// Publisher delivers cycles downstream. Implementations must not retain the
// cycle's pointer fields beyond the call.
type Publisher interface {
	Publish(ctx context.Context, c Cycle) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, c Cycle) error

func (f PublisherFunc) Publish(ctx context.Context, c Cycle) error { return f(ctx, c) }

// Fanout publishes each cycle to every member and joins their errors. A
// failing member does not stop delivery to the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, c Cycle) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every published cycle in memory.
type Recorder struct {
	mu     sync.Mutex
	cycles []Cycle
}

func (r *Recorder) Publish(_ context.Context, c Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, c)
	return nil
}

// Cycles returns a copy of the recorded cycles.
func (r *Recorder) Cycles() []Cycle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cycle(nil), r.cycles...)
}

// Len returns the number of recorded cycles.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cycles)
}
