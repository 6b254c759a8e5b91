package serialmux

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

// Router decodes bridge lines and forwards inputs to the controller. Status
// lines update the last reported device state.
type Router struct {
	sink teleop.InputSink

	mu       sync.Mutex
	device   map[string]any
	counts   map[teleop.InboundKind]uint64
	rejected uint64
}

// NewRouter returns a Router delivering to sink.
func NewRouter(sink teleop.InputSink) *Router {
	return &Router{
		sink:   sink,
		device: make(map[string]any),
		counts: make(map[teleop.InboundKind]uint64),
	}
}

// HandleEvent processes one line.
func (r *Router) HandleEvent(payload string) error {
	kind, err := teleop.Dispatch([]byte(payload), r.sink)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[kind]++
	if err != nil {
		r.rejected++
		return err
	}
	if kind == teleop.KindStatus {
		return r.handleStatusLocked(payload)
	}
	return nil
}

func (r *Router) handleStatusLocked(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return err
	}
	delete(values, "type")
	for k, v := range values {
		r.device[k] = v
	}
	logf("bridge status: %s", payload)
	return nil
}

// Run subscribes to m and handles lines until ctx is done or the mux closes.
// Undecodable lines are logged and skipped.
func (r *Router) Run(ctx context.Context, m SerialMuxInterface) error {
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := r.HandleEvent(line); err != nil {
				if errors.Is(err, teleop.ErrUnknownMessage) {
					logf("ignoring line: %q", line)
				} else {
					logf("bad line %q: %v", line, err)
				}
			}
		}
	}
}

// DeviceState returns a copy of the fields reported in bridge status lines.
func (r *Router) DeviceState() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.device))
	for k, v := range r.device {
		out[k] = v
	}
	return out
}

// Counts returns the number of lines seen per kind and the number rejected.
func (r *Router) Counts() (map[teleop.InboundKind]uint64, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[teleop.InboundKind]uint64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out, r.rejected
}
