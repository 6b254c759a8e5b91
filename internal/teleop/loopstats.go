package teleop

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const loopStatsWindow = 256

// LoopSummary describes recent tick intervals in milliseconds.
type LoopSummary struct {
	Samples  int     `json:"samples"`
	TargetMs float64 `json:"target_ms"`
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	MaxMs    float64 `json:"max_ms"`
	Overruns uint64  `json:"overruns"`
}

// LoopStats keeps a ring of the most recent tick intervals. A tick that
// arrives later than twice the target period counts as an overrun.
type LoopStats struct {
	mu       sync.Mutex
	target   time.Duration
	last     time.Time
	ring     [loopStatsWindow]float64
	n        int
	next     int
	overruns uint64
}

// NewLoopStats returns stats for a loop with the given period.
func NewLoopStats(target time.Duration) *LoopStats {
	return &LoopStats{target: target}
}

// Observe records a tick at t.
func (s *LoopStats) Observe(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() {
		d := t.Sub(s.last)
		if s.target > 0 && d > 2*s.target {
			s.overruns++
		}
		s.ring[s.next] = float64(d) / float64(time.Millisecond)
		s.next = (s.next + 1) % loopStatsWindow
		if s.n < loopStatsWindow {
			s.n++
		}
	}
	s.last = t
}

// Summary computes the interval statistics over the window.
func (s *LoopStats) Summary() LoopSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := LoopSummary{
		Samples:  s.n,
		TargetMs: float64(s.target) / float64(time.Millisecond),
		Overruns: s.overruns,
	}
	if s.n == 0 {
		return out
	}
	samples := s.ring[:s.n]
	if s.n > 1 {
		out.MeanMs, out.StdDevMs = stat.MeanStdDev(samples, nil)
	} else {
		out.MeanMs = stat.Mean(samples, nil)
	}
	for _, v := range samples {
		if v > out.MaxMs {
			out.MaxMs = v
		}
	}
	return out
}
