// Package validators provides threshold-persistence timers: a sustained-count
// validator for detections and a sustained-low-error validator for settle
// checks. Both are safe for concurrent use.
package validators

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/timeutil"
)

// DetectionValidator counts detections inside a window that opens at the
// first detection. When a detection arrives after the window has elapsed,
// the window closes: the validator becomes valid if at least Required
// detections were seen, the count restarts and the attempt counter
// increments. The verdict holds until the next window closes.
type DetectionValidator struct {
	clock    timeutil.Clock
	required int
	window   time.Duration

	mu         sync.Mutex
	detections int
	attempts   int
	valid      bool
	start      time.Time
}

// NewDetectionValidator returns a validator requiring required detections
// per window.
func NewDetectionValidator(clock timeutil.Clock, required int, window time.Duration) *DetectionValidator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &DetectionValidator{clock: clock, required: required, window: window}
}

// RecordAndCheck records one detection and returns the current verdict.
func (v *DetectionValidator) RecordAndCheck() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.clock.Now()
	v.detections++
	if v.detections == 1 {
		v.start = now
	}
	if now.Sub(v.start) > v.window {
		v.valid = v.detections >= v.required
		v.detections = 0
		v.attempts++
	}
	return v.valid
}

// IsValid returns the verdict of the last closed window.
func (v *DetectionValidator) IsValid() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.valid
}

// Detections returns the count in the currently open window.
func (v *DetectionValidator) Detections() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.detections
}

// Attempts returns the number of windows closed since the last Reset.
func (v *DetectionValidator) Attempts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.attempts
}

// Window returns the configured window length.
func (v *DetectionValidator) Window() time.Duration { return v.window }

// Reset clears the verdict and both counters.
func (v *DetectionValidator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.valid = false
	v.detections = 0
	v.attempts = 0
}

// ErrorValidator reports whether an error signal has stayed within
// Threshold continuously for longer than Duration. Any observation outside
// the threshold restarts the timer.
type ErrorValidator struct {
	clock     timeutil.Clock
	threshold float64
	duration  time.Duration

	mu      sync.Mutex
	outside bool
	start   time.Time
}

// NewErrorValidator returns a validator that starts outside the range.
func NewErrorValidator(clock timeutil.Clock, threshold float64, duration time.Duration) *ErrorValidator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ErrorValidator{clock: clock, threshold: threshold, duration: duration, outside: true}
}

// Observe records one error sample and returns whether the error has been
// within the threshold for longer than the configured duration. NaN counts
// as outside.
func (v *ErrorValidator) Observe(err float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.clock.Now()
	if !(math.Abs(err) <= v.threshold) {
		v.outside = true
		return false
	}
	if v.outside {
		v.start = now
		v.outside = false
	}
	return now.Sub(v.start) > v.duration
}

// IsValid reports the same condition as the last Observe, evaluated against
// the current time. It is false while the last sample was outside the range.
func (v *ErrorValidator) IsValid() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.outside {
		return false
	}
	return v.clock.Since(v.start) > v.duration
}

// Reset puts the validator back outside the range.
func (v *ErrorValidator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.outside = true
}
