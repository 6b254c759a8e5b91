// Package joystick models the gamepad input consumed by the teleop
// controller: polling frames, the PS3 control layout, trigger calibration and
// button edge detection.
package joystick

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrShortFrame is returned when a frame carries fewer controls than the
// layout requires.
var ErrShortFrame = errors.New("frame shorter than controller layout")

// Frame is one polling snapshot of the gamepad.
type Frame struct {
	Buttons []int     `json:"buttons"`
	Axes    []float64 `json:"axes"`
	Stamp   time.Time `json:"stamp,omitempty"`
}

// Pressed reports whether b is held. Out-of-range buttons read as released.
func (f Frame) Pressed(b Button) bool {
	if b < 0 || int(b) >= len(f.Buttons) {
		return false
	}
	return f.Buttons[b] != 0
}

// Held returns 1 when b is held and 0 otherwise, for use as a multiplier.
func (f Frame) Held(b Button) float64 {
	if f.Pressed(b) {
		return 1
	}
	return 0
}

// Axis returns the raw value of a, or 0 when the frame does not carry it.
func (f Frame) Axis(a Axis) float64 {
	if a < 0 || int(a) >= len(f.Axes) {
		return 0
	}
	return f.Axes[a]
}

// Validate checks the frame against the layout.
func (f Frame) Validate() error {
	if len(f.Buttons) < NumButtons {
		return fmt.Errorf("%w: %d buttons, need %d", ErrShortFrame, len(f.Buttons), NumButtons)
	}
	if len(f.Axes) < NumAxes {
		return fmt.Errorf("%w: %d axes, need %d", ErrShortFrame, len(f.Axes), NumAxes)
	}
	return nil
}

// Neutral returns a full-size frame with every control at rest, sticks
// centred and triggers at their manufacturer rest value of 1.
func Neutral() Frame {
	f := Frame{
		Buttons: make([]int, NumButtons),
		Axes:    make([]float64, NumAxes),
	}
	f.Axes[AxisRearL2] = 1
	f.Axes[AxisRearR2] = 1
	return f
}

// With returns a copy of f with the given buttons held.
func (f Frame) With(buttons ...Button) Frame {
	out := f.clone()
	for _, b := range buttons {
		if int(b) < len(out.Buttons) {
			out.Buttons[b] = 1
		}
	}
	return out
}

// WithAxis returns a copy of f with axis a set to v.
func (f Frame) WithAxis(a Axis, v float64) Frame {
	out := f.clone()
	if int(a) < len(out.Axes) {
		out.Axes[a] = v
	}
	return out
}

func (f Frame) clone() Frame {
	return Frame{
		Buttons: append([]int(nil), f.Buttons...),
		Axes:    append([]float64(nil), f.Axes...),
		Stamp:   f.Stamp,
	}
}

// ParseFrame decodes a JSON frame of the form
// {"buttons":[0,1,...],"axes":[0.0,...]} and validates it.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}
