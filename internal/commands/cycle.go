// Package commands defines what the controller emits each tick and how it is
// expanded into wire messages at the publish boundary.
//
// The closed-loop and open-loop forms of each axis group are sum types
// (AttitudeOutput, DepthOutput). A Cycle holds exactly one value of each, so
// a setpoint and a raw effort for the same group can never be emitted
// together.
package commands

import (
	"errors"
	"fmt"
	"time"
)

// ErrIncompleteCycle is returned when a cycle lacks an attitude or depth
// output.
var ErrIncompleteCycle = errors.New("cycle missing attitude or depth output")

// AttitudeOutput is either AttitudeSetpoint or RawMoment.
type AttitudeOutput interface {
	isAttitudeOutput()
}

// AttitudeSetpoint is the closed-loop attitude target in degrees.
type AttitudeSetpoint struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// RawMoment is an open-loop moment command about the body axes.
type RawMoment struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (AttitudeSetpoint) isAttitudeOutput() {}
func (RawMoment) isAttitudeOutput()        {}

// DepthOutput is either DepthSetpoint or RawVerticalForce.
type DepthOutput interface {
	isDepthOutput()
}

// DepthSetpoint is the closed-loop depth target in meters. It is always
// published as active.
type DepthSetpoint struct {
	Depth float64 `json:"depth"`
}

// RawVerticalForce is an open-loop heave force.
type RawVerticalForce struct {
	Z float64 `json:"z"`
}

func (DepthSetpoint) isDepthOutput()    {}
func (RawVerticalForce) isDepthOutput() {}

// AlignmentPlane selects the reference plane reported to downstream
// consumers.
type AlignmentPlane int8

const (
	PlaneXY AlignmentPlane = 0
	PlaneYZ AlignmentPlane = 1
)

// Toggle returns the other plane.
func (p AlignmentPlane) Toggle() AlignmentPlane {
	if p == PlaneYZ {
		return PlaneXY
	}
	return PlaneYZ
}

func (p AlignmentPlane) String() string {
	if p == PlaneYZ {
		return "YZ"
	}
	return "XY"
}

// LinearForce holds the surge (X, forward positive) and sway (Y, left
// positive) forces. They are direct stick mappings and emitted every cycle.
type LinearForce struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Reset is the edge-triggered actuator reset sent on arm/disarm.
type Reset struct {
	ResetPWM bool `json:"reset_pwm"`
}

// Pneumatics is an edge-triggered, self-expiring actuator command.
type Pneumatics struct {
	TorpedoPort   bool          `json:"torpedo_port"`
	TorpedoStbd   bool          `json:"torpedo_stbd"`
	Manipulator   bool          `json:"manipulator"`
	MarkerDropper bool          `json:"markerdropper"`
	Duration      time.Duration `json:"-"`
}

// Any reports whether any actuator is requested.
func (p Pneumatics) Any() bool {
	return p.TorpedoPort || p.TorpedoStbd || p.Manipulator || p.MarkerDropper
}

// Cycle is everything the controller emits on one tick.
type Cycle struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`

	// Reset is set on the tick of an arm or disarm transition.
	Reset *Reset `json:"reset,omitempty"`

	// ReleaseAttitude and ReleaseDepth carry the one-shot disable broadcast
	// for an assist that just became untrusted or was disarmed.
	ReleaseAttitude bool `json:"release_attitude,omitempty"`
	ReleaseDepth    bool `json:"release_depth,omitempty"`

	Attitude AttitudeOutput `json:"-"`
	Depth    DepthOutput    `json:"-"`
	Linear   LinearForce    `json:"linear"`
	Plane    AlignmentPlane `json:"plane"`

	Pneumatics *Pneumatics `json:"pneumatics,omitempty"`
}

// Validate checks that both axis-group outputs are present and of a known
// variant.
func (c Cycle) Validate() error {
	switch c.Attitude.(type) {
	case AttitudeSetpoint, RawMoment:
	case nil:
		return fmt.Errorf("%w: no attitude output", ErrIncompleteCycle)
	default:
		return fmt.Errorf("unknown attitude output %T", c.Attitude)
	}
	switch c.Depth.(type) {
	case DepthSetpoint, RawVerticalForce:
	case nil:
		return fmt.Errorf("%w: no depth output", ErrIncompleteCycle)
	default:
		return fmt.Errorf("unknown depth output %T", c.Depth)
	}
	return nil
}

// ClosedLoopAttitude reports whether the attitude output is a setpoint.
func (c Cycle) ClosedLoopAttitude() bool {
	_, ok := c.Attitude.(AttitudeSetpoint)
	return ok
}

// ClosedLoopDepth reports whether the depth output is a setpoint.
func (c Cycle) ClosedLoopDepth() bool {
	_, ok := c.Depth.(DepthSetpoint)
	return ok
}
