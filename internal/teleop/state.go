package teleop

import (
	"fmt"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/commands"
)

// State is the arm/disarm state.
type State int

const (
	StateReset State = iota
	StateArmed
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "RESET"
	case StateArmed:
		return "ARMED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Orientation is the measured attitude in degrees.
type Orientation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// TransitionKind names a state change made by a button edge or by boot.
type TransitionKind string

const (
	TransitionBoot          TransitionKind = "boot"
	TransitionArm           TransitionKind = "arm"
	TransitionDisarm        TransitionKind = "disarm"
	TransitionAttitudeTrust TransitionKind = "attitude_trust"
	TransitionDepthTrust    TransitionKind = "depth_trust"
	TransitionDepthStart    TransitionKind = "depth_start"
	TransitionPlane         TransitionKind = "plane"
	TransitionPneumatics    TransitionKind = "pneumatics"
)

// Transition records one state change. Enabled carries the new value for
// toggles; it is true for arm and depth start and false for disarm and boot.
type Transition struct {
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Kind    TransitionKind `json:"kind"`
	Enabled bool           `json:"enabled"`
}

// Setpoint is the integrator state.
type Setpoint struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Depth float64 `json:"depth"`
}

// TriggerState reports one calibration gate.
type TriggerState struct {
	Initialized bool    `json:"initialized"`
	Value       float64 `json:"value"`
}

// ControllerState is a point-in-time copy of the controller, taken after a
// tick.
type ControllerState struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`

	State           State                   `json:"state"`
	AttitudeTrusted bool                    `json:"attitude_trusted"`
	DepthTrusted    bool                    `json:"depth_trusted"`
	DepthArmed      bool                    `json:"depth_armed"`
	Plane           commands.AlignmentPlane `json:"plane"`

	Setpoint      Setpoint             `json:"setpoint"`
	MeasuredDepth float64              `json:"measured_depth"`
	Measured      Orientation          `json:"measured"`
	Moment        commands.RawMoment   `json:"moment"`
	ForceZ        float64              `json:"force_z"`
	Linear        commands.LinearForce `json:"linear"`

	Descend TriggerState `json:"descend"`
	Ascend  TriggerState `json:"ascend"`
}
