package commands

import "fmt"

// Topic names the downstream channel a message is sent on.
type Topic string

const (
	TopicRoll       Topic = "command/roll"
	TopicPitch      Topic = "command/pitch"
	TopicYaw        Topic = "command/yaw"
	TopicMoment     Topic = "command/moment"
	TopicForceX     Topic = "command/force_x"
	TopicForceY     Topic = "command/force_y"
	TopicForceZ     Topic = "command/force_z"
	TopicDepth      Topic = "command/depth"
	TopicReset      Topic = "controls/reset"
	TopicPlane      Topic = "command/plane"
	TopicPneumatics Topic = "command/pneumatics"
)

// AttitudeMode tells the attitude controller how to interpret Value.
type AttitudeMode string

const (
	ModePosition AttitudeMode = "POSITION"
	ModeMoment   AttitudeMode = "MOMENT"
)

// AttitudeCommand is the per-axis attitude message.
type AttitudeCommand struct {
	Value float64      `json:"value"`
	Mode  AttitudeMode `json:"mode"`
}

// Vector3 is a three-axis effort.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scalar is a single-axis effort.
type Scalar struct {
	Data float64 `json:"data"`
}

// DepthCommand is the depth controller message.
type DepthCommand struct {
	Depth  float64 `json:"depth"`
	Active bool    `json:"active"`
}

// PlaneIndicator reports the alignment plane as 0 or 1.
type PlaneIndicator struct {
	Data int8 `json:"data"`
}

// PneumaticsCommand is the wire form of Pneumatics.
type PneumaticsCommand struct {
	TorpedoPort   bool `json:"torpedo_port"`
	TorpedoStbd   bool `json:"torpedo_stbd"`
	Manipulator   bool `json:"manipulator"`
	MarkerDropper bool `json:"markerdropper"`
	DurationMs    int  `json:"duration"`
}

// Message is one outbound wire message.
type Message struct {
	Topic   Topic `json:"topic"`
	Payload any   `json:"payload"`
}

// Expand turns a cycle into wire messages in publish order: disable
// broadcasts, reset, attitude group, horizontal forces, depth group, plane,
// pneumatics.
func Expand(c Cycle) ([]Message, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, 12)
	if c.ReleaseAttitude {
		released := AttitudeCommand{Value: 0, Mode: ModeMoment}
		msgs = append(msgs,
			Message{TopicRoll, released},
			Message{TopicPitch, released},
			Message{TopicYaw, released},
		)
	}
	if c.ReleaseDepth {
		msgs = append(msgs, Message{TopicDepth, DepthCommand{Depth: 0, Active: false}})
	}
	if c.Reset != nil {
		msgs = append(msgs, Message{TopicReset, *c.Reset})
	}

	switch a := c.Attitude.(type) {
	case AttitudeSetpoint:
		msgs = append(msgs,
			Message{TopicRoll, AttitudeCommand{Value: a.Roll, Mode: ModePosition}},
			Message{TopicPitch, AttitudeCommand{Value: a.Pitch, Mode: ModePosition}},
			Message{TopicYaw, AttitudeCommand{Value: a.Yaw, Mode: ModePosition}},
		)
	case RawMoment:
		msgs = append(msgs, Message{TopicMoment, Vector3{X: a.X, Y: a.Y, Z: a.Z}})
	default:
		return nil, fmt.Errorf("unhandled attitude output %T", c.Attitude)
	}

	msgs = append(msgs,
		Message{TopicForceX, Scalar{Data: c.Linear.X}},
		Message{TopicForceY, Scalar{Data: c.Linear.Y}},
	)

	switch d := c.Depth.(type) {
	case DepthSetpoint:
		msgs = append(msgs, Message{TopicDepth, DepthCommand{Depth: d.Depth, Active: true}})
	case RawVerticalForce:
		msgs = append(msgs, Message{TopicForceZ, Scalar{Data: d.Z}})
	default:
		return nil, fmt.Errorf("unhandled depth output %T", c.Depth)
	}

	msgs = append(msgs, Message{TopicPlane, PlaneIndicator{Data: int8(c.Plane)}})

	if c.Pneumatics != nil {
		p := c.Pneumatics
		msgs = append(msgs, Message{TopicPneumatics, PneumaticsCommand{
			TorpedoPort:   p.TorpedoPort,
			TorpedoStbd:   p.TorpedoStbd,
			Manipulator:   p.Manipulator,
			MarkerDropper: p.MarkerDropper,
			DurationMs:    int(p.Duration.Milliseconds()),
		}})
	}
	return msgs, nil
}
