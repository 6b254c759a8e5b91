package stream

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/subsea-teleop/internal/commands"
)

// CycleToStruct renders a cycle as a protobuf Struct.
func CycleToStruct(c commands.Cycle) (*structpb.Struct, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m := map[string]interface{}{
		"seq":              float64(c.Seq),
		"time":             c.Time.UTC().Format(time.RFC3339Nano),
		"plane":            c.Plane.String(),
		"release_attitude": c.ReleaseAttitude,
		"release_depth":    c.ReleaseDepth,
		"linear": map[string]interface{}{
			"x": c.Linear.X,
			"y": c.Linear.Y,
		},
	}

	switch a := c.Attitude.(type) {
	case commands.AttitudeSetpoint:
		m["attitude"] = map[string]interface{}{
			"mode":  string(commands.ModePosition),
			"roll":  a.Roll,
			"pitch": a.Pitch,
			"yaw":   a.Yaw,
		}
	case commands.RawMoment:
		m["attitude"] = map[string]interface{}{
			"mode": string(commands.ModeMoment),
			"x":    a.X,
			"y":    a.Y,
			"z":    a.Z,
		}
	default:
		return nil, fmt.Errorf("unhandled attitude output %T", c.Attitude)
	}

	switch d := c.Depth.(type) {
	case commands.DepthSetpoint:
		m["depth"] = map[string]interface{}{"active": true, "depth": d.Depth}
	case commands.RawVerticalForce:
		m["depth"] = map[string]interface{}{"active": false, "force_z": d.Z}
	default:
		return nil, fmt.Errorf("unhandled depth output %T", c.Depth)
	}

	if c.Reset != nil {
		m["reset_pwm"] = c.Reset.ResetPWM
	}
	if p := c.Pneumatics; p != nil {
		m["pneumatics"] = map[string]interface{}{
			"torpedo_port":  p.TorpedoPort,
			"torpedo_stbd":  p.TorpedoStbd,
			"manipulator":   p.Manipulator,
			"markerdropper": p.MarkerDropper,
			"duration":      float64(p.Duration.Milliseconds()),
		}
	}
	return structpb.NewStruct(m)
}
