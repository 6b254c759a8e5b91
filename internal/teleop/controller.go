package teleop

import (
	"math"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/commands"
	"github.com/banshee-data/subsea-teleop/internal/config"
	"github.com/banshee-data/subsea-teleop/internal/joystick"
	"github.com/banshee-data/subsea-teleop/internal/monitoring"
	"github.com/banshee-data/subsea-teleop/internal/units"
)

var logf = monitoring.Component("teleop")

// Controller is the command-synthesis state machine. It starts in
// StateReset; the first Tick emits the boot disable broadcast.
type Controller struct {
	cfg config.ControllerConfig

	seq    uint64
	booted bool
	state  State

	attitudeTrusted bool
	depthTrusted    bool
	depthArmed      bool
	plane           commands.AlignmentPlane

	// A release latch is set when the disable broadcast for that assist has
	// been emitted and cleared on the first armed tick it is trusted again.
	attitudeReleased bool
	depthReleased    bool

	frame    joystick.Frame
	hasFrame bool
	edges    joystick.EdgeDetector
	descend  *joystick.TriggerGate
	ascend   *joystick.TriggerGate

	measuredDepth float64
	measured      Orientation

	setpoint Setpoint
	moment   commands.RawMoment
	forceZ   float64
	linear   commands.LinearForce

	pendingPneumatics *commands.Pneumatics

	lastTime    time.Time
	transitions []Transition
}

// NewController returns a controller in StateReset with assist trust taken
// from cfg.
func NewController(cfg config.ControllerConfig) *Controller {
	return &Controller{
		cfg:             cfg,
		state:           StateReset,
		attitudeTrusted: cfg.EnableAttitude,
		depthTrusted:    cfg.EnableDepth,
		plane:           commands.PlaneYZ,
		descend:         joystick.NewTriggerGate(cfg.TriggerRestValue),
		ascend:          joystick.NewTriggerGate(cfg.TriggerRestValue),
	}
}

// SetFrame replaces the cached gamepad frame.
func (c *Controller) SetFrame(f joystick.Frame) {
	c.frame = f
	c.hasFrame = true
}

// SetDepth replaces the cached measured depth in meters.
func (c *Controller) SetDepth(d float64) { c.measuredDepth = d }

// SetOrientation replaces the cached measured attitude.
func (c *Controller) SetOrientation(o Orientation) { c.measured = o }

// State returns the arm/disarm state.
func (c *Controller) State() State { return c.state }

// Tick runs one cycle against the latest cached inputs. It returns false
// when nothing is to be published, which is every tick spent in StateReset
// after the one that entered it.
func (c *Controller) Tick(now time.Time) (commands.Cycle, bool) {
	c.seq++
	c.lastTime = now

	var f joystick.Frame
	var edges joystick.ButtonSet
	if c.hasFrame {
		f = c.frame
		edges = c.edges.Update(f)
		c.descend.Update(f.Axis(joystick.AxisDescend))
		c.ascend.Update(f.Axis(joystick.AxisAscend))
	}

	c.linear = commands.LinearForce{
		X: f.Axis(joystick.AxisRightStickUD) * c.cfg.MaxXForce,
		Y: -f.Axis(joystick.AxisRightStickLR) * c.cfg.MaxYForce,
	}

	if !c.booted {
		c.booted = true
		c.record(TransitionBoot, false)
		return c.disarm(), true
	}

	switch c.state {
	case StateReset:
		if !edges.Has(joystick.ButtonArm) {
			return commands.Cycle{}, false
		}
		c.arm()
		cyc := c.armedCycle(f, 0, false)
		cyc.Reset = &commands.Reset{ResetPWM: false}
		return cyc, true

	case StateArmed:
		if edges.Has(joystick.ButtonAbort) {
			return c.disarm(), true
		}
		c.applyToggles(edges)
		return c.armedCycle(f, edges, true), true
	}
	return commands.Cycle{}, false
}

// arm captures the measured yaw and depth as the new baselines and levels
// roll and pitch.
func (c *Controller) arm() {
	c.state = StateArmed
	c.setpoint = Setpoint{
		Yaw:   c.yawBaseline(),
		Depth: c.depthBaseline(),
	}
	c.moment = commands.RawMoment{}
	c.forceZ = 0
	c.record(TransitionArm, true)
}

// disarm enters StateReset and returns the disable broadcast. Each assist's
// release is emitted only if its latch is clear.
func (c *Controller) disarm() commands.Cycle {
	if c.state == StateArmed {
		c.record(TransitionDisarm, false)
	}
	c.state = StateReset
	c.depthArmed = false
	c.pendingPneumatics = nil
	c.moment = commands.RawMoment{}
	c.forceZ = 0
	c.linear = commands.LinearForce{}

	cyc := c.newCycle()
	cyc.Reset = &commands.Reset{ResetPWM: true}
	if !c.attitudeReleased {
		cyc.ReleaseAttitude = true
		c.attitudeReleased = true
	}
	if !c.depthReleased {
		cyc.ReleaseDepth = true
		c.depthReleased = true
	}
	cyc.Attitude = commands.RawMoment{}
	cyc.Depth = commands.RawVerticalForce{}
	return cyc
}

func (c *Controller) applyToggles(edges joystick.ButtonSet) {
	if edges.Has(joystick.ButtonToggleAttitude) {
		c.attitudeTrusted = !c.attitudeTrusted
		c.record(TransitionAttitudeTrust, c.attitudeTrusted)
	}
	if edges.Has(joystick.ButtonToggleDepth) {
		c.depthTrusted = !c.depthTrusted
		if c.depthTrusted {
			c.setpoint.Depth = c.depthBaseline()
		}
		c.record(TransitionDepthTrust, c.depthTrusted)
	}
	if edges.Has(joystick.ButtonTogglePlane) {
		c.plane = c.plane.Toggle()
		c.record(TransitionPlane, c.plane == commands.PlaneYZ)
	}

	if !c.cfg.EnablePneumatics {
		return
	}
	fired := edges.Has(joystick.ButtonTorpedoPort) || edges.Has(joystick.ButtonTorpedoStbd) || edges.Has(joystick.ButtonMarker)
	if !fired {
		return
	}
	var p commands.Pneumatics
	if c.pendingPneumatics != nil {
		p = *c.pendingPneumatics
	}
	p.TorpedoPort = p.TorpedoPort || edges.Has(joystick.ButtonTorpedoPort)
	p.TorpedoStbd = p.TorpedoStbd || edges.Has(joystick.ButtonTorpedoStbd)
	p.MarkerDropper = p.MarkerDropper || edges.Has(joystick.ButtonMarker)
	p.Duration = c.cfg.PneumaticsDuration
	c.pendingPneumatics = &p
	c.record(TransitionPneumatics, true)
}

// armedCycle integrates one tick of input and selects the outputs. On the
// arming tick integrate is false, so only the new baselines go out.
func (c *Controller) armedCycle(f joystick.Frame, edges joystick.ButtonSet, integrate bool) commands.Cycle {
	cyc := c.newCycle()
	boost := 1 + (c.cfg.Boost-1)*f.Held(joystick.ButtonBoost)

	c.updateAttitude(f, boost, integrate)
	if c.attitudeTrusted {
		c.attitudeReleased = false
		cyc.Attitude = commands.AttitudeSetpoint{
			Roll:  c.setpoint.Roll,
			Pitch: c.setpoint.Pitch,
			Yaw:   c.setpoint.Yaw,
		}
	} else {
		if !c.attitudeReleased {
			cyc.ReleaseAttitude = true
			c.attitudeReleased = true
			logf("attitude assist released")
		}
		cyc.Attitude = c.moment
	}

	c.updateDepth(edges, boost, integrate)
	if c.depthTrusted {
		c.depthReleased = false
		cyc.Depth = commands.DepthSetpoint{Depth: c.setpoint.Depth}
	} else {
		if !c.depthReleased {
			cyc.ReleaseDepth = true
			c.depthReleased = true
			logf("depth assist released")
		}
		cyc.Depth = commands.RawVerticalForce{Z: c.forceZ}
	}

	if c.pendingPneumatics != nil {
		cyc.Pneumatics = c.pendingPneumatics
		c.pendingPneumatics = nil
	}
	return cyc
}

// updateAttitude advances the attitude setpoint when the assist is trusted,
// or computes the raw moment from the sticks when it is not.
func (c *Controller) updateAttitude(f joystick.Frame, boost float64, integrate bool) {
	center := f.Pressed(joystick.ButtonCenter)

	if !c.attitudeTrusted {
		// Keep the yaw baseline on the measured heading so re-trusting does
		// not jump.
		c.setpoint.Yaw = c.yawBaseline()

		var m commands.RawMoment
		if math.Abs(f.Axis(joystick.AxisLeftStickUD)) < 0.5 {
			m.X = -f.Axis(joystick.AxisLeftStickLR) * c.cfg.MaxXMoment
		} else {
			m.Y = f.Axis(joystick.AxisLeftStickUD) * c.cfg.MaxYMoment
		}
		switch {
		case f.Pressed(joystick.ButtonRollUp):
			m.Z = -0.25 * c.cfg.MaxZMoment // clockwise positive
		case f.Pressed(joystick.ButtonRollDown):
			m.Z = 0.25 * c.cfg.MaxZMoment
		}
		if center {
			m.X, m.Y = 0, 0
		}
		c.moment = m
		return
	}

	if !integrate {
		return
	}

	var dRoll, dPitch float64
	if center {
		c.setpoint.Roll, c.setpoint.Pitch = 0, 0
		c.moment.X, c.moment.Y = 0, 0
	} else {
		rollStep := c.cfg.RollRate / c.cfg.Rate * boost
		switch {
		case f.Pressed(joystick.ButtonRollUp):
			dRoll = rollStep
		case f.Pressed(joystick.ButtonRollDown):
			dRoll = -rollStep
		}
		pitchStep := c.cfg.PitchRate / c.cfg.Rate * boost
		switch {
		case f.Pressed(joystick.ButtonPitchUp):
			dPitch = pitchStep
		case f.Pressed(joystick.ButtonPitchDown):
			dPitch = -pitchStep
		}
	}
	dYaw := f.Axis(joystick.AxisLeftStickLR) * c.cfg.YawRate / c.cfg.Rate * boost

	c.setpoint.Roll = units.ClampSymmetric(c.setpoint.Roll+dRoll, c.cfg.MaxRoll)
	c.setpoint.Pitch = units.ClampSymmetric(c.setpoint.Pitch+dPitch, c.cfg.MaxPitch)
	c.setpoint.Yaw = units.WrapDegrees(c.setpoint.Yaw + dYaw)
}

// updateDepth runs the depth branch of the integrator. Depth control needs a
// start-depth edge after every arm; until then the setpoint follows the
// measured depth and no force is applied.
func (c *Controller) updateDepth(edges joystick.ButtonSet, boost float64, integrate bool) {
	if integrate && edges.Has(joystick.ButtonStartDepth) {
		if !c.depthArmed {
			c.depthArmed = true
			c.record(TransitionDepthStart, true)
		}
		c.forceZ = 0
		return
	}

	command := c.descend.Value() - c.ascend.Value()
	switch {
	case c.depthArmed && c.depthTrusted:
		if integrate {
			c.setpoint.Depth = units.Clamp(
				c.setpoint.Depth+command*c.cfg.DepthRate/c.cfg.Rate*boost,
				0, c.cfg.MaxDepth)
		}
	case c.depthArmed:
		// Untrusted: the triggers drive heave directly and the setpoint
		// tracks the measurement.
		c.forceZ = command * c.cfg.MaxZForce
		c.setpoint.Depth = c.depthBaseline()
	default:
		c.forceZ = 0
		c.setpoint.Depth = c.depthBaseline()
	}
}

func (c *Controller) yawBaseline() float64 {
	return units.WrapDegrees(math.Trunc(c.measured.Yaw))
}

func (c *Controller) depthBaseline() float64 {
	return units.Clamp(c.measuredDepth, 0, c.cfg.MaxDepth)
}

func (c *Controller) newCycle() commands.Cycle {
	return commands.Cycle{
		Seq:    c.seq,
		Time:   c.lastTime,
		Linear: c.linear,
		Plane:  c.plane,
	}
}

func (c *Controller) record(kind TransitionKind, enabled bool) {
	c.transitions = append(c.transitions, Transition{
		Seq:     c.seq,
		Time:    c.lastTime,
		Kind:    kind,
		Enabled: enabled,
	})
	switch kind {
	case TransitionArm:
		logf("armed: yaw=%.0f depth=%.2f", c.setpoint.Yaw, c.setpoint.Depth)
	case TransitionDisarm:
		logf("disarmed, press start to arm")
	default:
		logf("%s: %t", kind, enabled)
	}
}

// DrainTransitions returns and clears the transitions recorded since the
// last call.
func (c *Controller) DrainTransitions() []Transition {
	out := c.transitions
	c.transitions = nil
	return out
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() ControllerState {
	return ControllerState{
		Seq:             c.seq,
		Time:            c.lastTime,
		State:           c.state,
		AttitudeTrusted: c.attitudeTrusted,
		DepthTrusted:    c.depthTrusted,
		DepthArmed:      c.depthArmed,
		Plane:           c.plane,
		Setpoint:        c.setpoint,
		MeasuredDepth:   c.measuredDepth,
		Measured:        c.measured,
		Moment:          c.moment,
		ForceZ:          c.forceZ,
		Linear:          c.linear,
		Descend:         TriggerState{Initialized: c.descend.Initialized(), Value: c.descend.Value()},
		Ascend:          TriggerState{Initialized: c.ascend.Initialized(), Value: c.ascend.Value()},
	}
}
