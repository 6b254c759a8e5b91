package joystick

// Button indexes a digital control in Frame.Buttons. The values follow the
// PS3 (sixaxis) layout reported by the gamepad bridge.
type Button int

const (
	ButtonSelect Button = iota
	ButtonStickLeft
	ButtonStickRight
	ButtonStart
	ButtonCrossUp
	ButtonCrossRight
	ButtonCrossDown
	ButtonCrossLeft
	ButtonRearL2
	ButtonRearR2
	ButtonRearL1
	ButtonRearR1
	ButtonTriangle
	ButtonCircle
	ButtonX
	ButtonSquare
	ButtonPairing

	// NumButtons is the minimum button count a frame must carry.
	NumButtons = int(ButtonPairing) + 1
)

var buttonNames = [...]string{
	"select", "l3", "r3", "start", "up", "right", "down", "left",
	"l2", "r2", "l1", "r1", "triangle", "circle", "x", "square", "ps",
}

func (b Button) String() string {
	if b >= 0 && int(b) < len(buttonNames) {
		return buttonNames[b]
	}
	return "button?"
}

// Axis indexes an analog control in Frame.Axes.
type Axis int

const (
	AxisLeftStickLR  Axis = 0
	AxisLeftStickUD  Axis = 1
	AxisRightStickLR Axis = 2
	AxisRightStickUD Axis = 3
	AxisRearL2       Axis = 12
	AxisRearR2       Axis = 13

	// NumAxes is the minimum axis count a frame must carry.
	NumAxes = int(AxisRearR2) + 1
)

// Role bindings used by the controller.
const (
	ButtonArm            = ButtonStart
	ButtonAbort          = ButtonX
	ButtonCenter         = ButtonCircle
	ButtonBoost          = ButtonSquare
	ButtonStartDepth     = ButtonTriangle
	ButtonToggleAttitude = ButtonRearL1
	ButtonToggleDepth    = ButtonRearR1
	ButtonTogglePlane    = ButtonSelect
	ButtonRollUp         = ButtonCrossRight
	ButtonRollDown       = ButtonCrossLeft
	ButtonPitchUp        = ButtonCrossUp
	ButtonPitchDown      = ButtonCrossDown
	ButtonTorpedoPort    = ButtonStickLeft
	ButtonTorpedoStbd    = ButtonStickRight
	ButtonMarker         = ButtonPairing

	// AxisDescend (R2) increases the depth setpoint, AxisAscend (L2)
	// decreases it.
	AxisDescend = AxisRearR2
	AxisAscend  = AxisRearL2
)
