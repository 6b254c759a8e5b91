package joystick

// TriggerGate suppresses an analog trigger until it has been touched once.
//
// The PS3 driver reports a false rest value (0) for the rear triggers until
// they are first pressed, while the true rest value is 1. Used ungated, an
// untouched trigger would read as half travel at boot. The gate stays closed,
// emitting exactly 0, until the raw reading differs from the boot-time rest
// value; from then on it emits 0.5*(1-raw), mapping rest (1) to 0 and full
// travel (-1) to 1. Once open the gate never closes.
type TriggerGate struct {
	rest        float64
	initialized bool
	value       float64
}

// NewTriggerGate returns a closed gate for a trigger whose boot-time reading
// is rest.
func NewTriggerGate(rest float64) *TriggerGate {
	return &TriggerGate{rest: rest}
}

// Update feeds one raw reading and returns the scaled value in [0, 1].
func (g *TriggerGate) Update(raw float64) float64 {
	if !g.initialized && raw != g.rest {
		g.initialized = true
	}
	if g.initialized {
		g.value = 0.5 * (1 - raw)
	} else {
		g.value = 0
	}
	return g.value
}

// Initialized reports whether the trigger has departed its rest value.
func (g *TriggerGate) Initialized() bool { return g.initialized }

// Value returns the last scaled value.
func (g *TriggerGate) Value() float64 { return g.value }
