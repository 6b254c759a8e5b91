package joystick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerGate_ClosedUntilFirstDeparture(t *testing.T) {
	g := NewTriggerGate(0)

	// raw sits at the false rest value for five ticks
	for tick := 1; tick <= 5; tick++ {
		assert.Equal(t, 0.0, g.Update(0), "tick %d", tick)
		assert.False(t, g.Initialized())
	}

	// first departure opens the gate on the same tick
	assert.Equal(t, 0.25, g.Update(0.5))
	assert.True(t, g.Initialized())

	// once open, the raw value is always scaled, including the old rest value
	assert.Equal(t, 0.5, g.Update(0))
	assert.Equal(t, 0.0, g.Update(1))
	assert.Equal(t, 1.0, g.Update(-1))
	assert.True(t, g.Initialized(), "gate must never close")
	assert.Equal(t, 1.0, g.Value())
}

func TestTriggerGate_ScaleAfterOpen(t *testing.T) {
	g := NewTriggerGate(0)
	g.Update(1)
	for raw := -1.0; raw <= 1.0; raw += 0.125 {
		assert.InDelta(t, 0.5*(1-raw), g.Update(raw), 1e-12)
	}
}

func TestTriggerGate_CustomRest(t *testing.T) {
	g := NewTriggerGate(1)
	assert.Equal(t, 0.0, g.Update(1))
	assert.False(t, g.Initialized())
	assert.Equal(t, 0.5, g.Update(0))
}

func TestEdgeDetector_RisingEdgesOnly(t *testing.T) {
	var d EdgeDetector
	n := Neutral()

	assert.Equal(t, ButtonSet(0), d.Update(n))

	edges := d.Update(n.With(ButtonStart))
	assert.True(t, edges.Has(ButtonStart))

	// held: no repeat
	assert.Equal(t, ButtonSet(0), d.Update(n.With(ButtonStart)))

	// released then pressed again
	assert.Equal(t, ButtonSet(0), d.Update(n))
	assert.True(t, d.Update(n.With(ButtonStart, ButtonX)).Has(ButtonX))
}

func TestEdgeDetector_FirstFramePrimes(t *testing.T) {
	var d EdgeDetector
	assert.Equal(t, ButtonSet(0), d.Update(Neutral().With(ButtonStart)))
	assert.Equal(t, ButtonSet(0), d.Update(Neutral().With(ButtonStart)))
}

func TestButtonSet_OutOfRange(t *testing.T) {
	var s ButtonSet
	assert.Equal(t, s, s.Add(-1).Add(64))
	assert.False(t, s.Has(70))
}

func TestFrameAccessors(t *testing.T) {
	f := Frame{Buttons: []int{0, 1}, Axes: []float64{0.5}}
	assert.True(t, f.Pressed(ButtonStickLeft))
	assert.False(t, f.Pressed(ButtonPairing), "out of range reads released")
	assert.Equal(t, 1.0, f.Held(ButtonStickLeft))
	assert.Equal(t, 0.5, f.Axis(AxisLeftStickLR))
	assert.Equal(t, 0.0, f.Axis(AxisRearR2), "out of range reads zero")
}

func TestParseFrame(t *testing.T) {
	n := Neutral().WithAxis(AxisLeftStickUD, -0.75).With(ButtonSquare)
	data := []byte(`{"buttons":[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,1,0],` +
		`"axes":[0,-0.75,0,0,0,0,0,0,0,0,0,0,1,1]}`)

	f, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, n.Buttons, f.Buttons)
	assert.Equal(t, n.Axes, f.Axes)

	_, err = ParseFrame([]byte(`{"buttons":[1],"axes":[]}`))
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = ParseFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestButtonString(t *testing.T) {
	assert.Equal(t, "start", ButtonStart.String())
	assert.Equal(t, "x", ButtonAbort.String())
	assert.Equal(t, "button?", Button(99).String())
}
