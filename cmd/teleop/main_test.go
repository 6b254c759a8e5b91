package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/subsea-teleop/internal/joystick"
	"github.com/banshee-data/subsea-teleop/internal/serialmux"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

type scriptSink struct {
	frames       []joystick.Frame
	depths       []float64
	orientations []teleop.Orientation
}

func (s *scriptSink) SubmitFrame(f joystick.Frame)           { s.frames = append(s.frames, f) }
func (s *scriptSink) SubmitDepth(d float64)                  { s.depths = append(s.depths, d) }
func (s *scriptSink) SubmitOrientation(o teleop.Orientation) { s.orientations = append(s.orientations, o) }

func TestDevScriptDecodes(t *testing.T) {
	lines, err := devScript()
	require.NoError(t, err)

	sink := &scriptSink{}
	for _, line := range lines {
		_, err := teleop.Dispatch(line, sink)
		require.NoError(t, err, "line %s", line)
	}

	assert.Equal(t, []float64{2}, sink.depths)
	assert.Len(t, sink.orientations, 1)
	require.Len(t, sink.frames, 5)
	assert.False(t, sink.frames[0].Pressed(joystick.ButtonArm))
	assert.True(t, sink.frames[1].Pressed(joystick.ButtonArm))
	assert.Less(t, sink.frames[3].Axis(joystick.AxisLeftStickUD), 0.0)
}

func TestOpenBridge(t *testing.T) {
	b, err := openBridge(inputNone)
	require.NoError(t, err)
	assert.IsType(t, &serialmux.DisabledSerialMux{}, b)
	require.NoError(t, b.Close())

	b, err = openBridge(inputDev)
	require.NoError(t, err)
	_, ok := b.(lineStatser)
	assert.True(t, ok, "simulated bridge reports line counts")
	require.NoError(t, b.Close())
}
