package teleop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/subsea-teleop/internal/joystick"
)

type sinkRecorder struct {
	frames       []joystick.Frame
	depths       []float64
	orientations []Orientation
}

func (s *sinkRecorder) SubmitFrame(f joystick.Frame)    { s.frames = append(s.frames, f) }
func (s *sinkRecorder) SubmitDepth(d float64)           { s.depths = append(s.depths, d) }
func (s *sinkRecorder) SubmitOrientation(o Orientation) { s.orientations = append(s.orientations, o) }

func TestDispatch_RoundTripsEncoders(t *testing.T) {
	var sink sinkRecorder

	frame := joystick.Neutral().With(joystick.ButtonArm)
	b, err := EncodeFrame(frame)
	require.NoError(t, err)
	kind, err := Dispatch(b, &sink)
	require.NoError(t, err)
	assert.Equal(t, KindFrame, kind)
	require.Len(t, sink.frames, 1)
	assert.True(t, sink.frames[0].Pressed(joystick.ButtonArm))

	b, err = EncodeDepth(2.75)
	require.NoError(t, err)
	kind, err = Dispatch(b, &sink)
	require.NoError(t, err)
	assert.Equal(t, KindDepth, kind)
	assert.Equal(t, []float64{2.75}, sink.depths)

	b, err = EncodeOrientation(Orientation{Roll: 1, Pitch: -2, Yaw: 170})
	require.NoError(t, err)
	kind, err = Dispatch(b, &sink)
	require.NoError(t, err)
	assert.Equal(t, KindOrientation, kind)
	assert.Equal(t, []Orientation{{Roll: 1, Pitch: -2, Yaw: 170}}, sink.orientations)
}

func TestDispatch_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    InboundKind
		unknown bool
	}{
		{"not json", "speed 12.3", KindUnknown, true},
		{"unknown type", `{"type":"sonar"}`, KindUnknown, true},
		{"short frame", `{"type":"joy","buttons":[0,1],"axes":[0]}`, KindFrame, false},
		{"depth missing", `{"type":"depth"}`, KindDepth, false},
		{"imu missing yaw", `{"type":"imu","roll":1}`, KindOrientation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sink sinkRecorder
			kind, err := Dispatch([]byte(tt.payload), &sink)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.unknown, errors.Is(err, ErrUnknownMessage))
			assert.Empty(t, sink.frames)
			assert.Empty(t, sink.depths)
			assert.Empty(t, sink.orientations)
		})
	}
}

func TestDispatch_StatusIsNotSubmitted(t *testing.T) {
	var sink sinkRecorder
	kind, err := Dispatch([]byte(`{"type":"status","firmware":"1.2.0"}`), &sink)
	require.NoError(t, err)
	assert.Equal(t, KindStatus, kind)
	assert.Empty(t, sink.frames)
}
