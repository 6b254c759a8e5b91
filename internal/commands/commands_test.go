package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topics(msgs []Message) []Topic {
	out := make([]Topic, len(msgs))
	for i, m := range msgs {
		out[i] = m.Topic
	}
	return out
}

func TestExpand_ClosedLoop(t *testing.T) {
	c := Cycle{
		Attitude: AttitudeSetpoint{Roll: 1, Pitch: 2, Yaw: 3},
		Depth:    DepthSetpoint{Depth: 1.5},
		Linear:   LinearForce{X: 4, Y: -5},
		Plane:    PlaneYZ,
	}
	msgs, err := Expand(c)
	require.NoError(t, err)

	want := []Message{
		{TopicRoll, AttitudeCommand{Value: 1, Mode: ModePosition}},
		{TopicPitch, AttitudeCommand{Value: 2, Mode: ModePosition}},
		{TopicYaw, AttitudeCommand{Value: 3, Mode: ModePosition}},
		{TopicForceX, Scalar{Data: 4}},
		{TopicForceY, Scalar{Data: -5}},
		{TopicDepth, DepthCommand{Depth: 1.5, Active: true}},
		{TopicPlane, PlaneIndicator{Data: 1}},
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("Expand mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_OpenLoopNeverMixesSetpoints(t *testing.T) {
	c := Cycle{
		Attitude: RawMoment{X: 1, Y: 0, Z: -2},
		Depth:    RawVerticalForce{Z: 7},
	}
	msgs, err := Expand(c)
	require.NoError(t, err)

	got := topics(msgs)
	assert.Equal(t, []Topic{TopicMoment, TopicForceX, TopicForceY, TopicForceZ, TopicPlane}, got)
	assert.NotContains(t, got, TopicRoll)
	assert.NotContains(t, got, TopicDepth)
}

func TestExpand_ReleaseResetAndPneumatics(t *testing.T) {
	c := Cycle{
		Reset:           &Reset{ResetPWM: true},
		ReleaseAttitude: true,
		ReleaseDepth:    true,
		Attitude:        RawMoment{},
		Depth:           RawVerticalForce{},
		Pneumatics:      &Pneumatics{TorpedoPort: true, Duration: 250 * time.Millisecond},
	}
	msgs, err := Expand(c)
	require.NoError(t, err)

	assert.Equal(t, []Topic{
		TopicRoll, TopicPitch, TopicYaw, TopicDepth, TopicReset,
		TopicMoment, TopicForceX, TopicForceY, TopicForceZ, TopicPlane, TopicPneumatics,
	}, topics(msgs))
	assert.Equal(t, AttitudeCommand{Value: 0, Mode: ModeMoment}, msgs[0].Payload)
	assert.Equal(t, DepthCommand{Depth: 0, Active: false}, msgs[3].Payload)
	assert.Equal(t, Reset{ResetPWM: true}, msgs[4].Payload)
	assert.Equal(t, PneumaticsCommand{TorpedoPort: true, DurationMs: 250}, msgs[10].Payload)
}

func TestExpand_IncompleteCycle(t *testing.T) {
	_, err := Expand(Cycle{Depth: DepthSetpoint{}})
	assert.True(t, errors.Is(err, ErrIncompleteCycle))

	_, err = Expand(Cycle{Attitude: RawMoment{}})
	assert.True(t, errors.Is(err, ErrIncompleteCycle))
}

func TestCycle_ModeHelpers(t *testing.T) {
	c := Cycle{Attitude: AttitudeSetpoint{}, Depth: RawVerticalForce{}}
	assert.True(t, c.ClosedLoopAttitude())
	assert.False(t, c.ClosedLoopDepth())
}

func TestAlignmentPlane_Toggle(t *testing.T) {
	assert.Equal(t, PlaneXY, PlaneYZ.Toggle())
	assert.Equal(t, PlaneYZ, PlaneXY.Toggle())
	assert.Equal(t, "YZ", PlaneYZ.String())
	assert.Equal(t, "XY", PlaneXY.String())
}

func TestMessage_JSON(t *testing.T) {
	b, err := json.Marshal(Message{TopicReset, Reset{ResetPWM: false}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"controls/reset","payload":{"reset_pwm":false}}`, string(b))
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	var a, b Recorder
	boom := errors.New("boom")
	f := Fanout{
		&a,
		PublisherFunc(func(context.Context, Cycle) error { return boom }),
		nil,
		&b,
	}

	err := f.Publish(context.Background(), Cycle{Seq: 9})
	assert.ErrorIs(t, err, boom)
	require.Equal(t, 1, a.Len())
	require.Equal(t, 1, b.Len())
	assert.Equal(t, uint64(9), b.Cycles()[0].Seq)
}
