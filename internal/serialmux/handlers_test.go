package serialmux

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/subsea-teleop/internal/joystick"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

type fakeSink struct {
	mu           sync.Mutex
	frames       int
	depths       []float64
	orientations []teleop.Orientation
}

func (s *fakeSink) SubmitFrame(joystick.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

func (s *fakeSink) SubmitDepth(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depths = append(s.depths, d)
}

func (s *fakeSink) SubmitOrientation(o teleop.Orientation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orientations = append(s.orientations, o)
}

func (s *fakeSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func TestRouter_HandleEvent(t *testing.T) {
	sink := &fakeSink{}
	r := NewRouter(sink)

	frame, err := teleop.EncodeFrame(joystick.Neutral())
	require.NoError(t, err)

	require.NoError(t, r.HandleEvent(string(frame)))
	require.NoError(t, r.HandleEvent(`{"type":"depth","depth":4.5}`))
	require.NoError(t, r.HandleEvent(`{"type":"imu","roll":1,"pitch":2,"yaw":3}`))
	require.NoError(t, r.HandleEvent(`{"type":"status","firmware":"2.1","battery":11.9}`))
	assert.Error(t, r.HandleEvent("garbage"))

	assert.Equal(t, 1, sink.Frames())
	assert.Equal(t, []float64{4.5}, sink.depths)
	assert.Equal(t, []teleop.Orientation{{Roll: 1, Pitch: 2, Yaw: 3}}, sink.orientations)
	assert.Equal(t, map[string]any{"firmware": "2.1", "battery": 11.9}, r.DeviceState())

	counts, rejected := r.Counts()
	assert.Equal(t, uint64(1), counts[teleop.KindFrame])
	assert.Equal(t, uint64(1), counts[teleop.KindStatus])
	assert.Equal(t, uint64(1), counts[teleop.KindUnknown])
	assert.Equal(t, uint64(1), rejected)
}

func TestRouter_RunRoutesMonitoredLines(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)
	sink := &fakeSink{}
	r := NewRouter(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	routed := make(chan error, 1)

	// Subscribe before the monitor starts so no line is missed.
	go func() { routed <- r.Run(ctx, s) }()
	require.Eventually(t, func() bool {
		s.subscriberMu.Lock()
		defer s.subscriberMu.Unlock()
		return len(s.subscribers) == 1
	}, time.Second, time.Millisecond)
	go s.Monitor(ctx)

	frame, err := teleop.EncodeFrame(joystick.Neutral())
	require.NoError(t, err)
	port.AddReadData(string(frame) + "\nnoise\n" + string(frame) + "\n")

	require.Eventually(t, func() bool { return sink.Frames() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, s.Close())
	select {
	case err := <-routed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("router did not stop when the mux closed")
	}
}
