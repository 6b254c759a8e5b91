package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/subsea-teleop/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func startMonitor(t *testing.T, s SerialMuxInterface) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Monitor(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func TestSerialMux_FansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)

	_, a := s.Subscribe()
	_, b := s.Subscribe()
	startMonitor(t, s)

	port.AddReadData("{\"type\":\"depth\",\"depth\":1}\r\n\n{\"type\":\"imu\",\"yaw\":3}\n")

	assert.Equal(t, `{"type":"depth","depth":1}`, recv(t, a))
	assert.Equal(t, `{"type":"imu","yaw":3}`, recv(t, a))
	assert.Equal(t, `{"type":"depth","depth":1}`, recv(t, b))
	assert.Equal(t, `{"type":"imu","yaw":3}`, recv(t, b))

	lines, dropped := s.Stats()
	assert.Equal(t, uint64(2), lines, "blank lines are skipped")
	assert.Equal(t, uint64(0), dropped)
}

func TestSerialMux_SlowSubscriberDoesNotBlock(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)

	_, slow := s.Subscribe()
	_, fast := s.Subscribe()
	startMonitor(t, s)

	total := subscriberBuffer + 10
	var sb strings.Builder
	for i := 0; i < total; i++ {
		sb.WriteString("line\n")
	}
	port.AddReadData(sb.String())

	for i := 0; i < subscriberBuffer; i++ {
		recv(t, fast)
	}
	require.Eventually(t, func() bool {
		select {
		case <-fast:
		default:
		}
		lines, _ := s.Stats()
		return lines == uint64(total)
	}, time.Second, time.Millisecond)

	_, dropped := s.Stats()
	assert.GreaterOrEqual(t, dropped, uint64(10))
	assert.Len(t, slow, subscriberBuffer)
}

func TestSerialMux_UnsubscribeClosesChannel(t *testing.T) {
	s := NewSerialMux(NewTestableSerialPort())
	id, ch := s.Subscribe()
	s.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	s.Unsubscribe("missing")
}

func TestSerialMux_CloseStopsMonitor(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)
	_, ch := s.Subscribe()
	_, done := startMonitor(t, s)

	require.NoError(t, s.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	_, ok := <-ch
	assert.False(t, ok)

	_, late := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestSerialMux_MonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)
	_, done := startMonitor(t, s)

	boom := errors.New("usb unplugged")
	port.FailReads(boom)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("monitor did not return")
	}
}

func TestSerialMux_MonitorStopsOnCancel(t *testing.T) {
	s := NewSerialMux(NewTestableSerialPort())
	cancel, done := startMonitor(t, s)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)

	require.NoError(t, s.SendCommand("OJ"))
	require.NoError(t, s.SendCommand("SD\n"))
	assert.Equal(t, "OJ\nSD\n", port.Written())

	port.WriteError = errors.New("io")
	assert.Error(t, s.SendCommand("SI"))

	port.ShortWrite = true
	assert.ErrorIs(t, s.SendCommand("SI"), ErrWriteFailed)
}

func TestSerialMux_Initialize(t *testing.T) {
	port := NewTestableSerialPort()
	s := NewSerialMux(port)

	require.NoError(t, s.Initialize())
	lines := strings.Split(strings.TrimSpace(port.Written()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "C="))
	assert.Equal(t, []string{"OJ", "SJ", "SD", "SI"}, lines[1:])
}

func TestSerialMux_InitializeReportsFailure(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = errors.New("io")
	err := NewSerialMux(port).Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synchronize clock")
}
