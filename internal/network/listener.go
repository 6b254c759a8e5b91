// Package network carries teleop inputs and commands over UDP: a listener for
// bridge datagrams, a publisher for expanded command messages, and replay of
// recorded captures.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/monitoring"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

var logf = monitoring.Component("udp")

// ErrPCAPDisabled is returned by ReplayPCAPFile in builds without the pcap tag.
var ErrPCAPDisabled = errors.New("PCAP support not enabled: rebuild with -tags=pcap")

const (
	// maxDatagram bounds one inbound JSON message.
	maxDatagram = 4096
	// readPoll is how often a quiet socket checks for cancellation.
	readPoll = 100 * time.Millisecond
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Address     string
	RcvBuf      int
	Sink        teleop.InputSink
	Sockets     UDPSocketFactory
	LogInterval time.Duration
}

// ListenerStats counts datagrams seen by a Listener.
type ListenerStats struct {
	Datagrams uint64 `json:"datagrams"`
	Rejected  uint64 `json:"rejected"`
	Status    uint64 `json:"status"`
}

// Listener receives bridge datagrams and dispatches them into the controller
// mailboxes. Each datagram carries one message in the same JSON envelope the
// serial bridge uses.
type Listener struct {
	address     string
	rcvBuf      int
	sink        teleop.InputSink
	sockets     UDPSocketFactory
	logInterval time.Duration

	datagrams atomic.Uint64
	rejected  atomic.Uint64
	status    atomic.Uint64
}

// NewListener creates a Listener. A nil socket factory uses real sockets.
func NewListener(cfg ListenerConfig) *Listener {
	sockets := cfg.Sockets
	if sockets == nil {
		sockets = RealUDPSocketFactory{}
	}
	logInterval := cfg.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &Listener{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		sink:        cfg.Sink,
		sockets:     sockets,
		logInterval: logInterval,
	}
}

// Start listens until ctx is cancelled, returning ctx.Err().
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.sockets.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("failed to set receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	logf("listening for inputs on %s", conn.LocalAddr())

	go l.logStats(ctx)

	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readPoll))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			logf("read error: %v", err)
			continue
		}
		if err := l.HandleDatagram(buf[:n]); err != nil {
			logf("datagram from %v: %v", from, err)
		}
	}
}

// HandleDatagram dispatches one datagram.
func (l *Listener) HandleDatagram(payload []byte) error {
	l.datagrams.Add(1)
	kind, err := teleop.Dispatch(payload, l.sink)
	if err != nil {
		l.rejected.Add(1)
		return err
	}
	if kind == teleop.KindStatus {
		l.status.Add(1)
	}
	return nil
}

// Stats returns the listener counters.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Datagrams: l.datagrams.Load(),
		Rejected:  l.rejected.Load(),
		Status:    l.status.Load(),
	}
}

func (l *Listener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := l.Stats()
			logf("datagrams=%d rejected=%d status=%d", s.Datagrams, s.Rejected, s.Status)
		}
	}
}
