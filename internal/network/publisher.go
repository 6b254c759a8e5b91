package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/commands"
)

// queueDepth is the number of cycles buffered ahead of the socket.
const queueDepth = 32

// ErrQueueFull is returned when a cycle cannot be queued. None of its
// messages are sent.
var ErrQueueFull = errors.New("command queue full")

// PublisherStats counts outbound datagrams. Dropped counts whole cycles.
type PublisherStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// CommandPublisher sends each expanded command message as one JSON datagram.
// Publish never blocks the control loop: datagrams are queued and written by
// a background goroutine. A cycle is queued as a unit, so either all of its
// messages go out or none do.
type CommandPublisher struct {
	conn        io.WriteCloser
	address     string
	queue       chan [][]byte
	logInterval time.Duration

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewCommandPublisher dials address ("host:port") for sending commands.
func NewCommandPublisher(address string, logInterval time.Duration) (*CommandPublisher, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve publish address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish connection: %w", err)
	}
	return newCommandPublisher(conn, address, logInterval), nil
}

func newCommandPublisher(conn io.WriteCloser, address string, logInterval time.Duration) *CommandPublisher {
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &CommandPublisher{
		conn:        conn,
		address:     address,
		queue:       make(chan [][]byte, queueDepth),
		logInterval: logInterval,
		done:        make(chan struct{}),
	}
}

// Start runs the writer goroutine until ctx is cancelled or Close is called.
func (p *CommandPublisher) Start(ctx context.Context) {
	go func() {
		var failed uint64
		var lastErr error
		ticker := time.NewTicker(p.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case cycle := <-p.queue:
				for _, datagram := range cycle {
					if _, err := p.conn.Write(datagram); err != nil {
						p.failed.Add(1)
						failed++
						lastErr = err
						continue
					}
					p.sent.Add(1)
				}
			case <-ticker.C:
				if failed > 0 {
					logf("failed to send %d command datagrams (latest: %v)", failed, lastErr)
					failed, lastErr = 0, nil
				}
			}
		}
	}()
	logf("publishing commands to %s", p.address)
}

// Publish expands c and queues its messages in order. It returns
// ErrQueueFull, and sends nothing, when the writer has fallen behind.
func (p *CommandPublisher) Publish(_ context.Context, c commands.Cycle) error {
	msgs, err := commands.Expand(c)
	if err != nil {
		return err
	}
	cycle := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		datagram, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode %s: %w", m.Topic, err)
		}
		cycle = append(cycle, datagram)
	}
	select {
	case p.queue <- cycle:
		return nil
	default:
		p.dropped.Add(1)
		return fmt.Errorf("cycle %d: %w", c.Seq, ErrQueueFull)
	}
}

// Stats returns the publisher counters.
func (p *CommandPublisher) Stats() PublisherStats {
	return PublisherStats{
		Sent:    p.sent.Load(),
		Dropped: p.dropped.Load(),
		Failed:  p.failed.Load(),
	}
}

// Close stops the writer and closes the connection. Queued datagrams are
// discarded.
func (p *CommandPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}
