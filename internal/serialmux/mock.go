package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// MockSerialPort is a SerialPorter fed from an in-process pipe. Writes are
// accepted and discarded.
type MockSerialPort struct {
	io.Reader
	w      *io.PipeWriter
	closed chan struct{}
	once   sync.Once
}

func (m *MockSerialPort) Write(p []byte) (int, error) { return len(p), nil }

func (m *MockSerialPort) Close() error {
	m.once.Do(func() {
		close(m.closed)
		m.w.Close()
	})
	return nil
}

// NewMockSerialMux creates a SerialMux whose port replays lines in order,
// one every interval, looping until the mux is closed. It stands in for the
// bridge during bench testing.
func NewMockSerialMux(lines [][]byte, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	port := &MockSerialPort{Reader: r, w: w, closed: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; len(lines) > 0; i = (i + 1) % len(lines) {
			select {
			case <-port.closed:
				return
			case <-ticker.C:
			}
			line := lines[i]
			if !bytes.HasSuffix(line, []byte("\n")) {
				line = append(append([]byte(nil), line...), '\n')
			}
			if _, err := w.Write(line); err != nil {
				return
			}
		}
	}()

	logf("mock bridge replaying %d lines every %s", len(lines), interval)
	return NewSerialMux(port)
}

// TestableSerialPort implements SerialPorter with configurable behaviour for
// tests. Reads block until data is added or the port is closed.
type TestableSerialPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error
	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool
	// ReadError is returned once the buffered data is consumed, if set.
	ReadError error

	closed bool
}

// NewTestableSerialPort creates an empty TestableSerialPort.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.closed && p.readBuf.Len() == 0 && p.ReadError == nil {
		p.readCond.Wait()
	}
	if p.readBuf.Len() > 0 {
		return p.readBuf.Read(b)
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}
	return 0, io.EOF
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	n, _ := p.writeBuf.Write(b)
	if p.ShortWrite {
		n--
	}
	return n, nil
}

// Close marks the port closed and wakes blocked readers.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// AddReadData makes data available to Read.
func (p *TestableSerialPort) AddReadData(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.WriteString(data)
	p.readCond.Broadcast()
}

// FailReads makes Read return err once buffered data is consumed.
func (p *TestableSerialPort) FailReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadError = err
	p.readCond.Broadcast()
}

// Written returns everything written to the port.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.String()
}
