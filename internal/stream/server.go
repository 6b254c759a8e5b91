package stream

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/subsea-teleop/internal/commands"
	"github.com/banshee-data/subsea-teleop/internal/monitoring"
)

var logf = monitoring.Component("grpc")

// clientBuffer is how many cycles a viewer may fall behind before cycles are
// dropped for it.
const clientBuffer = 32

// Hub fans published cycles out to connected viewers. It implements
// commands.Publisher and CycleStreamServer. A slow viewer misses cycles; it
// never slows the control loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]chan *structpb.Struct
	nextID  uint64

	maxClients int
	published  atomic.Uint64
	dropped    atomic.Uint64
}

// NewHub creates a hub accepting up to maxClients viewers (0 = unlimited).
func NewHub(maxClients int) *Hub {
	return &Hub{
		clients:    make(map[uint64]chan *structpb.Struct),
		maxClients: maxClients,
	}
}

// Publish encodes c once and offers it to every viewer.
func (h *Hub) Publish(_ context.Context, c commands.Cycle) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return nil
	}
	msg, err := CycleToStruct(c)
	if err != nil {
		return err
	}
	h.published.Add(1)
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of per-viewer deliveries skipped.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) subscribe() (uint64, <-chan *structpb.Struct, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return 0, nil, status.Errorf(codes.ResourceExhausted, "viewer limit %d reached", h.maxClients)
	}
	h.nextID++
	ch := make(chan *structpb.Struct, clientBuffer)
	h.clients[h.nextID] = ch
	return h.nextID, ch, nil
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// StreamCycles sends cycles to one viewer until it disconnects.
func (h *Hub) StreamCycles(req *structpb.Struct, stream CycleSender) error {
	decimate := 1
	if v, ok := req.GetFields()["decimate"]; ok {
		n := v.GetNumberValue()
		if n < 1 || n != float64(int(n)) {
			return status.Errorf(codes.InvalidArgument, "decimate must be a positive integer, got %v", n)
		}
		decimate = int(n)
	}

	id, cycles, err := h.subscribe()
	if err != nil {
		return err
	}
	defer h.unsubscribe(id)
	logf("viewer %d connected (decimate=%d)", id, decimate)
	defer logf("viewer %d disconnected", id)

	ctx := stream.Context()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-cycles:
			n++
			if (n-1)%decimate != 0 {
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// Server is a gRPC server exposing a Hub.
type Server struct {
	grpc *grpc.Server
	hub  *Hub
}

// NewServer registers hub on a new gRPC server.
func NewServer(hub *Hub, opts ...grpc.ServerOption) *Server {
	s := grpc.NewServer(opts...)
	s.RegisterService(&ServiceDesc, hub)
	return &Server{grpc: s, hub: hub}
}

// Serve accepts viewers on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	logf("serving cycle stream on %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return s.Serve(lis)
}

// Stop ends all streams and stops the server.
func (s *Server) Stop() {
	// Streams block until their viewer leaves, so GracefulStop would wait
	// forever.
	s.grpc.Stop()
}
