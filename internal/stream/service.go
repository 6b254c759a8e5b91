// Package stream serves emitted cycles to live viewers over gRPC.
//
// The service has one server-streaming method. Requests and stream items are
// google.protobuf.Struct values, so clients need no generated code:
//
//	service CycleStream {
//	  rpc StreamCycles(google.protobuf.Struct) returns (stream google.protobuf.Struct);
//	}
//
// Request fields: "decimate" (number, send every Nth cycle, default 1).
package stream

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName      = "teleop.v1.CycleStream"
	streamCyclesName = "StreamCycles"
	streamCyclesPath = "/" + serviceName + "/" + streamCyclesName
)

// CycleStreamServer is the server API for the CycleStream service.
type CycleStreamServer interface {
	StreamCycles(req *structpb.Struct, stream CycleSender) error
}

// CycleSender is the server side of a StreamCycles call.
type CycleSender interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type cycleSender struct {
	grpc.ServerStream
}

func (s *cycleSender) Send(m *structpb.Struct) error { return s.ServerStream.SendMsg(m) }

func streamCyclesHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(CycleStreamServer).StreamCycles(req, &cycleSender{stream})
}

// ServiceDesc describes the CycleStream service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CycleStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    streamCyclesName,
			Handler:       streamCyclesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "teleop/v1/stream.proto",
}

// CycleReceiver is the client side of a StreamCycles call.
type CycleReceiver interface {
	Recv() (*structpb.Struct, error)
}

type cycleReceiver struct {
	grpc.ClientStream
}

func (r *cycleReceiver) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := r.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// StreamCycles opens a cycle stream on cc.
func StreamCycles(ctx context.Context, cc grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) (CycleReceiver, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], streamCyclesPath, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close send: %w", err)
	}
	return &cycleReceiver{stream}, nil
}
