package node

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	controlServiceName = "nodeagent.control.v1.Control"
	statusMethod       = "/" + controlServiceName + "/Status"
	shutdownMethod     = "/" + controlServiceName + "/Shutdown"
)

// controlServer is the server side of the control service.
type controlServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// The messages are well-known types, so the service is described by hand
// instead of through generated code.
var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: controlServiceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: controlStatusHandler},
		{MethodName: "Shutdown", Handler: controlShutdownHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nodeagent/control/v1/control.proto",
}

func controlStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func controlShutdownHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: shutdownMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlServer).Shutdown(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// controlService adapts a Node to controlServer.
type controlService struct {
	node *Node
}

func (c *controlService) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return c.node.Status().toProto()
}

// Shutdown only signals; graceful stop lets this reply reach the caller first.
func (c *controlService) Shutdown(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	c.node.log.Info().Msg("shutdown requested over control plane")
	c.node.Shutdown()
	return &emptypb.Empty{}, nil
}
