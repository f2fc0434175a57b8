package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "breakfast.v1.Control"

// Full method names.
const (
	MethodConnect    = "/" + ServiceName + "/Connect"
	MethodDisconnect = "/" + ServiceName + "/Disconnect"
	MethodSend       = "/" + ServiceName + "/Send"
	MethodStop       = "/" + ServiceName + "/Stop"
	MethodSchedule   = "/" + ServiceName + "/Schedule"
	MethodCancel     = "/" + ServiceName + "/Cancel"
	MethodSnooze     = "/" + ServiceName + "/Snooze"
	MethodStatus     = "/" + ServiceName + "/Status"
	MethodWake       = "/" + ServiceName + "/Wake"
	MethodWatch      = "/" + ServiceName + "/Watch"
)

// ControlServer is the server API for the Control service.
type ControlServer interface {
	Connect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Disconnect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Send(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Stop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Schedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Snooze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Status(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Wake(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Watch(req *emptypb.Empty, stream grpc.ServerStream) error
}

type unaryMethod func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unary builds the method descriptor for a Struct-in, Struct-out call.
func unary(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(structpb.Struct)
			if err := dec(req); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(ControlServer), ctx, req)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}

			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ControlServer), ctx, req.(*structpb.Struct))
			}

			return interceptor(ctx, req, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	return srv.(ControlServer).Watch(req, stream)
}

// ServiceDesc is the grpc.ServiceDesc for the Control service.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Connect", ControlServer.Connect),
		unary("Disconnect", ControlServer.Disconnect),
		unary("Send", ControlServer.Send),
		unary("Stop", ControlServer.Stop),
		unary("Schedule", ControlServer.Schedule),
		unary("Cancel", ControlServer.Cancel),
		unary("Snooze", ControlServer.Snooze),
		unary("Status", ControlServer.Status),
		unary("Wake", ControlServer.Wake),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "breakfast/v1/control.proto",
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}
