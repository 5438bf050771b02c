package feedrpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "moodlog.feed.v1.StationFeed"

	WriteMethod        = "/" + ServiceName + "/Write"
	PatchMethod        = "/" + ServiceName + "/Patch"
	DeleteMethod       = "/" + ServiceName + "/Delete"
	DeleteBeforeMethod = "/" + ServiceName + "/DeleteBefore"
	SubscribeMethod    = "/" + ServiceName + "/Subscribe"
)

// StationFeedServer is implemented by the remote store.
type StationFeedServer interface {
	Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error)
	Patch(ctx context.Context, req *PatchRequest) (*PatchResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error)
	DeleteBefore(ctx context.Context, req *DeleteBeforeRequest) (*DeleteBeforeResponse, error)
	Subscribe(req *SubscribeRequest, stream SubscribeServer) error
}

// SubscribeServer is the server side of a Subscribe stream.
type SubscribeServer interface {
	Send(*Snapshot) error
	grpc.ServerStream
}

type subscribeServer struct {
	grpc.ServerStream
}

func (s *subscribeServer) Send(m *Snapshot) error {
	return s.ServerStream.SendMsg(m)
}

func RegisterStationFeedServer(r grpc.ServiceRegistrar, srv StationFeedServer) {
	r.RegisterService(&ServiceDesc, srv)
}

func unary[Req any](method string, call func(StationFeedServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StationFeedServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StationFeedServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StationFeedServer).Subscribe(in, &subscribeServer{stream})
}

// ServiceDesc describes StationFeed for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StationFeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Write",
			Handler: unary(WriteMethod, func(s StationFeedServer, ctx context.Context, r *WriteRequest) (any, error) {
				return s.Write(ctx, r)
			}),
		},
		{
			MethodName: "Patch",
			Handler: unary(PatchMethod, func(s StationFeedServer, ctx context.Context, r *PatchRequest) (any, error) {
				return s.Patch(ctx, r)
			}),
		},
		{
			MethodName: "Delete",
			Handler: unary(DeleteMethod, func(s StationFeedServer, ctx context.Context, r *DeleteRequest) (any, error) {
				return s.Delete(ctx, r)
			}),
		},
		{
			MethodName: "DeleteBefore",
			Handler: unary(DeleteBeforeMethod, func(s StationFeedServer, ctx context.Context, r *DeleteBeforeRequest) (any, error) {
				return s.DeleteBefore(ctx, r)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "feedrpc",
}

// StationFeedClient calls StationFeed over a client connection.
type StationFeedClient struct {
	cc grpc.ClientConnInterface
}

func NewStationFeedClient(cc grpc.ClientConnInterface) *StationFeedClient {
	return &StationFeedClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *StationFeedClient) Write(ctx context.Context, in *WriteRequest, opts ...grpc.CallOption) (*WriteResponse, error) {
	out := new(WriteResponse)
	if err := c.cc.Invoke(ctx, WriteMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StationFeedClient) Patch(ctx context.Context, in *PatchRequest, opts ...grpc.CallOption) (*PatchResponse, error) {
	out := new(PatchResponse)
	if err := c.cc.Invoke(ctx, PatchMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StationFeedClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, DeleteMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StationFeedClient) DeleteBefore(ctx context.Context, in *DeleteBeforeRequest, opts ...grpc.CallOption) (*DeleteBeforeResponse, error) {
	out := new(DeleteBeforeResponse)
	if err := c.cc.Invoke(ctx, DeleteBeforeMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribeClient is the client side of a Subscribe stream.
type SubscribeClient interface {
	Recv() (*Snapshot, error)
	grpc.ClientStream
}

type subscribeClient struct {
	grpc.ClientStream
}

func (x *subscribeClient) Recv() (*Snapshot, error) {
	m := new(Snapshot)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *StationFeedClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &subscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
