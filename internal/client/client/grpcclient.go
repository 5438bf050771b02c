package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type feedAPI interface {
	Write(ctx context.Context, in *feedrpc.WriteRequest, opts ...grpc.CallOption) (*feedrpc.WriteResponse, error)
	Patch(ctx context.Context, in *feedrpc.PatchRequest, opts ...grpc.CallOption) (*feedrpc.PatchResponse, error)
	Delete(ctx context.Context, in *feedrpc.DeleteRequest, opts ...grpc.CallOption) (*feedrpc.DeleteResponse, error)
	DeleteBefore(ctx context.Context, in *feedrpc.DeleteBeforeRequest, opts ...grpc.CallOption) (*feedrpc.DeleteBeforeResponse, error)
	Subscribe(ctx context.Context, in *feedrpc.SubscribeRequest, opts ...grpc.CallOption) (feedrpc.SubscribeClient, error)
}

type healthAPI interface {
	Check(ctx context.Context, in *healthpb.HealthCheckRequest, opts ...grpc.CallOption) (*healthpb.HealthCheckResponse, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      feedAPI
	health      healthAPI
}

func withRequestID(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	if len(md.Get(common.RequestIDHeaderName)) == 0 {
		md.Set(common.RequestIDHeaderName, uuid.NewString())
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func requestIDInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withRequestID(ctx), method, req, reply, cc, opts...)
}

func requestIDStreamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withRequestID(ctx), desc, cc, method, opts...)
}

func NewGRPCClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(requestIDInterceptor),
		grpc.WithStreamInterceptor(requestIDStreamInterceptor),
	)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.endpointURL, err)
	}
	s.conn = conn
	s.client = feedrpc.NewStationFeedClient(conn)
	s.health = healthpb.NewHealthClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Ping asks the server's health service whether StationFeed is serving.
func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: feedrpc.ServiceName})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Write(ctx context.Context, stationID string, body json.RawMessage) (string, error) {
	resp, err := s.client.Write(ctx, &feedrpc.WriteRequest{StationID: stationID, Body: body})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.RemoteKey, nil
}

func (s *GRPCClient) Patch(ctx context.Context, stationID, remoteKey string, patch json.RawMessage) error {
	_, err := s.client.Patch(ctx, &feedrpc.PatchRequest{StationID: stationID, RemoteKey: remoteKey, Patch: patch})
	return s.mapError(err)
}

func (s *GRPCClient) Delete(ctx context.Context, stationID, remoteKey string) error {
	_, err := s.client.Delete(ctx, &feedrpc.DeleteRequest{StationID: stationID, RemoteKey: remoteKey})
	return s.mapError(err)
}

func (s *GRPCClient) DeleteBefore(ctx context.Context, stationID string, cutoff time.Time) (int64, error) {
	resp, err := s.client.DeleteBefore(ctx, &feedrpc.DeleteBeforeRequest{StationID: stationID, Cutoff: cutoff.UTC()})
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.Deleted, nil
}

func (s *GRPCClient) Subscribe(ctx context.Context, stationID string, fn func(*feedrpc.Snapshot)) error {
	stream, err := s.client.Subscribe(ctx, &feedrpc.SubscribeRequest{StationID: stationID})
	if err != nil {
		return s.mapError(err)
	}
	for {
		snap, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return ErrUnavailable
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return s.mapError(err)
		}
		fn(snap)
	}
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
