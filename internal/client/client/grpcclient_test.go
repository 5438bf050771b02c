package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

/*************
 * Fakes
 *************/

type fakeFeed struct {
	lastWrite        *feedrpc.WriteRequest
	lastPatch        *feedrpc.PatchRequest
	lastDelete       *feedrpc.DeleteRequest
	lastDeleteBefore *feedrpc.DeleteBeforeRequest

	writeResp *feedrpc.WriteResponse
	err       error

	stream    *fakeStream
	streamErr error
}

func (f *fakeFeed) Write(_ context.Context, in *feedrpc.WriteRequest, _ ...grpc.CallOption) (*feedrpc.WriteResponse, error) {
	f.lastWrite = in
	return f.writeResp, f.err
}

func (f *fakeFeed) Patch(_ context.Context, in *feedrpc.PatchRequest, _ ...grpc.CallOption) (*feedrpc.PatchResponse, error) {
	f.lastPatch = in
	return &feedrpc.PatchResponse{}, f.err
}

func (f *fakeFeed) Delete(_ context.Context, in *feedrpc.DeleteRequest, _ ...grpc.CallOption) (*feedrpc.DeleteResponse, error) {
	f.lastDelete = in
	return &feedrpc.DeleteResponse{Deleted: true}, f.err
}

func (f *fakeFeed) DeleteBefore(_ context.Context, in *feedrpc.DeleteBeforeRequest, _ ...grpc.CallOption) (*feedrpc.DeleteBeforeResponse, error) {
	f.lastDeleteBefore = in
	if f.err != nil {
		return nil, f.err
	}
	return &feedrpc.DeleteBeforeResponse{Deleted: 4}, nil
}

func (f *fakeFeed) Subscribe(_ context.Context, _ *feedrpc.SubscribeRequest, _ ...grpc.CallOption) (feedrpc.SubscribeClient, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream, nil
}

type fakeStream struct {
	grpc.ClientStream
	snaps []*feedrpc.Snapshot
	end   error
}

func (s *fakeStream) Recv() (*feedrpc.Snapshot, error) {
	if len(s.snaps) == 0 {
		return nil, s.end
	}
	next := s.snaps[0]
	s.snaps = s.snaps[1:]
	return next, nil
}

type fakeHealth struct {
	resp *healthpb.HealthCheckResponse
	err  error
	last *healthpb.HealthCheckRequest
}

func (f *fakeHealth) Check(_ context.Context, in *healthpb.HealthCheckRequest, _ ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	f.last = in
	return f.resp, f.err
}

/*************
 * mapError
 *************/

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	require.NoError(t, c.mapError(nil))
	require.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.Unavailable, "x")))
	require.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.DeadlineExceeded, "x")))
	require.Equal(t, common.ErrorNotFound, c.mapError(status.Error(codes.NotFound, "x")))
	require.ErrorIs(t, c.mapError(status.Error(codes.InvalidArgument, "bad station")), ErrRejected)
	require.ErrorIs(t, c.mapError(status.Error(codes.Canceled, "x")), context.Canceled)
	require.ErrorContains(t, c.mapError(errors.New("plain")), "rpc error:")
}

/*************
 * Ping
 *************/

func TestPing(t *testing.T) {
	h := &fakeHealth{resp: &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}}
	c := &GRPCClient{health: h}
	require.NoError(t, c.Ping(context.Background()))
	require.Equal(t, feedrpc.ServiceName, h.last.Service)

	h.resp = &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)

	h.err = status.Error(codes.Unavailable, "down")
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

/*************
 * Mutations
 *************/

func TestWrite_MapsRequestAndResponse(t *testing.T) {
	f := &fakeFeed{writeResp: &feedrpc.WriteResponse{RemoteKey: "rk-7"}}
	c := &GRPCClient{client: f}

	key, err := c.Write(context.Background(), "lobby", json.RawMessage(`{"id":"a"}`))
	require.NoError(t, err)
	require.Equal(t, "rk-7", key)
	require.Equal(t, "lobby", f.lastWrite.StationID)
	require.JSONEq(t, `{"id":"a"}`, string(f.lastWrite.Body))
}

func TestWrite_MapsError(t *testing.T) {
	c := &GRPCClient{client: &fakeFeed{err: status.Error(codes.Unavailable, "down")}}
	_, err := c.Write(context.Background(), "lobby", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPatchDeleteDeleteBefore(t *testing.T) {
	f := &fakeFeed{}
	c := &GRPCClient{client: f}
	ctx := context.Background()

	require.NoError(t, c.Patch(ctx, "lobby", "rk-1", json.RawMessage(`{"theme":"Calm"}`)))
	require.Equal(t, "rk-1", f.lastPatch.RemoteKey)

	require.NoError(t, c.Delete(ctx, "lobby", "rk-2"))
	require.Equal(t, "rk-2", f.lastDelete.RemoteKey)

	cutoff := time.Date(2026, 5, 4, 12, 0, 0, 0, time.FixedZone("X", 7200))
	n, err := c.DeleteBefore(ctx, "lobby", cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Equal(t, time.UTC, f.lastDeleteBefore.Cutoff.Location())
	require.True(t, cutoff.Equal(f.lastDeleteBefore.Cutoff))

	f.err = status.Error(codes.NotFound, "gone")
	require.ErrorIs(t, c.Delete(ctx, "lobby", "rk-3"), common.ErrorNotFound)
}

/*************
 * Subscribe
 *************/

func TestSubscribe_DeliversUntilStreamEnds(t *testing.T) {
	f := &fakeFeed{stream: &fakeStream{
		snaps: []*feedrpc.Snapshot{{StationID: "lobby"}, {StationID: "lobby", Refresh: true}},
		end:   io.EOF,
	}}
	c := &GRPCClient{client: f}

	var got []*feedrpc.Snapshot
	err := c.Subscribe(context.Background(), "lobby", func(s *feedrpc.Snapshot) { got = append(got, s) })

	require.ErrorIs(t, err, ErrUnavailable)
	require.Len(t, got, 2)
	require.True(t, got[1].Refresh)
}

func TestSubscribe_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFeed{stream: &fakeStream{end: status.Error(codes.Canceled, "ctx")}}
	c := &GRPCClient{client: f}

	err := c.Subscribe(ctx, "lobby", func(*feedrpc.Snapshot) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubscribe_OpenError(t *testing.T) {
	c := &GRPCClient{client: &fakeFeed{streamErr: status.Error(codes.Unavailable, "down")}}
	err := c.Subscribe(context.Background(), "lobby", func(*feedrpc.Snapshot) {})
	require.ErrorIs(t, err, ErrUnavailable)
}

/*************
 * Interceptors
 *************/

func TestRequestIDInterceptor_AddsHeaderOnce(t *testing.T) {
	var got []string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get(common.RequestIDHeaderName)
		return nil
	}

	require.NoError(t, requestIDInterceptor(context.Background(), feedrpc.WriteMethod, nil, nil, nil, invoker))
	require.Len(t, got, 1)
	require.NotEmpty(t, got[0])

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.RequestIDHeaderName, "fixed")
	require.NoError(t, requestIDInterceptor(ctx, feedrpc.WriteMethod, nil, nil, nil, invoker))
	require.Equal(t, []string{"fixed"}, got)
}

func TestNewGRPCClient_LazyDial(t *testing.T) {
	c, err := NewGRPCClient("127.0.0.1:1")
	require.NoError(t, err)
	require.NotNil(t, c.client)
	require.NotNil(t, c.health)
	require.NoError(t, c.Close())
}
