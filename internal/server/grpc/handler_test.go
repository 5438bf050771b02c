package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ---- fakes ----

type fakeFeed struct {
	writeKey string
	err      error

	lastStation string
	lastKey     string
	lastBody    json.RawMessage
	lastCutoff  time.Time

	deleted bool
	before  int64

	snaps []*feedrpc.Snapshot
}

func (f *fakeFeed) Write(_ context.Context, stationID string, body json.RawMessage) (string, error) {
	f.lastStation, f.lastBody = stationID, body
	return f.writeKey, f.err
}

func (f *fakeFeed) Patch(_ context.Context, stationID, remoteKey string, patch json.RawMessage) error {
	f.lastStation, f.lastKey, f.lastBody = stationID, remoteKey, patch
	return f.err
}

func (f *fakeFeed) Delete(_ context.Context, stationID, remoteKey string) (bool, error) {
	f.lastStation, f.lastKey = stationID, remoteKey
	return f.deleted, f.err
}

func (f *fakeFeed) DeleteBefore(_ context.Context, stationID string, cutoff time.Time) (int64, error) {
	f.lastStation, f.lastCutoff = stationID, cutoff
	return f.before, f.err
}

func (f *fakeFeed) Subscribe(_ context.Context, stationID string, send func(*feedrpc.Snapshot) error) error {
	f.lastStation = stationID
	for _, s := range f.snaps {
		if err := send(s); err != nil {
			return err
		}
	}
	return f.err
}

type fakeSubscribeStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent []*feedrpc.Snapshot
}

func (s *fakeSubscribeStream) Context() context.Context { return s.ctx }

func (s *fakeSubscribeStream) Send(m *feedrpc.Snapshot) error {
	s.sent = append(s.sent, m)
	return nil
}

func newTestServer(f *fakeFeed) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), f)
}

// ---- handlers ----

func TestWrite(t *testing.T) {
	f := &fakeFeed{writeKey: "rk-1"}
	s := newTestServer(f)

	resp, err := s.Write(context.Background(), &feedrpc.WriteRequest{StationID: "lobby", Body: json.RawMessage(`{"id":"a"}`)})
	require.NoError(t, err)
	require.Equal(t, "rk-1", resp.RemoteKey)
	require.Equal(t, "lobby", f.lastStation)
}

func TestWrite_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"invalid document", fmt.Errorf("%w: missing id", common.ErrInvalidDocument), codes.InvalidArgument},
		{"station mismatch", common.ErrStationMismatch, codes.InvalidArgument},
		{"not found", common.ErrorNotFound, codes.NotFound},
		{"canceled", context.Canceled, codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"db", errors.New("db error: connection reset"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeFeed{err: tt.err})
			_, err := s.Write(context.Background(), &feedrpc.WriteRequest{StationID: "lobby"})
			require.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	s := newTestServer(&fakeFeed{err: errors.New("password=hunter2")})
	_, err := s.Write(context.Background(), &feedrpc.WriteRequest{StationID: "lobby"})
	require.NotContains(t, err.Error(), "hunter2")
}

func TestPatch(t *testing.T) {
	f := &fakeFeed{}
	s := newTestServer(f)

	_, err := s.Patch(context.Background(), &feedrpc.PatchRequest{StationID: "lobby", RemoteKey: "rk", Patch: json.RawMessage(`{"theme":"Calm"}`)})
	require.NoError(t, err)
	require.Equal(t, "rk", f.lastKey)

	_, err = s.Patch(context.Background(), &feedrpc.PatchRequest{StationID: "lobby"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	f.err = common.ErrorNotFound
	_, err = s.Patch(context.Background(), &feedrpc.PatchRequest{StationID: "lobby", RemoteKey: "rk", Patch: json.RawMessage(`{}`)})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestDelete(t *testing.T) {
	f := &fakeFeed{deleted: true}
	s := newTestServer(f)

	resp, err := s.Delete(context.Background(), &feedrpc.DeleteRequest{StationID: "lobby", RemoteKey: "rk"})
	require.NoError(t, err)
	require.True(t, resp.Deleted)
}

func TestDeleteBefore(t *testing.T) {
	f := &fakeFeed{before: 3}
	s := newTestServer(f)
	cutoff := time.Date(2026, 5, 4, 23, 59, 59, 0, time.UTC)

	resp, err := s.DeleteBefore(context.Background(), &feedrpc.DeleteBeforeRequest{StationID: "lobby", Cutoff: cutoff})
	require.NoError(t, err)
	require.Equal(t, int64(3), resp.Deleted)
	require.Equal(t, cutoff, f.lastCutoff)

	_, err = s.DeleteBefore(context.Background(), &feedrpc.DeleteBeforeRequest{StationID: "lobby"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubscribe_ForwardsSnapshots(t *testing.T) {
	f := &fakeFeed{snaps: []*feedrpc.Snapshot{{StationID: "lobby"}, {StationID: "lobby", Refresh: true}}}
	s := newTestServer(f)
	stream := &fakeSubscribeStream{ctx: context.Background()}

	require.NoError(t, s.Subscribe(&feedrpc.SubscribeRequest{StationID: "lobby"}, stream))
	require.Len(t, stream.sent, 2)
	require.True(t, stream.sent[1].Refresh)
}

func TestSubscribe_RejectsBadStation(t *testing.T) {
	s := newTestServer(&fakeFeed{})
	err := s.Subscribe(&feedrpc.SubscribeRequest{}, &fakeSubscribeStream{ctx: context.Background()})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
