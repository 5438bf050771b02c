// Package grpc exposes the remote store as the StationFeed gRPC service.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// FeedService is the store behind the transport.
type FeedService interface {
	Write(ctx context.Context, stationID string, body json.RawMessage) (string, error)
	Patch(ctx context.Context, stationID, remoteKey string, patch json.RawMessage) error
	Delete(ctx context.Context, stationID, remoteKey string) (bool, error)
	DeleteBefore(ctx context.Context, stationID string, cutoff time.Time) (int64, error)
	Subscribe(ctx context.Context, stationID string, send func(*feedrpc.Snapshot) error) error
}

type GRPCServer struct {
	address string
	feed    FeedService
	logger  logging.Logger
	health  *health.Server
}

var _ feedrpc.StationFeedServer = (*GRPCServer)(nil)

func NewGRPCServer(address string, l logging.Logger, feed FeedService) *GRPCServer {
	return &GRPCServer{
		address: address,
		feed:    feed,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then drains in-flight
// calls.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.stationInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor),
	)

	feedrpc.RegisterStationFeedServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(feedrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.SetServingStatus(feedrpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	<-stopped
	return nil
}
