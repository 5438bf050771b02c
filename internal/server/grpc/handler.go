package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/dmitrijs2005/moodlog/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Write(ctx context.Context, req *feedrpc.WriteRequest) (*feedrpc.WriteResponse, error) {

	key, err := s.feed.Write(ctx, req.StationID, req.Body)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Debug(ctx, "document written", "station_id", req.StationID, "remote_key", key)
	return &feedrpc.WriteResponse{RemoteKey: key}, nil

}

func (s *GRPCServer) Patch(ctx context.Context, req *feedrpc.PatchRequest) (*feedrpc.PatchResponse, error) {

	if req.RemoteKey == "" {
		return nil, status.Error(codes.InvalidArgument, "remote key is required")
	}

	if err := s.feed.Patch(ctx, req.StationID, req.RemoteKey, req.Patch); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &feedrpc.PatchResponse{}, nil

}

func (s *GRPCServer) Delete(ctx context.Context, req *feedrpc.DeleteRequest) (*feedrpc.DeleteResponse, error) {

	ok, err := s.feed.Delete(ctx, req.StationID, req.RemoteKey)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &feedrpc.DeleteResponse{Deleted: ok}, nil

}

func (s *GRPCServer) DeleteBefore(ctx context.Context, req *feedrpc.DeleteBeforeRequest) (*feedrpc.DeleteBeforeResponse, error) {

	if req.Cutoff.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "cutoff is required")
	}

	n, err := s.feed.DeleteBefore(ctx, req.StationID, req.Cutoff)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "station cleared", "station_id", req.StationID, "deleted", n)
	return &feedrpc.DeleteBeforeResponse{Deleted: n}, nil

}

func (s *GRPCServer) Subscribe(req *feedrpc.SubscribeRequest, stream feedrpc.SubscribeServer) error {

	ctx := stream.Context()

	if err := services.ValidateStation(req.StationID); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Info(ctx, "subscriber connected", "station_id", req.StationID)
	defer s.logger.Info(ctx, "subscriber disconnected", "station_id", req.StationID)

	err := s.feed.Subscribe(ctx, req.StationID, stream.Send)
	if err != nil {
		return s.toStatus(ctx, err)
	}
	return nil

}

// toStatus maps service errors to gRPC codes. Store failures are logged and
// reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case services.IsClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
