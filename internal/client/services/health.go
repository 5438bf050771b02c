package services

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/dmitrijs2005/moodlog/internal/client/client"
	"github.com/dmitrijs2005/moodlog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodlog/internal/common"
)

// HealthService probes the remote store and manages the local key/value
// state for the CLI.
type HealthService interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	// LocalKeys lists the stored keys under prefix with their sizes in bytes.
	LocalKeys(ctx context.Context, prefix string) ([]KeyInfo, error)
	// ClearLocalData wipes every locally stored key.
	ClearLocalData(ctx context.Context) error
}

type KeyInfo struct {
	Key  string
	Size int
}

type healthService struct {
	client client.Client
	repo   metadata.Repository
}

// NewHealthService binds the service to c, which may be nil when no remote
// store is configured.
func NewHealthService(c client.Client, repo metadata.Repository) HealthService {
	return &healthService{client: c, repo: repo}
}

func (s *healthService) Ping(ctx context.Context) error {
	if s.client == nil {
		return common.ErrFeedNotConfigured
	}
	return s.client.Ping(ctx)
}

func (s *healthService) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *healthService) LocalKeys(ctx context.Context, prefix string) ([]KeyInfo, error) {
	pairs, err := s.repo.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list local keys: %w", err)
	}
	keys := slices.Sorted(maps.Keys(pairs))
	out := make([]KeyInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyInfo{Key: k, Size: len(pairs[k])})
	}
	return out, nil
}

func (s *healthService) ClearLocalData(ctx context.Context) error {
	return s.repo.Clear(ctx)
}
