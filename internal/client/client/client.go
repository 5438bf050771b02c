package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
)

// Client is the transport contract of the remote document store.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Write(ctx context.Context, stationID string, body json.RawMessage) (string, error)
	Patch(ctx context.Context, stationID, remoteKey string, patch json.RawMessage) error
	Delete(ctx context.Context, stationID, remoteKey string) error
	DeleteBefore(ctx context.Context, stationID string, cutoff time.Time) (int64, error)
	// Subscribe blocks, handing every received snapshot to fn, until the
	// stream ends or ctx is done.
	Subscribe(ctx context.Context, stationID string, fn func(*feedrpc.Snapshot)) error
}
