// Package feed is the client side of the shared remote document store.
//
// Every operation is best effort: failures are logged and swallowed so the
// local log keeps working while the store is slow, unreachable or not
// configured at all.
package feed

import (
	"context"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/models"
)

// Feed is the remote multi-writer store as the journal sees it.
type Feed interface {
	// Subscribe calls fn with a full snapshot of stationID after every
	// remote change, possibly repeating unchanged data. The returned func
	// stops the subscription and waits for fn to return.
	Subscribe(ctx context.Context, stationID string, fn func(models.Snapshot)) (unsubscribe func())
	// Write appends e. ok is false when the document is not yet durable
	// remotely.
	Write(ctx context.Context, stationID string, e models.LogEntry) (remoteKey string, ok bool)
	Patch(ctx context.Context, stationID, remoteKey string, p models.ContentPatch)
	Delete(ctx context.Context, stationID, remoteKey string)
	// DeleteBefore removes every document created at or before cutoff.
	DeleteBefore(ctx context.Context, stationID string, cutoff time.Time)
}

// Disabled is the feed used when no remote store is configured.
type Disabled struct{}

var _ Feed = Disabled{}

func (Disabled) Subscribe(context.Context, string, func(models.Snapshot)) func() {
	return func() {}
}

func (Disabled) Write(context.Context, string, models.LogEntry) (string, bool) {
	return "", false
}

func (Disabled) Patch(context.Context, string, string, models.ContentPatch) {}

func (Disabled) Delete(context.Context, string, string) {}

func (Disabled) DeleteBefore(context.Context, string, time.Time) {}
