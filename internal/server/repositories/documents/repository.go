package documents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/server/models"
)

type Repository interface {
	// Upsert stores d keyed by (station, entry id) and returns the remote key
	// of the stored row, which is the existing one when the entry was
	// already present.
	Upsert(ctx context.Context, d *models.Document) (string, error)
	Patch(ctx context.Context, stationID, remoteKey string, patch json.RawMessage) error
	Delete(ctx context.Context, stationID, remoteKey string) (bool, error)
	DeleteBefore(ctx context.Context, stationID string, cutoff time.Time) (int64, error)
	// Trim keeps the newest keep documents of the station and deletes the rest.
	Trim(ctx context.Context, stationID string, keep int) (int64, error)
	ListRecent(ctx context.Context, stationID string, limit int) ([]*models.Document, error)
}
