// Package services implements the remote store: per-station document
// storage with snapshot push to subscribers.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/broker"
	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/dbx"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/dmitrijs2005/moodlog/internal/server/models"
	"github.com/dmitrijs2005/moodlog/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const DefaultSnapshotLimit = 60

type FeedService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	broker      *broker.Broker
	logger      logging.Logger
	limit       int
	refresh     time.Duration

	now    func() time.Time
	newKey func() string
}

func NewFeedService(db *sql.DB, rm repomanager.RepositoryManager, b *broker.Broker, logger logging.Logger, limit int, refresh time.Duration) *FeedService {
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	return &FeedService{
		db:          db,
		repomanager: rm,
		broker:      b,
		logger:      logger.With("module", "feed_service"),
		limit:       limit,
		refresh:     refresh,
		now:         time.Now,
		newKey:      uuid.NewString,
	}
}

func ValidateStation(stationID string) error {
	if stationID == "" || len(stationID) > common.StationIDMaxLen {
		return fmt.Errorf("%w: station id must be 1..%d bytes", common.ErrInvalidDocument, common.StationIDMaxLen)
	}
	return nil
}

// Write stores body for the station and trims the station to the newest
// documents. A second write of the same entry replaces the body and keeps
// the remote key.
func (s *FeedService) Write(ctx context.Context, stationID string, body json.RawMessage) (string, error) {
	if err := ValidateStation(stationID); err != nil {
		return "", err
	}
	meta, err := feedrpc.ReadMeta(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}
	if meta.StationID != "" && meta.StationID != stationID {
		return "", common.ErrStationMismatch
	}

	now := s.now().UTC()
	doc := &models.Document{
		RemoteKey: s.newKey(),
		StationID: stationID,
		EntryID:   meta.EntryID,
		CreatedAt: meta.CreatedAt,
		Body:      body,
		UpdatedAt: now,
	}

	var key string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Documents(tx)
		k, err := repo.Upsert(ctx, doc)
		if err != nil {
			return err
		}
		trimmed, err := repo.Trim(ctx, stationID, s.limit)
		if err != nil {
			return err
		}
		if trimmed > 0 {
			s.logger.Debug(ctx, "station trimmed", "station_id", stationID, "deleted", trimmed)
		}
		key = k
		return nil
	})
	if err != nil {
		return "", err
	}

	s.broker.Notify(stationID)
	return key, nil
}

// Patch merges the content keys of patch into the stored body. Identity keys
// in patch are ignored.
func (s *FeedService) Patch(ctx context.Context, stationID, remoteKey string, patch json.RawMessage) error {
	if err := ValidateStation(stationID); err != nil {
		return err
	}
	clean, err := feedrpc.StripImmutable(patch)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}
	if err := s.repomanager.Documents(s.db).Patch(ctx, stationID, remoteKey, clean); err != nil {
		return err
	}
	s.broker.Notify(stationID)
	return nil
}

func (s *FeedService) Delete(ctx context.Context, stationID, remoteKey string) (bool, error) {
	if err := ValidateStation(stationID); err != nil {
		return false, err
	}
	ok, err := s.repomanager.Documents(s.db).Delete(ctx, stationID, remoteKey)
	if err != nil {
		return false, err
	}
	if ok {
		s.broker.Notify(stationID)
	}
	return ok, nil
}

// DeleteBefore removes every document of the station created at or before
// cutoff.
func (s *FeedService) DeleteBefore(ctx context.Context, stationID string, cutoff time.Time) (int64, error) {
	if err := ValidateStation(stationID); err != nil {
		return 0, err
	}
	n, err := s.repomanager.Documents(s.db).DeleteBefore(ctx, stationID, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.broker.Notify(stationID)
	}
	return n, nil
}

// Snapshot reads the newest documents of the station.
func (s *FeedService) Snapshot(ctx context.Context, stationID string, refresh bool) (*feedrpc.Snapshot, error) {
	docs, err := s.repomanager.Documents(s.db).ListRecent(ctx, stationID, s.limit)
	if err != nil {
		return nil, err
	}
	snap := &feedrpc.Snapshot{
		StationID:   stationID,
		Documents:   make([]feedrpc.Document, 0, len(docs)),
		Refresh:     refresh,
		GeneratedAt: s.now().UTC(),
	}
	for _, d := range docs {
		snap.Documents = append(snap.Documents, d.ToWire())
	}
	return snap, nil
}

// Subscribe sends an initial snapshot, then one after every mutation of the
// station and a refresh snapshot every refresh interval, until ctx is done
// or send fails.
func (s *FeedService) Subscribe(ctx context.Context, stationID string, send func(*feedrpc.Snapshot) error) error {
	if err := ValidateStation(stationID); err != nil {
		return err
	}

	sub := s.broker.Subscribe(ctx, stationID)
	defer s.broker.Unsubscribe(ctx, sub)

	push := func(refresh bool) error {
		snap, err := s.Snapshot(ctx, stationID, refresh)
		if err != nil {
			return err
		}
		return send(snap)
	}

	if err := push(false); err != nil {
		return err
	}

	var tick <-chan time.Time
	if s.refresh > 0 {
		ticker := time.NewTicker(s.refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := push(false); err != nil {
				return err
			}
		case <-tick:
			if err := push(true); err != nil {
				return err
			}
		}
	}
}

// ActiveStations lists stations with at least one subscriber.
func (s *FeedService) ActiveStations() []string {
	return s.broker.Stations()
}

// IsClientError reports whether err was caused by the request rather than
// the store.
func IsClientError(err error) bool {
	return errors.Is(err, common.ErrInvalidDocument) || errors.Is(err, common.ErrStationMismatch)
}
