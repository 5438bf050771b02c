// Package cache is the local, durable copy of the community log.
//
// The whole log lives under one namespaced key of the local key/value store
// and is rewritten on every mutation. Two side keys remember explicit
// deletions (tombstones) and per-station clear watermarks so that a stale
// remote snapshot cannot bring removed entries back. A third side key lists
// entries whose enrichment has not finished yet, so it can be resumed after
// a restart.
//
// A Cache is not safe for concurrent use; its owner serializes access.
package cache

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/dmitrijs2005/moodlog/internal/timex"
)

const (
	DefaultKey      = "moodlog.community.entries"
	DefaultCapacity = 50

	maxTombstones = 500
)

type Options struct {
	Key      string
	Capacity int
	Location *time.Location
}

type Cache struct {
	repo     metadata.Repository
	logger   logging.Logger
	key      string
	capacity int
	loc      *time.Location

	entries    map[string]models.LogEntry
	tombstones map[string]time.Time
	cleared    map[string]time.Time
	pending    map[string]struct{}
}

// Open loads the cache from repo. Missing or unreadable state yields an
// empty cache; the problem is logged, never returned.
func Open(ctx context.Context, repo metadata.Repository, logger logging.Logger, opts Options) *Cache {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	c := &Cache{
		repo:       repo,
		logger:     logger.With("module", "cache", "key", opts.Key),
		key:        opts.Key,
		capacity:   opts.Capacity,
		loc:        opts.Location,
		entries:    make(map[string]models.LogEntry),
		tombstones: make(map[string]time.Time),
		cleared:    make(map[string]time.Time),
		pending:    make(map[string]struct{}),
	}
	c.load(ctx)
	return c
}

func (c *Cache) tombstonesKey() string { return c.key + ".tombstones" }
func (c *Cache) clearedKey() string    { return c.key + ".cleared" }
func (c *Cache) pendingKey() string    { return c.key + ".pending" }

func (c *Cache) load(ctx context.Context) {
	var list []models.LogEntry
	if !c.read(ctx, c.key, &list) {
		list = nil
	}

	dropped := 0
	for _, e := range list {
		if err := e.Validate(); err != nil {
			dropped++
			continue
		}
		if _, dup := c.entries[e.ID]; dup {
			dropped++
			continue
		}
		c.entries[e.ID] = e
	}
	if dropped > 0 {
		c.logger.Warn(ctx, "dropped invalid cached entries", "dropped", dropped)
	}

	if !c.read(ctx, c.tombstonesKey(), &c.tombstones) || c.tombstones == nil {
		c.tombstones = make(map[string]time.Time)
	}
	if !c.read(ctx, c.clearedKey(), &c.cleared) || c.cleared == nil {
		c.cleared = make(map[string]time.Time)
	}
	var pending []string
	if c.read(ctx, c.pendingKey(), &pending) {
		for _, id := range pending {
			if _, ok := c.entries[id]; ok {
				c.pending[id] = struct{}{}
			}
		}
	}

	c.logger.Debug(ctx, "cache loaded", "entries", len(c.entries))

	if len(c.entries) > c.capacity {
		c.EvictOverflow(ctx)
	}
}

// read decodes key into dst and reports whether it succeeded.
func (c *Cache) read(ctx context.Context, key string, dst any) bool {
	raw, err := c.repo.Get(ctx, key)
	if err != nil {
		c.logger.Error(ctx, "failed to read local cache", "key", key, "error", err)
		return false
	}
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn(ctx, "local cache is corrupt, starting empty", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) write(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error(ctx, "failed to encode local cache", "key", key, "error", err)
		return
	}
	if err := c.repo.Set(ctx, key, raw); err != nil {
		c.logger.Error(ctx, "failed to persist local cache", "key", key, "error", err)
	}
}

func (c *Cache) persist(ctx context.Context) {
	c.write(ctx, c.key, c.All())
}

func (c *Cache) persistGuards(ctx context.Context) {
	c.write(ctx, c.tombstonesKey(), c.tombstones)
	c.write(ctx, c.clearedKey(), c.cleared)
}

func (c *Cache) persistPending(ctx context.Context) {
	c.write(ctx, c.pendingKey(), slices.Sorted(maps.Keys(c.pending)))
}

// dropPending forgets ids and persists the list if anything changed.
func (c *Cache) dropPending(ctx context.Context, ids ...string) {
	n := len(c.pending)
	for _, id := range ids {
		delete(c.pending, id)
	}
	if len(c.pending) != n {
		c.persistPending(ctx)
	}
}

// Len reports the number of cached entries across all stations.
func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Capacity() int {
	return c.capacity
}

// All returns every entry, newest first.
func (c *Cache) All() []models.LogEntry {
	out := make([]models.LogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, models.Newer)
	return out
}

// Get returns the entries of stationID created on dayKey (YYYY-MM-DD in the
// cache's location), newest first. An empty dayKey returns every day.
func (c *Cache) Get(stationID, dayKey string) []models.LogEntry {
	out := make([]models.LogEntry, 0)
	for _, e := range c.entries {
		if e.StationID != stationID {
			continue
		}
		if dayKey != "" && timex.DayKey(e.CreatedAt, c.loc) != dayKey {
			continue
		}
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, models.Newer)
	return out
}

func (c *Cache) Lookup(id string) (models.LogEntry, bool) {
	e, ok := c.entries[id]
	if !ok {
		return models.LogEntry{}, false
	}
	return e.Clone(), true
}

// Upsert inserts or replaces e by id and reports whether anything changed.
// Upserting an identical entry is a no-op.
func (c *Cache) Upsert(ctx context.Context, e models.LogEntry) bool {
	if err := e.Validate(); err != nil {
		c.logger.Warn(ctx, "refusing to cache invalid entry", "id", e.ID, "error", err)
		return false
	}
	if prev, ok := c.entries[e.ID]; ok && prev.Equal(e) {
		return false
	}
	c.entries[e.ID] = e.Clone()
	c.persist(ctx)
	return true
}

// Remove deletes id and remembers it as explicitly deleted.
func (c *Cache) Remove(ctx context.Context, id string) bool {
	_, ok := c.entries[id]
	delete(c.entries, id)

	c.tombstones[id] = time.Now().UTC()
	c.trimTombstones()
	c.persistGuards(ctx)
	c.dropPending(ctx, id)

	if ok {
		c.persist(ctx)
	}
	return ok
}

// RemoveWhere deletes every entry matching pred and returns how many went.
func (c *Cache) RemoveWhere(ctx context.Context, pred func(models.LogEntry) bool) int {
	var removed []string
	for id, e := range c.entries {
		if pred(e) {
			delete(c.entries, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		c.persist(ctx)
		c.dropPending(ctx, removed...)
	}
	return len(removed)
}

// EvictOverflow drops the oldest entries beyond capacity. Eviction is local
// only and leaves no tombstone.
func (c *Cache) EvictOverflow(ctx context.Context) int {
	if len(c.entries) <= c.capacity {
		return 0
	}
	all := c.All()
	var evictedIDs []string
	for _, e := range all[c.capacity:] {
		delete(c.entries, e.ID)
		evictedIDs = append(evictedIDs, e.ID)
	}
	evicted := len(all) - c.capacity
	c.logger.Debug(ctx, "evicted overflow", "evicted", evicted)
	c.persist(ctx)
	c.dropPending(ctx, evictedIDs...)
	return evicted
}

// MarkCleared records that stationID was cleared up to and including cutoff.
// A cutoff later than now is clamped to now: entries written after the clear
// are new and must stay visible.
func (c *Cache) MarkCleared(ctx context.Context, stationID string, cutoff, now time.Time) {
	if now.Before(cutoff) {
		cutoff = now
	}
	if prev, ok := c.cleared[stationID]; ok && !cutoff.After(prev) {
		return
	}
	c.cleared[stationID] = cutoff.UTC()
	c.persistGuards(ctx)
}

// Suppressed reports whether e was deleted or cleared locally and must not
// be resurrected from a remote copy.
func (c *Cache) Suppressed(e models.LogEntry) bool {
	if _, ok := c.tombstones[e.ID]; ok {
		return true
	}
	if cutoff, ok := c.cleared[e.StationID]; ok && !e.CreatedAt.After(cutoff) {
		return true
	}
	return false
}

func (c *Cache) trimTombstones() {
	if len(c.tombstones) <= maxTombstones {
		return
	}
	ids := slices.Collect(maps.Keys(c.tombstones))
	slices.SortFunc(ids, func(a, b string) int {
		return c.tombstones[a].Compare(c.tombstones[b])
	})
	for _, id := range ids[:len(ids)-maxTombstones] {
		delete(c.tombstones, id)
	}
}

// MarkPending remembers that id still waits for its generated content.
func (c *Cache) MarkPending(ctx context.Context, id string) {
	if _, ok := c.entries[id]; !ok {
		return
	}
	if _, ok := c.pending[id]; ok {
		return
	}
	c.pending[id] = struct{}{}
	c.persistPending(ctx)
}

// ClearPending forgets id once its enrichment finished or became moot.
func (c *Cache) ClearPending(ctx context.Context, id string) {
	c.dropPending(ctx, id)
}

// Pending lists the ids still waiting for enrichment, oldest first.
func (c *Cache) Pending() []string {
	out := make([]string, 0, len(c.pending))
	all := c.All()
	for i := len(all) - 1; i >= 0; i-- {
		if _, ok := c.pending[all[i].ID]; ok {
			out = append(out, all[i].ID)
		}
	}
	return out
}
