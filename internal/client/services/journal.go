// Package services holds the client-side use cases. Journal is the
// community log of one station: it commits entries optimistically, enriches
// them in the background and keeps the local cache reconciled with the
// remote feed.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/cache"
	"github.com/dmitrijs2005/moodlog/internal/client/feed"
	"github.com/dmitrijs2005/moodlog/internal/client/generation"
	"github.com/dmitrijs2005/moodlog/internal/client/identity"
	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/client/reconciler"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"golang.org/x/sync/errgroup"
)

const DefaultEnrichTimeout = 20 * time.Second

// Deps is everything a Journal talks to. Zero-valued optional fields get
// defaults in NewJournal.
type Deps struct {
	StationID string
	Cache     *cache.Cache
	Feed      feed.Feed
	Generator generation.Generator
	Images    generation.ImageGenerator
	Session   identity.Session
	Logger    logging.Logger
	Location  *time.Location

	EnrichTimeout time.Duration

	Now       func() time.Time
	NewID     func() string
	StyleHint func() models.StyleHint
}

// View is what the presentation layer renders for one day.
type View struct {
	StationID string
	DayKey    string
	Entries   []models.LogEntry
	Mood      reconciler.Mood
	HasMood   bool
}

// Status summarizes the journal for diagnostics.
type Status struct {
	StationID    string
	Entries      int
	LocalOnly    int
	Placeholders int
	Enriching    int
	LastSnapshot time.Time
	LastDropped  int
}

type Journal struct {
	deps   Deps
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	// mu serializes every cache access and merge.
	mu           sync.Mutex
	inflight     map[string]context.CancelFunc
	listeners    []func(View)
	unsubscribe  func()
	closed       bool
	lastSnapshot time.Time
	lastDropped  int

	// notifyMu keeps listener calls in mutation order.
	notifyMu sync.Mutex
}

func NewJournal(deps Deps) (*Journal, error) {
	if deps.StationID == "" {
		return nil, fmt.Errorf("station id is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if deps.Feed == nil {
		deps.Feed = feed.Disabled{}
	}
	if deps.Generator == nil {
		deps.Generator = generation.Unavailable{}
	}
	if deps.Images == nil {
		deps.Images = generation.Unavailable{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.EnrichTimeout <= 0 {
		deps.EnrichTimeout = DefaultEnrichTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = identity.NewID
	}
	if deps.StyleHint == nil {
		deps.StyleHint = models.RandomStyleHint
	}
	if deps.Session.Author().Signature == "" {
		deps.Session = identity.NewSession("")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Journal{
		deps:     deps,
		logger:   deps.Logger.With("module", "journal", "station_id", deps.StationID),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]context.CancelFunc),
	}, nil
}

func (j *Journal) StationID() string {
	return j.deps.StationID
}

// OnChange registers fn to be called with the all-days view after every
// mutation that actually changed the cache. fn may read the journal but
// must not mutate it.
func (j *Journal) OnChange(fn func(View)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.listeners = append(j.listeners, fn)
}

// Start subscribes to the remote feed of the station and resumes the
// enrichment of entries left unfinished by a previous run.
func (j *Journal) Start(ctx context.Context) {
	j.mu.Lock()
	if j.closed || j.unsubscribe != nil {
		j.mu.Unlock()
		return
	}
	j.mu.Unlock()

	unsubscribe := j.deps.Feed.Subscribe(j.ctx, j.deps.StationID, j.applySnapshot)

	j.mu.Lock()
	j.unsubscribe = unsubscribe
	var resume []models.LogEntry
	for _, id := range j.deps.Cache.Pending() {
		e, ok := j.deps.Cache.Lookup(id)
		if !ok || e.StationID != j.deps.StationID {
			continue
		}
		if e.IsEnriched() {
			j.deps.Cache.ClearPending(ctx, id)
			continue
		}
		resume = append(resume, e)
	}
	j.mu.Unlock()

	for _, e := range resume {
		j.startEnrichment(e)
	}

	j.logger.Info(ctx, "journal started", "resumed", len(resume))
}

// Close stops the subscription, cancels enrichment still running and waits
// for it to finish.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	unsubscribe := j.unsubscribe
	j.unsubscribe = nil
	j.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	j.cancel()
	j.tasks.Wait()
}

// Wait blocks until every enrichment task started so far has finished.
func (j *Journal) Wait() {
	j.tasks.Wait()
}

// Create commits a placeholder entry for d and returns it right away. The
// remote write and the enrichment run in the background.
func (j *Journal) Create(ctx context.Context, d models.Draft) (models.LogEntry, error) {
	if err := d.Validate(); err != nil {
		return models.LogEntry{}, err
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return models.LogEntry{}, ErrClosed
	}
	e := models.NewPlaceholder(j.deps.NewID(), j.deps.StationID, d, j.deps.Session.Author(), j.deps.Now())
	j.deps.Cache.Upsert(ctx, e)
	j.deps.Cache.MarkPending(ctx, e.ID)
	j.deps.Cache.EvictOverflow(ctx)
	view := j.viewLocked("")
	j.mu.Unlock()
	j.emit(view)

	j.logger.Info(ctx, "entry created", "entry_id", e.ID, "mood", e.MoodLevel)

	j.startEnrichment(e)
	return e, nil
}

// recordRemoteKey stores key on the cached entry. If the entry was deleted
// while the write was in flight, the remote copy is deleted too.
func (j *Journal) recordRemoteKey(ctx context.Context, id, key string, fallback models.LogEntry) models.LogEntry {
	j.mu.Lock()
	cur, ok := j.deps.Cache.Lookup(id)
	if !ok {
		j.mu.Unlock()
		j.logger.Debug(ctx, "entry deleted during write", "entry_id", id)
		j.deps.Feed.Delete(context.WithoutCancel(ctx), j.deps.StationID, key)
		return fallback
	}
	cur.RemoteKey = key
	cur.Sync = models.SyncSynced
	changed := j.deps.Cache.Upsert(ctx, cur)
	view := j.viewLocked("")
	j.mu.Unlock()

	if changed {
		j.emit(view)
	}
	return cur
}

func (j *Journal) startEnrichment(e models.LogEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	if _, running := j.inflight[e.ID]; running {
		return
	}

	ctx, cancel := context.WithCancel(j.ctx)
	j.inflight[e.ID] = cancel
	j.tasks.Add(1)

	go func() {
		defer j.tasks.Done()
		defer j.finishTask(e.ID, cancel)
		j.run(ctx, e)
	}()
}

func (j *Journal) finishTask(id string, cancel context.CancelFunc) {
	cancel()
	j.mu.Lock()
	delete(j.inflight, id)
	j.mu.Unlock()
}

// run offers the placeholder to the remote feed, then enriches it. A task
// cancelled by Close leaves the entry pending for the next Start.
func (j *Journal) run(ctx context.Context, e models.LogEntry) {
	if e.RemoteKey == "" {
		if key, ok := j.deps.Feed.Write(ctx, j.deps.StationID, e); ok {
			e = j.recordRemoteKey(ctx, e.ID, key, e)
		}
	}
	if ctx.Err() != nil {
		return
	}
	j.enrich(ctx, e)
}

func (j *Journal) enrich(ctx context.Context, e models.LogEntry) {
	patch := j.generate(ctx, e)
	if ctx.Err() != nil {
		j.logger.Debug(ctx, "enrichment cancelled", "entry_id", e.ID)
		return
	}

	j.mu.Lock()
	cur, ok := j.deps.Cache.Lookup(e.ID)
	if !ok {
		j.mu.Unlock()
		j.logger.Debug(ctx, "entry gone before enrichment finished", "entry_id", e.ID)
		return
	}
	if cur.IsEnriched() {
		// a remote echo already carried the enriched content
		j.deps.Cache.ClearPending(ctx, e.ID)
		j.mu.Unlock()
		return
	}
	enriched := cur.WithContent(patch)
	j.deps.Cache.Upsert(ctx, enriched)
	j.deps.Cache.ClearPending(ctx, e.ID)
	view := j.viewLocked("")
	j.mu.Unlock()
	j.emit(view)

	if enriched.RemoteKey != "" {
		j.deps.Feed.Patch(ctx, j.deps.StationID, enriched.RemoteKey, patch)
		return
	}
	if key, ok := j.deps.Feed.Write(ctx, j.deps.StationID, enriched); ok {
		j.recordRemoteKey(ctx, e.ID, key, enriched)
	}
}

// generate runs both collaborators in parallel and always returns usable
// content, falling back on any failure.
func (j *Journal) generate(ctx context.Context, e models.LogEntry) models.ContentPatch {
	gctx, cancel := context.WithTimeout(ctx, j.deps.EnrichTimeout)
	defer cancel()

	var (
		g        errgroup.Group
		bundle   generation.Bundle
		imageRef string
	)

	g.Go(func() error {
		b, err := j.deps.Generator.Generate(gctx, generation.Request{Text: e.Text, MoodLevel: e.MoodLevel})
		if err == nil {
			b, err = b.Normalize()
		}
		if err != nil {
			j.logger.Warn(ctx, "generation failed, using fallback", "entry_id", e.ID, "error", err)
			b = generation.Fallback()
		}
		bundle = b
		return nil
	})

	g.Go(func() error {
		ref, err := j.deps.Images.Image(gctx, generation.ImageRequest{Text: e.Text, MoodLevel: e.MoodLevel, Zone: e.Zone})
		if err != nil {
			j.logger.Warn(ctx, "image generation failed", "entry_id", e.ID, "error", err)
			ref = ""
		}
		imageRef = ref
		return nil
	})

	_ = g.Wait()

	return models.ContentPatch{
		State:        models.StateEnriched,
		Theme:        bundle.Theme,
		Tags:         bundle.Tags,
		ReplyMessage: bundle.Reply,
		FullCard: &models.FullCard{
			Quote:      bundle.Quote,
			LuckyItem:  bundle.LuckyItem,
			Relaxation: bundle.Relaxation,
			ImageRef:   imageRef,
			StyleHint:  j.deps.StyleHint(),
		},
	}
}

// Delete removes id locally right away and asks the remote store to drop
// its copy. It reports whether the entry existed.
func (j *Journal) Delete(ctx context.Context, id string) bool {
	j.mu.Lock()
	cur, ok := j.deps.Cache.Lookup(id)
	if !ok || cur.StationID != j.deps.StationID {
		j.mu.Unlock()
		return false
	}
	j.deps.Cache.Remove(ctx, id)
	if cancel, running := j.inflight[id]; running {
		cancel()
	}
	view := j.viewLocked("")
	j.mu.Unlock()
	j.emit(view)

	j.logger.Info(ctx, "entry deleted", "entry_id", id)
	j.deps.Feed.Delete(ctx, j.deps.StationID, cur.RemoteKey)
	return true
}

// ClearUpTo removes every entry of the station created at or before cutoff,
// locally and remotely, and returns how many local entries went.
func (j *Journal) ClearUpTo(ctx context.Context, cutoff time.Time) int {
	j.mu.Lock()
	var removed []string
	n := j.deps.Cache.RemoveWhere(ctx, func(e models.LogEntry) bool {
		if e.StationID == j.deps.StationID && !e.CreatedAt.After(cutoff) {
			removed = append(removed, e.ID)
			return true
		}
		return false
	})
	j.deps.Cache.MarkCleared(ctx, j.deps.StationID, cutoff, j.deps.Now())
	for _, id := range removed {
		if cancel, running := j.inflight[id]; running {
			cancel()
		}
	}
	view := j.viewLocked("")
	j.mu.Unlock()

	if n > 0 {
		j.emit(view)
	}

	j.logger.Info(ctx, "entries cleared", "cutoff", cutoff, "removed", n)
	j.deps.Feed.DeleteBefore(ctx, j.deps.StationID, cutoff)
	return n
}

// View returns the entries of dayKey (YYYY-MM-DD, empty for all days) with
// the collective mood of those entries.
func (j *Journal) View(dayKey string) View {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.viewLocked(dayKey)
}

// Days returns the station's entries grouped by local calendar day.
func (j *Journal) Days() []reconciler.Day {
	j.mu.Lock()
	entries := j.deps.Cache.Get(j.deps.StationID, "")
	j.mu.Unlock()
	return reconciler.Partition(entries, j.deps.Location)
}

func (j *Journal) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	st := Status{
		StationID:    j.deps.StationID,
		Enriching:    len(j.inflight),
		LastSnapshot: j.lastSnapshot,
		LastDropped:  j.lastDropped,
	}
	for _, e := range j.deps.Cache.Get(j.deps.StationID, "") {
		st.Entries++
		if e.Sync != models.SyncSynced {
			st.LocalOnly++
		}
		if !e.IsEnriched() {
			st.Placeholders++
		}
	}
	return st
}

func (j *Journal) viewLocked(dayKey string) View {
	entries := j.deps.Cache.Get(j.deps.StationID, dayKey)
	mood, ok := reconciler.CollectiveMood(entries)
	return View{
		StationID: j.deps.StationID,
		DayKey:    dayKey,
		Entries:   entries,
		Mood:      mood,
		HasMood:   ok,
	}
}

func (j *Journal) applySnapshot(snap models.Snapshot) {
	ctx := j.ctx

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}

	local := j.deps.Cache.Get(j.deps.StationID, "")
	res := reconciler.Merge(local, snap, j.deps.Cache)

	// entries past capacity would be evicted again right away
	merged := res.Entries
	if limit := j.deps.Cache.Capacity(); len(merged) > limit {
		merged = merged[:limit]
	}

	changed := false
	for _, e := range merged {
		if j.deps.Cache.Upsert(ctx, e) {
			changed = true
		}
	}
	if j.deps.Cache.EvictOverflow(ctx) > 0 {
		changed = true
	}

	j.lastSnapshot = snap.ReceivedAt
	j.lastDropped = res.Dropped
	view := j.viewLocked("")
	j.mu.Unlock()

	if res.Dropped > 0 {
		j.logger.Warn(ctx, "skipped malformed documents", "dropped", res.Dropped)
	}
	j.logger.Debug(ctx, "snapshot merged",
		"documents", len(snap.Documents),
		"confirmed", res.Confirmed,
		"inserted", res.Inserted,
		"suppressed", res.Suppressed,
		"changed", changed,
	)

	if changed {
		j.emit(view)
	}
}

func (j *Journal) emit(v View) {
	j.notifyMu.Lock()
	defer j.notifyMu.Unlock()

	j.mu.Lock()
	listeners := append([]func(View){}, j.listeners...)
	j.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}
