package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *metadata.SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL, updated_at TEXT NOT NULL DEFAULT '')`)
	require.NoError(t, err)
	return metadata.NewSQLiteRepository(db)
}

func entry(id, station string, at time.Time) models.LogEntry {
	return models.NewPlaceholder(id, station,
		models.Draft{MoodLevel: 50, Text: "note " + id},
		models.Author{Signature: "Visitor-0001", Color: "#fff"}, at)
}

func ids(list []models.LogEntry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

type recLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recLogger) Debug(context.Context, string, ...any) {}
func (l *recLogger) Info(context.Context, string, ...any)  {}
func (l *recLogger) Warn(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *recLogger) Error(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *recLogger) With(...any) logging.Logger { return l }

type failingRepo struct {
	metadata.Repository
	getErr error
	setErr error
	sets   int
}

func (f *failingRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Repository.Get(ctx, key)
}

func (f *failingRepo) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	return f.Repository.Set(ctx, key, value)
}

func TestUpsert_IdempotentAndPersisted(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	c := Open(ctx, repo, logging.Nop(), Options{Location: time.UTC})

	e := entry("a", "lobby", base)
	assert.True(t, c.Upsert(ctx, e))
	assert.False(t, c.Upsert(ctx, e), "same entry twice is a no-op")
	assert.Equal(t, 1, c.Len())

	enriched := e.WithContent(models.ContentPatch{State: models.StateEnriched, Theme: "Calm", Tags: []string{"#rest"}})
	assert.True(t, c.Upsert(ctx, enriched))

	reopened := Open(ctx, repo, logging.Nop(), Options{Location: time.UTC})
	got, ok := reopened.Lookup("a")
	require.True(t, ok)
	assert.True(t, got.Equal(enriched))
}

func TestUpsert_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, newRepo(t), logging.Nop(), Options{})

	bad := entry("a", "lobby", base)
	bad.MoodLevel = 400
	assert.False(t, c.Upsert(ctx, bad))
	assert.Zero(t, c.Len())
}

func TestGet_FiltersStationAndDay(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, newRepo(t), logging.Nop(), Options{Location: time.UTC})

	c.Upsert(ctx, entry("a", "lobby", base))
	c.Upsert(ctx, entry("b", "lobby", base.Add(time.Hour)))
	c.Upsert(ctx, entry("c", "lobby", base.Add(24*time.Hour)))
	c.Upsert(ctx, entry("d", "hall", base))

	assert.Equal(t, []string{"b", "a"}, ids(c.Get("lobby", "2026-05-04")))
	assert.Equal(t, []string{"c"}, ids(c.Get("lobby", "2026-05-05")))
	assert.Equal(t, []string{"c", "b", "a"}, ids(c.Get("lobby", "")))
	assert.Empty(t, c.Get("nowhere", ""))
}

func TestEvictOverflow_KeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	c := Open(ctx, repo, logging.Nop(), Options{Capacity: 50})

	for i := range 60 {
		c.Upsert(ctx, entry(fmt.Sprintf("e%02d", i), "lobby", base.Add(time.Duration(i)*time.Minute)))
		c.EvictOverflow(ctx)
	}

	all := c.All()
	require.Len(t, all, 50)
	assert.Equal(t, "e59", all[0].ID)
	assert.Equal(t, "e10", all[49].ID)

	_, ok := c.Lookup("e09")
	assert.False(t, ok)

	reopened := Open(ctx, repo, logging.Nop(), Options{Capacity: 50})
	assert.Equal(t, 50, reopened.Len())
}

func TestOpen_TrimsOversizedState(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	big := Open(ctx, repo, logging.Nop(), Options{Capacity: 10})
	for i := range 10 {
		big.Upsert(ctx, entry(fmt.Sprintf("e%d", i), "lobby", base.Add(time.Duration(i)*time.Second)))
	}

	small := Open(ctx, repo, logging.Nop(), Options{Capacity: 4})
	assert.Equal(t, []string{"e9", "e8", "e7", "e6"}, ids(small.All()))
}

func TestRemove_LeavesTombstone(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	c := Open(ctx, repo, logging.Nop(), Options{})

	e := entry("a", "lobby", base)
	c.Upsert(ctx, e)

	assert.True(t, c.Remove(ctx, "a"))
	assert.False(t, c.Remove(ctx, "a"))
	assert.True(t, c.Suppressed(e))

	reopened := Open(ctx, repo, logging.Nop(), Options{})
	assert.True(t, reopened.Suppressed(e))
	assert.False(t, reopened.Suppressed(entry("b", "lobby", base)))
}

func TestRemoveWhere(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, newRepo(t), logging.Nop(), Options{})

	c.Upsert(ctx, entry("a", "lobby", base))
	c.Upsert(ctx, entry("b", "lobby", base.Add(time.Minute)))
	c.Upsert(ctx, entry("c", "hall", base))

	n := c.RemoveWhere(ctx, func(e models.LogEntry) bool {
		return e.StationID == "lobby" && !e.CreatedAt.After(base)
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b", "c"}, ids(c.All()))
	assert.Zero(t, c.RemoveWhere(ctx, func(models.LogEntry) bool { return false }))
}

func TestMarkCleared_SuppressesAtOrBeforeCutoff(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	c := Open(ctx, repo, logging.Nop(), Options{})

	now := base.Add(time.Hour)
	c.MarkCleared(ctx, "lobby", base, now)
	c.MarkCleared(ctx, "lobby", base.Add(-time.Hour), now)

	assert.True(t, c.Suppressed(entry("x", "lobby", base)))
	assert.True(t, c.Suppressed(entry("y", "lobby", base.Add(-time.Second))))
	assert.False(t, c.Suppressed(entry("z", "lobby", base.Add(time.Second))))
	assert.False(t, c.Suppressed(entry("w", "hall", base.Add(-time.Hour))))

	reopened := Open(ctx, repo, logging.Nop(), Options{})
	assert.True(t, reopened.Suppressed(entry("x", "lobby", base)), "watermark must not move backwards")
}

func TestMarkCleared_FutureCutoffClampedToNow(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, newRepo(t), logging.Nop(), Options{})

	c.MarkCleared(ctx, "lobby", base.Add(2*time.Hour), base)

	assert.True(t, c.Suppressed(entry("before", "lobby", base)))
	assert.False(t, c.Suppressed(entry("later", "lobby", base.Add(time.Minute))))
}

func TestPending_PersistedAndPruned(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	c := Open(ctx, repo, logging.Nop(), Options{})

	for i, id := range []string{"a", "b", "c"} {
		require.True(t, c.Upsert(ctx, entry(id, "lobby", base.Add(time.Duration(i)*time.Minute))))
		c.MarkPending(ctx, id)
	}
	c.MarkPending(ctx, "unknown")
	assert.Equal(t, []string{"a", "b", "c"}, c.Pending())

	c.ClearPending(ctx, "b")
	c.Remove(ctx, "c")
	assert.Equal(t, []string{"a"}, c.Pending())

	reopened := Open(ctx, repo, logging.Nop(), Options{})
	assert.Equal(t, []string{"a"}, reopened.Pending())

	reopened.RemoveWhere(ctx, func(models.LogEntry) bool { return true })
	assert.Empty(t, reopened.Pending())
}

func TestPending_DroppedOnEviction(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, newRepo(t), logging.Nop(), Options{Capacity: 1})

	require.True(t, c.Upsert(ctx, entry("old", "lobby", base)))
	c.MarkPending(ctx, "old")
	require.True(t, c.Upsert(ctx, entry("new", "lobby", base.Add(time.Minute))))
	require.Equal(t, 1, c.EvictOverflow(ctx))

	assert.Empty(t, c.Pending())
}

func TestOpen_CorruptBlobStartsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Set(ctx, DefaultKey, []byte("{not json")))

	log := &recLogger{}
	c := Open(ctx, repo, log, Options{})
	assert.Zero(t, c.Len())
	assert.NotEmpty(t, log.warns)
}

func TestOpen_DropsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	blob := `[
	  {"id":"ok","stationId":"lobby","moodLevel":10,"createdAt":"2026-05-04T09:00:00Z","state":"placeholder"},
	  {"id":"","stationId":"lobby","moodLevel":10,"createdAt":"2026-05-04T09:00:00Z","state":"placeholder"},
	  {"id":"bad","stationId":"lobby","moodLevel":900,"createdAt":"2026-05-04T09:00:00Z","state":"placeholder"}
	]`
	require.NoError(t, repo.Set(ctx, DefaultKey, []byte(blob)))

	c := Open(ctx, repo, logging.Nop(), Options{})
	assert.Equal(t, []string{"ok"}, ids(c.All()))
}

func TestPersistFailure_IsLoggedNotReturned(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{Repository: newRepo(t), setErr: errors.New("disk full")}
	log := &recLogger{}
	c := Open(ctx, repo, log, Options{})

	assert.True(t, c.Upsert(ctx, entry("a", "lobby", base)))
	_, ok := c.Lookup("a")
	assert.True(t, ok, "in-memory state survives a failed write")
	assert.Equal(t, 1, repo.sets)
	assert.NotEmpty(t, log.errors)
}

func TestOpen_ReadFailureStartsEmpty(t *testing.T) {
	repo := &failingRepo{Repository: newRepo(t), getErr: errors.New("locked")}
	log := &recLogger{}
	c := Open(context.Background(), repo, log, Options{})

	assert.Zero(t, c.Len())
	assert.NotEmpty(t, log.errors)
}

func TestTombstonesAreBounded(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, newRepo(t), logging.Nop(), Options{})

	for i := range maxTombstones + 20 {
		c.Remove(ctx, fmt.Sprintf("gone-%d", i))
	}
	assert.Len(t, c.tombstones, maxTombstones)
}
