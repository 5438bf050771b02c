package feed

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/client"
	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func entry(id string, at time.Time) models.LogEntry {
	return models.NewPlaceholder(id, "lobby", models.Draft{MoodLevel: 50, Text: "hello"},
		models.Author{Signature: "Visitor-AAAA", Color: "#fff"}, at)
}

/*************
 * Disabled
 *************/

func TestDisabled_IsInert(t *testing.T) {
	ctx := context.Background()
	var f Feed = Disabled{}

	called := false
	stop := f.Subscribe(ctx, "lobby", func(models.Snapshot) { called = true })
	stop()

	key, ok := f.Write(ctx, "lobby", entry("a", t0))
	assert.False(t, ok)
	assert.Empty(t, key)

	f.Patch(ctx, "lobby", "k", models.ContentPatch{})
	f.Delete(ctx, "lobby", "k")
	f.DeleteBefore(ctx, "lobby", t0)
	assert.False(t, called)
}

/*************
 * Remote
 *************/

type fakeClient struct {
	client.Client

	mu        sync.Mutex
	writeKey  string
	err       error
	patched   map[string]json.RawMessage
	deleted   []string
	cutoffs   []time.Time
	subCalls  int
	snapshots []*feedrpc.Snapshot
	deadline  bool
}

func (f *fakeClient) Write(ctx context.Context, _ string, body json.RawMessage) (string, error) {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return "", f.err
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", err
	}
	if _, ok := doc["sync"]; ok {
		return "", common.ErrInvalidDocument
	}
	return f.writeKey, nil
}

func (f *fakeClient) Patch(_ context.Context, _, key string, patch json.RawMessage) error {
	if f.patched == nil {
		f.patched = map[string]json.RawMessage{}
	}
	f.patched[key] = patch
	return f.err
}

func (f *fakeClient) Delete(_ context.Context, _, key string) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

func (f *fakeClient) DeleteBefore(_ context.Context, _ string, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 2, f.err
}

func (f *fakeClient) Subscribe(ctx context.Context, _ string, fn func(*feedrpc.Snapshot)) error {
	f.mu.Lock()
	f.subCalls++
	snaps := f.snapshots
	f.snapshots = nil
	f.mu.Unlock()

	for _, s := range snaps {
		fn(s)
	}
	// first stream drops immediately, later ones block until cancelled
	if len(snaps) > 0 {
		return client.ErrUnavailable
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subCalls
}

func TestRemote_WriteStripsBookkeepingAndUsesTimeout(t *testing.T) {
	fc := &fakeClient{writeKey: "rk-1"}
	r := NewRemote(fc, logging.Nop(), RemoteOptions{})

	e := entry("a", t0)
	e.RemoteKey = "stale"
	key, ok := r.Write(context.Background(), "lobby", e)

	require.True(t, ok)
	require.Equal(t, "rk-1", key)
	require.True(t, fc.deadline)
}

func TestRemote_WriteFailureIsSwallowed(t *testing.T) {
	fc := &fakeClient{err: client.ErrUnavailable}
	r := NewRemote(fc, logging.Nop(), RemoteOptions{})

	key, ok := r.Write(context.Background(), "lobby", entry("a", t0))
	require.False(t, ok)
	require.Empty(t, key)
}

func TestRemote_PatchAndDeleteSkipEmptyKey(t *testing.T) {
	fc := &fakeClient{}
	r := NewRemote(fc, logging.Nop(), RemoteOptions{})
	ctx := context.Background()

	r.Patch(ctx, "lobby", "", models.ContentPatch{State: models.StateEnriched})
	r.Delete(ctx, "lobby", "")
	require.Empty(t, fc.patched)
	require.Empty(t, fc.deleted)

	r.Patch(ctx, "lobby", "rk-1", models.ContentPatch{State: models.StateEnriched, Theme: "Calm", Tags: []string{"#rest"}})
	require.JSONEq(t, `{"state":"enriched","theme":"Calm","tags":["#rest"],"replyMessage":""}`, string(fc.patched["rk-1"]))

	fc.err = common.ErrorNotFound
	r.Delete(ctx, "lobby", "rk-1")
	require.Equal(t, []string{"rk-1"}, fc.deleted)
}

func TestRemote_DeleteBefore(t *testing.T) {
	fc := &fakeClient{}
	r := NewRemote(fc, logging.Nop(), RemoteOptions{})
	r.DeleteBefore(context.Background(), "lobby", t0)
	require.Equal(t, []time.Time{t0}, fc.cutoffs)
}

func TestRemote_SubscribeConvertsAndResubscribes(t *testing.T) {
	fc := &fakeClient{snapshots: []*feedrpc.Snapshot{{
		StationID: "lobby",
		Documents: []feedrpc.Document{{RemoteKey: "rk-1", Body: json.RawMessage(`{"id":"a"}`)}},
	}}}
	r := NewRemote(fc, logging.Nop(), RemoteOptions{ResubscribeDelay: time.Millisecond})

	got := make(chan models.Snapshot, 4)
	stop := r.Subscribe(context.Background(), "lobby", func(s models.Snapshot) { got <- s })

	select {
	case s := <-got:
		require.Equal(t, "lobby", s.StationID)
		require.Len(t, s.Documents, 1)
		require.Equal(t, "rk-1", s.Documents[0].RemoteKey)
		require.False(t, s.ReceivedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	require.Eventually(t, func() bool { return fc.calls() >= 2 }, time.Second, 5*time.Millisecond)

	stop()
	stop()
}

// closingClient ends every stream cleanly without sending anything.
type closingClient struct {
	client.Client
	subCalls atomic.Int32
}

func (c *closingClient) Subscribe(context.Context, string, func(*feedrpc.Snapshot)) error {
	c.subCalls.Add(1)
	return nil
}

func TestRemote_EmptyStreamBacksOff(t *testing.T) {
	cc := &closingClient{}
	r := NewRemote(cc, logging.Nop(), RemoteOptions{ResubscribeDelay: 20 * time.Millisecond})

	stop := r.Subscribe(context.Background(), "lobby", func(models.Snapshot) {
		t.Error("no snapshot expected")
	})
	time.Sleep(150 * time.Millisecond)
	stop()

	n := cc.subCalls.Load()
	require.GreaterOrEqual(t, n, int32(2))
	require.LessOrEqual(t, n, int32(6))
}

/*************
 * Memory
 *************/

func TestMemory_WriteDedupesByEntryID(t *testing.T) {
	m := NewMemory(0, nil)
	ctx := context.Background()

	k1, ok := m.Write(ctx, "lobby", entry("a", t0))
	require.True(t, ok)
	k2, ok := m.Write(ctx, "lobby", entry("a", t0))
	require.True(t, ok)
	require.Equal(t, k1, k2)
	require.Len(t, m.Snapshot("lobby").Documents, 1)
}

func TestMemory_TrimsToLimitNewestFirst(t *testing.T) {
	m := NewMemory(3, nil)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		_, ok := m.Write(ctx, "lobby", entry(id, t0.Add(time.Duration(i)*time.Minute)))
		require.True(t, ok)
	}

	var ids []string
	for _, d := range m.Snapshot("lobby").Documents {
		meta, err := feedrpc.ReadMeta(d.Body)
		require.NoError(t, err)
		ids = append(ids, meta.EntryID)
	}
	require.Equal(t, []string{"e", "d", "c"}, ids)
}

func TestMemory_PatchDeleteDeleteBefore(t *testing.T) {
	m := NewMemory(0, nil)
	ctx := context.Background()

	ka, _ := m.Write(ctx, "lobby", entry("a", t0.Add(-2*time.Second)))
	m.Write(ctx, "lobby", entry("b", t0.Add(-time.Second)))
	m.Write(ctx, "lobby", entry("c", t0.Add(time.Second)))

	m.Patch(ctx, "lobby", ka, models.ContentPatch{State: models.StateEnriched, Theme: "Calm", Tags: []string{"#rest"}})
	docs := m.Snapshot("lobby").Documents
	e, err := models.DecodeDocument("lobby", docs[len(docs)-1])
	require.NoError(t, err)
	require.Equal(t, "a", e.ID)
	require.Equal(t, "Calm", e.Theme)
	require.Equal(t, "hello", e.Text)

	m.DeleteBefore(ctx, "lobby", t0)
	docs = m.Snapshot("lobby").Documents
	require.Len(t, docs, 1)

	m.Delete(ctx, "lobby", docs[0].RemoteKey)
	require.Empty(t, m.Snapshot("lobby").Documents)
}

func TestMemory_RejectsForeignStationAndOffline(t *testing.T) {
	m := NewMemory(0, nil)
	ctx := context.Background()

	_, err := m.Put("lobby", json.RawMessage(`{"id":"x","stationId":"garden","createdAt":"2026-05-04T10:00:00Z"}`))
	require.ErrorIs(t, err, errStation)

	m.SetOffline(true)
	_, ok := m.Write(ctx, "lobby", entry("a", t0))
	require.False(t, ok)

	m.SetOffline(false)
	_, ok = m.Write(ctx, "lobby", entry("a", t0))
	require.True(t, ok)
}

func TestMemory_SubscribePushesInitialAndOnChange(t *testing.T) {
	m := NewMemory(0, nil)
	ctx := context.Background()

	got := make(chan models.Snapshot, 8)
	stop := m.Subscribe(ctx, "lobby", func(s models.Snapshot) { got <- s })
	defer stop()

	first := <-got
	require.Empty(t, first.Documents)

	_, ok := m.Write(ctx, "lobby", entry("a", t0))
	require.True(t, ok)

	require.Eventually(t, func() bool {
		select {
		case s := <-got:
			return len(s.Documents) == 1
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
