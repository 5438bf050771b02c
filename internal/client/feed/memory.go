package feed

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/broker"
	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/google/uuid"
)

// DefaultLimit is how many recent documents a station keeps.
const DefaultLimit = 60

type memDoc struct {
	key  string
	meta feedrpc.Meta
	body json.RawMessage
}

// Memory is an in-process multi-writer store. Several journals sharing one
// Memory behave like clients of the same remote station.
type Memory struct {
	mu      sync.Mutex
	limit   int
	docs    map[string][]memDoc
	broker  *broker.Broker
	offline atomic.Bool
	logger  logging.Logger
}

var _ Feed = (*Memory)(nil)

func NewMemory(limit int, logger logging.Logger) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Memory{
		limit:  limit,
		docs:   make(map[string][]memDoc),
		broker: broker.New(logger),
		logger: logger.With("module", "memfeed"),
	}
}

// SetOffline makes every later operation fail as if the store were
// unreachable. Subscriptions stay open but receive nothing new.
func (m *Memory) SetOffline(v bool) {
	m.offline.Store(v)
}

// Snapshot returns the current documents of stationID, newest first.
func (m *Memory) Snapshot(stationID string) models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.docs[stationID]
	out := models.Snapshot{
		StationID:  stationID,
		Documents:  make([]models.RemoteDocument, 0, len(docs)),
		ReceivedAt: time.Now(),
	}
	for _, d := range docs {
		out.Documents = append(out.Documents, models.RemoteDocument{RemoteKey: d.key, Body: slices.Clone(d.body)})
	}
	return out
}

func (m *Memory) Subscribe(ctx context.Context, stationID string, fn func(models.Snapshot)) func() {
	ctx, cancel := context.WithCancel(ctx)
	sub := m.broker.Subscribe(ctx, stationID)
	done := make(chan struct{})

	go func() {
		defer close(done)
		fn(m.Snapshot(stationID))
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				if m.offline.Load() {
					continue
				}
				fn(m.Snapshot(stationID))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			m.broker.Unsubscribe(ctx, sub)
			<-done
		})
	}
}

func (m *Memory) Write(ctx context.Context, stationID string, e models.LogEntry) (string, bool) {
	body, err := models.EncodeDocument(e)
	if err != nil {
		m.logger.Error(ctx, "encode failed", "entry_id", e.ID, "error", err)
		return "", false
	}
	key, err := m.Put(stationID, body)
	if err != nil {
		m.logger.Warn(ctx, "write failed", "entry_id", e.ID, "error", err)
		return "", false
	}
	return key, true
}

// Put stores a raw document body the way a remote writer would. A second
// write of the same entry id replaces the body and keeps the key.
func (m *Memory) Put(stationID string, body json.RawMessage) (string, error) {
	if m.offline.Load() {
		return "", errOffline
	}
	meta, err := feedrpc.ReadMeta(body)
	if err != nil {
		return "", err
	}
	if meta.StationID != "" && meta.StationID != stationID {
		return "", errStation
	}

	m.mu.Lock()
	docs := m.docs[stationID]
	key := ""
	for i := range docs {
		if docs[i].meta.EntryID == meta.EntryID {
			key = docs[i].key
			docs[i].body = slices.Clone(body)
			break
		}
	}
	if key == "" {
		key = uuid.NewString()
		docs = append(docs, memDoc{key: key, meta: meta, body: slices.Clone(body)})
		slices.SortFunc(docs, newestFirst)
		if len(docs) > m.limit {
			docs = docs[:m.limit]
		}
	}
	m.docs[stationID] = docs
	m.mu.Unlock()

	m.broker.Notify(stationID)
	return key, nil
}

func (m *Memory) Patch(ctx context.Context, stationID, remoteKey string, p models.ContentPatch) {
	if remoteKey == "" || m.offline.Load() {
		return
	}
	patch, err := json.Marshal(p)
	if err != nil {
		m.logger.Error(ctx, "encode patch failed", "remote_key", remoteKey, "error", err)
		return
	}

	m.mu.Lock()
	changed := false
	docs := m.docs[stationID]
	for i := range docs {
		if docs[i].key != remoteKey {
			continue
		}
		merged, err := feedrpc.MergeBody(docs[i].body, patch)
		if err != nil {
			m.logger.Warn(ctx, "patch failed", "remote_key", remoteKey, "error", err)
			break
		}
		docs[i].body = merged
		changed = true
		break
	}
	m.mu.Unlock()

	if changed {
		m.broker.Notify(stationID)
	}
}

func (m *Memory) Delete(_ context.Context, stationID, remoteKey string) {
	if remoteKey == "" || m.offline.Load() {
		return
	}
	m.remove(stationID, func(d memDoc) bool { return d.key == remoteKey })
}

func (m *Memory) DeleteBefore(_ context.Context, stationID string, cutoff time.Time) {
	if m.offline.Load() {
		return
	}
	m.remove(stationID, func(d memDoc) bool { return !d.meta.CreatedAt.After(cutoff) })
}

func (m *Memory) remove(stationID string, pred func(memDoc) bool) {
	m.mu.Lock()
	before := len(m.docs[stationID])
	m.docs[stationID] = slices.DeleteFunc(m.docs[stationID], pred)
	changed := len(m.docs[stationID]) != before
	m.mu.Unlock()

	if changed {
		m.broker.Notify(stationID)
	}
}

func newestFirst(a, b memDoc) int {
	if c := b.meta.CreatedAt.Compare(a.meta.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.meta.EntryID, a.meta.EntryID)
}
