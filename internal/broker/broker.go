// Package broker fans out "station changed" notifications to subscribers.
//
// Notifications carry no payload. Each subscriber channel holds at most one
// pending signal, so a slow reader sees a burst of mutations as a single
// wake-up and re-reads the current state.
package broker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/moodlog/internal/logging"
)

type Subscriber struct {
	ID        uint64
	StationID string
	C         chan struct{}
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[uint64]*Subscriber
	seq         atomic.Uint64
	logger      logging.Logger
}

func New(logger logging.Logger) *Broker {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Broker{
		subscribers: make(map[uint64]*Subscriber),
		logger:      logger.With("module", "broker"),
	}
}

// Subscribe registers interest in stationID.
func (b *Broker) Subscribe(ctx context.Context, stationID string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:        b.seq.Add(1),
		StationID: stationID,
		C:         make(chan struct{}, 1),
	}
	b.subscribers[sub.ID] = sub
	b.logger.Debug(ctx, "subscriber added", "subscriber_id", sub.ID, "station_id", stationID)
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (b *Broker) Unsubscribe(ctx context.Context, sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.ID]; ok {
		close(sub.C)
		delete(b.subscribers, sub.ID)
		b.logger.Debug(ctx, "subscriber removed", "subscriber_id", sub.ID)
	}
}

// Notify wakes every subscriber of stationID. It never blocks.
func (b *Broker) Notify(stationID string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.StationID != stationID {
			continue
		}
		select {
		case sub.C <- struct{}{}:
		default:
			// a signal is already pending
		}
	}
}

// Stations lists the stations that currently have subscribers.
func (b *Broker) Stations() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, sub := range b.subscribers {
		if _, ok := seen[sub.StationID]; ok {
			continue
		}
		seen[sub.StationID] = struct{}{}
		out = append(out, sub.StationID)
	}
	return out
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
