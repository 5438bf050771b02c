package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/client"
	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultTimeout          = 5 * time.Second
	DefaultResubscribeDelay = 3 * time.Second

	maxResubscribeDelay = time.Minute
)

type RemoteOptions struct {
	// Timeout bounds each unary call.
	Timeout time.Duration
	// ResubscribeDelay is the first pause before reopening a dropped
	// stream. Consecutive failures back off exponentially.
	ResubscribeDelay time.Duration
}

// Remote adapts the gRPC store client to Feed.
type Remote struct {
	client client.Client
	logger logging.Logger
	opts   RemoteOptions
	now    func() time.Time
}

var _ Feed = (*Remote)(nil)

func NewRemote(c client.Client, logger logging.Logger, opts RemoteOptions) *Remote {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = DefaultResubscribeDelay
	}
	return &Remote{
		client: c,
		logger: logger.With("module", "feed"),
		opts:   opts,
		now:    time.Now,
	}
}

func (r *Remote) Subscribe(ctx context.Context, stationID string, fn func(models.Snapshot)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		r.subscribeLoop(ctx, stationID, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (r *Remote) subscribeLoop(ctx context.Context, stationID string, fn func(models.Snapshot)) {
	for ctx.Err() == nil {
		b := retry.WithCappedDuration(maxResubscribeDelay, retry.NewExponential(r.opts.ResubscribeDelay))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			received := false
			err := r.client.Subscribe(ctx, stationID, func(s *feedrpc.Snapshot) {
				received = true
				fn(r.toSnapshot(stationID, s))
			})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn(ctx, "subscription dropped", "station_id", stationID, "error", err)
			if received {
				// the stream was healthy; start over with a fresh backoff
				return errStreamEnded
			}
			if err == nil {
				err = errStreamEnded
			}
			return retry.RetryableError(err)
		})
		if errors.Is(err, errStreamEnded) {
			sleep(ctx, r.opts.ResubscribeDelay)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (r *Remote) toSnapshot(stationID string, s *feedrpc.Snapshot) models.Snapshot {
	out := models.Snapshot{
		StationID:  stationID,
		Documents:  make([]models.RemoteDocument, 0, len(s.Documents)),
		ReceivedAt: r.now(),
	}
	for _, d := range s.Documents {
		out.Documents = append(out.Documents, models.RemoteDocument{RemoteKey: d.RemoteKey, Body: d.Body})
	}
	return out
}

func (r *Remote) Write(ctx context.Context, stationID string, e models.LogEntry) (string, bool) {
	body, err := models.EncodeDocument(e)
	if err != nil {
		r.logger.Error(ctx, "encode failed", "entry_id", e.ID, "error", err)
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	key, err := r.client.Write(ctx, stationID, body)
	if err != nil {
		r.logger.Warn(ctx, "remote write failed", "entry_id", e.ID, "error", err)
		return "", false
	}
	return key, true
}

func (r *Remote) Patch(ctx context.Context, stationID, remoteKey string, p models.ContentPatch) {
	if remoteKey == "" {
		return
	}
	body, err := json.Marshal(p)
	if err != nil {
		r.logger.Error(ctx, "encode patch failed", "remote_key", remoteKey, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	if err := r.client.Patch(ctx, stationID, remoteKey, body); err != nil {
		r.logFailure(ctx, "remote patch failed", remoteKey, err)
	}
}

func (r *Remote) Delete(ctx context.Context, stationID, remoteKey string) {
	if remoteKey == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	if err := r.client.Delete(ctx, stationID, remoteKey); err != nil {
		r.logFailure(ctx, "remote delete failed", remoteKey, err)
	}
}

func (r *Remote) DeleteBefore(ctx context.Context, stationID string, cutoff time.Time) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	n, err := r.client.DeleteBefore(ctx, stationID, cutoff)
	if err != nil {
		r.logger.Warn(ctx, "remote clear failed", "station_id", stationID, "cutoff", cutoff, "error", err)
		return
	}
	r.logger.Info(ctx, "remote clear done", "station_id", stationID, "deleted", n)
}

func (r *Remote) logFailure(ctx context.Context, msg, remoteKey string, err error) {
	if errors.Is(err, common.ErrorNotFound) {
		// already gone; someone else trimmed or deleted it
		r.logger.Debug(ctx, msg, "remote_key", remoteKey, "error", err)
		return
	}
	r.logger.Warn(ctx, msg, "remote_key", remoteKey, "error", err)
}
