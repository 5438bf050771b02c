package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/blobstore"
	"github.com/dmitrijs2005/moodlog/internal/client/cache"
	"github.com/dmitrijs2005/moodlog/internal/client/client"
	"github.com/dmitrijs2005/moodlog/internal/client/config"
	"github.com/dmitrijs2005/moodlog/internal/client/feed"
	"github.com/dmitrijs2005/moodlog/internal/client/generation"
	"github.com/dmitrijs2005/moodlog/internal/client/identity"
	"github.com/dmitrijs2005/moodlog/internal/client/services"
	"github.com/dmitrijs2005/moodlog/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

const pingTimeout = 3 * time.Second

type App struct {
	config  *config.Config
	journal *services.Journal
	health  services.HealthService
	logger  logging.Logger
	loc     *time.Location

	reader *bufio.Reader
	out    io.Writer
	color  bool

	modeMu sync.RWMutex
	mode   Mode

	// updates counts journal changes since the last list.
	updates atomic.Int64

	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	repos := client.NewRepositories(db)

	ch := cache.Open(ctx, repos.Metadata, logger, cache.Options{
		Key:      c.CacheKey,
		Capacity: c.CacheCapacity,
		Location: loc,
	})

	var (
		apiClient client.Client
		fd        feed.Feed = feed.Disabled{}
	)
	if c.FeedConfigured() {
		gc, err := client.NewGRPCClient(c.FeedAddr)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		apiClient = gc
		fd = feed.NewRemote(gc, logger, feed.RemoteOptions{
			Timeout:          c.RemoteTimeout,
			ResubscribeDelay: c.ResubscribeDelay,
		})
	}

	journal, err := services.NewJournal(services.Deps{
		StationID:     c.StationID,
		Cache:         ch,
		Feed:          fd,
		Generator:     newGenerator(c, logger),
		Images:        newImageGenerator(ctx, c, logger),
		Session:       identity.NewSession(c.DeviceType),
		Logger:        logger,
		Location:      loc,
		EnrichTimeout: c.EnrichTimeout,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:  c,
		journal: journal,
		health:  services.NewHealthService(apiClient, repos.Metadata),
		logger:  logger.With("module", "cli"),
		loc:     loc,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		color:   isTerminal(int(os.Stdout.Fd())),
		closers: []func() error{db.Close},
	}
	journal.OnChange(func(services.View) { a.updates.Add(1) })
	return a, nil
}

func newGenerator(c *config.Config, logger logging.Logger) generation.Generator {
	if c.LLMAPIKey == "" {
		return generation.Unavailable{}
	}
	return generation.NewAnthropic(c.LLMAPIKey, c.LLMModel, logger)
}

func newImageGenerator(ctx context.Context, c *config.Config, logger logging.Logger) generation.ImageGenerator {
	if c.ImageEndpoint == "" {
		return generation.Unavailable{}
	}
	var store generation.BlobStore
	if c.S3Bucket != "" {
		s3, err := blobstore.NewS3Store(ctx, blobstore.Config{
			Region:    c.S3Region,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
			Bucket:    c.S3Bucket,
		})
		if err != nil {
			logger.Warn(ctx, "image uploads disabled", "error", err)
		} else {
			store = s3
		}
	}
	return generation.NewHTTPImage(c.ImageEndpoint, store, logger, nil)
}

func (a *App) Mode() Mode {
	a.modeMu.RLock()
	defer a.modeMu.RUnlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.modeMu.Unlock()

	if changed {
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

// Run starts the journal and the connectivity watcher and blocks in the REPL
// until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.Close(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.journal.Start(ctx)

	if a.config != nil && a.config.FeedConfigured() {
		a.modeMu.Lock()
		a.mode = ModeOffline
		a.modeMu.Unlock()
		go func() {
			a.checkOnline(ctx)
			a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
		}()
	} else {
		a.setMode(ModeDisabled)
	}

	printlnFn("Welcome to moodlog (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close stops the journal and releases the remote client and local store.
func (a *App) Close(ctx context.Context) {
	a.journal.Close()
	if err := a.health.Close(ctx); err != nil {
		a.logger.Warn(ctx, "closing remote client", "error", err)
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(ctx, "closing local store", "error", err)
		}
	}
	a.closers = nil
}

// StartOnlineStatusWatcher pings the remote store every interval and updates
// the mode until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.health.Ping(pingCtx)
	cancel()

	if err != nil {
		if a.Mode() == ModeOnline {
			a.setMode(ModeOffline)
		}
		return
	}
	if a.Mode() != ModeOnline {
		a.setMode(ModeOnline)
	}
}

func (a *App) getStatus() string {
	s := a.journal.StationID()
	if m := a.Mode(); m != "" {
		s += " " + string(m)
	}
	if n := a.updates.Load(); n > 0 {
		s += fmt.Sprintf(" +%d", n)
	}
	return fmt.Sprintf("(%s)", s)
}
