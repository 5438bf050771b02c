// Package server initializes and runs the remote store: PostgreSQL storage,
// the station broker and the StationFeed gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/broker"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/dmitrijs2005/moodlog/internal/server/config"
	"github.com/dmitrijs2005/moodlog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/moodlog/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/moodlog/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	feed   *services.FeedService
	server *gs.GRPCServer
}

// openDB is a seam for tests.
var openDB = repomanager.OpenPostgres

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	b := broker.New(logger)
	feed := services.NewFeedService(db, rm, b, logger, c.SnapshotLimit, c.RefreshInterval)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		feed:   feed,
		server: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, feed),
	}, nil
}

// Run serves until ctx is done and closes the database afterwards.
func (app *App) Run(ctx context.Context) error {

	app.logger.Info(ctx, "Starting app...")
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(ctx)
	})

	g.Go(func() error {
		app.reportSubscribers(ctx, app.config.RefreshInterval)
		return nil
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) reportSubscribers(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stations := app.feed.ActiveStations()
			if len(stations) > 0 {
				app.logger.Debug(ctx, "active stations", "count", len(stations), "stations", stations)
			}
		}
	}
}
