package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/handlers"
	"github.com/ternarybob/indago/internal/httpclient"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/services/agent"
	"github.com/ternarybob/indago/internal/services/events"
	"github.com/ternarybob/indago/internal/services/exporter"
	"github.com/ternarybob/indago/internal/services/fetcher"
	"github.com/ternarybob/indago/internal/services/oracle"
	"github.com/ternarybob/indago/internal/services/ratelimit"
	"github.com/ternarybob/indago/internal/services/scheduler"
	"github.com/ternarybob/indago/internal/services/sources"
	"github.com/ternarybob/indago/internal/storage/badger"
)

// App constructs and owns every service. All collaborators are built once
// here and passed down by reference; nothing in the tree reaches for a
// global.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService
	Oracle         *oracle.Service
	RateLimiter    *ratelimit.Limiter
	BrowserPool    *fetcher.BrowserPool
	Fetcher        *fetcher.Engine
	Exporter       *exporter.Service
	Crawler        *agent.Machine
	Scheduler      *scheduler.Service

	// Feed components; nil unless the server is enabled.
	WSHandler *handlers.WebSocketHandler
	LogFeed   *handlers.LogFeed
}

// New wires the application. Storage, oracle, and browser initialization
// failures are fatal here; everything downstream degrades at runtime
// instead of failing at startup.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(&cfg.Storage.Badger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, err
	}

	if cfg.Server.Enabled {
		app.initFeed()
	}

	logger.Info().
		Str("oracle_provider", app.Oracle.ProviderName()).
		Int("batch_size", cfg.Crawler.BatchSize).
		Bool("feed_enabled", cfg.Server.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initServices builds the crawl stack in dependency order.
func (a *App) initServices() error {
	oracleService, err := oracle.NewService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize oracle: %w", err)
	}
	a.Oracle = oracleService

	a.RateLimiter = ratelimit.NewLimiter(
		a.Config.Crawler.GlobalRate,
		a.Config.Crawler.DomainRate,
		a.Logger,
	)

	client, err := httpclient.NewFetchClient(a.Config)
	if err != nil {
		return fmt.Errorf("failed to build fetch client: %w", err)
	}

	browserPool, err := fetcher.NewBrowserPool(&a.Config.Browser, a.Config.Crawler.UserAgents, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser pool: %w", err)
	}
	a.BrowserPool = browserPool

	a.Fetcher = fetcher.NewEngine(
		a.Config,
		client,
		a.BrowserPool,
		a.StorageManager.CacheStorage(),
		a.RateLimiter,
		a.EventService,
		a.Logger,
	)

	a.Exporter = exporter.NewService(
		&a.Config.Export,
		a.StorageManager.RecordStorage(),
		a.Oracle,
		a.EventService,
		a.Logger,
	)

	seedSources := []interfaces.SeedSource{
		sources.NewIMAPSource(&a.Config.Sources.IMAP, a.Logger),
		sources.NewGitHubSource(&a.Config.Sources.GitHub, a.Logger),
	}

	a.Crawler = agent.NewMachine(
		a.Config,
		a.Oracle,
		a.Fetcher,
		a.Exporter,
		a.EventService,
		a.StorageManager.SessionStorage(),
		seedSources,
		a.Logger,
	)

	a.Scheduler = scheduler.NewService(a.Crawler, a.Logger)

	return nil
}

// initFeed builds the WebSocket event feed and registers the log channel on
// the logger so WARN+ lines reach connected clients.
func (a *App) initFeed() {
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	a.LogFeed = handlers.NewLogFeed(a.WSHandler, a.Logger, &a.Config.WebSocket)
	a.Logger.SetChannel("websocket", a.LogFeed.Channel())
	a.LogFeed.Start()
}

// Close shuts the application down in reverse dependency order: scheduler
// first so no new session starts, then the browser pool with a drain
// timeout, then the bus and storage.
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}

	if a.BrowserPool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := a.BrowserPool.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Browser pool shutdown failed")
		}
		cancel()
	}

	if a.LogFeed != nil {
		if err := a.LogFeed.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Log feed close failed")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service close failed")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
