// Package server initializes and runs the imagehost application: it opens
// the database and blob store, wires the services into the HTTP API, runs
// the expired-link sweeper and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/logging"
	"github.com/dmitrijs2005/imagehost/internal/server/access"
	"github.com/dmitrijs2005/imagehost/internal/server/config"
	"github.com/dmitrijs2005/imagehost/internal/server/entitlements"
	"github.com/dmitrijs2005/imagehost/internal/server/httpapi"
	"github.com/dmitrijs2005/imagehost/internal/server/links"
	"github.com/dmitrijs2005/imagehost/internal/server/metrics"
	"github.com/dmitrijs2005/imagehost/internal/server/perks"
	"github.com/dmitrijs2005/imagehost/internal/server/renditions"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/memory"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/imagehost/internal/server/services"
	"github.com/dmitrijs2005/imagehost/internal/server/storage"
	"github.com/dmitrijs2005/imagehost/internal/server/sweeper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
	sweeper *sweeper.Sweeper
}

// Store bundles the persistence pieces NewApp picks from the config.
type Store struct {
	DB    *sql.DB
	Exec  dbx.Executor
	Repos repomanager.RepositoryManager
}

// OpenStore connects to PostgreSQL and applies migrations, or returns an
// in-memory store when cfg.DatabaseDSN is config.DatabaseMemory.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.DatabaseDSN == config.DatabaseMemory {
		mem := memory.NewStore(memory.DefaultTiers())
		return &Store{Exec: mem.Executor(), Repos: repomanager.NewInMemoryRepositoryManager(mem)}, nil
	}

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{DB: db, Exec: dbx.NewSQLExecutor(db), Repos: rm}, nil
}

// NewLinkManager builds the expiring link manager from config.
func NewLinkManager(cfg *config.Config, st *Store, authorizer links.Authorizer, logger logging.Logger, observer metrics.Observer) *links.Manager {
	return links.NewManager(st.Exec, st.Repos, authorizer, links.Options{
		MinDuration:   cfg.LinkMinDuration,
		MaxDuration:   cfg.LinkMaxDuration,
		PublicBaseURL: cfg.PublicBaseURL,
	}, time.Now, logger, observer)
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	var observer metrics.Observer = metrics.Nop{}
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		obs, err := metrics.NewPrometheusObserver("imagehost", reg)
		if err != nil {
			return nil, fmt.Errorf("metrics init error: %w", err)
		}
		observer = obs
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		closeDB(st.DB)
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	renderer, err := storage.NewImagingRenderer(blobs, cfg.RenditionCacheSize, logger, observer)
	if err != nil {
		closeDB(st.DB)
		return nil, err
	}

	catalog := perks.NewCatalog(cfg.OriginalImagePerk, cfg.ExpiringLinkPerk, cfg.ThumbnailPerks)
	ent := entitlements.NewStore(st.Repos.Accounts(st.Exec.Conn()), catalog)
	engine := access.NewEngine(ent, catalog, access.Policy{
		NativeHeightNeedsThumbnailPerk: cfg.NativeHeightNeedsThumbnailPerk,
	}, observer)

	linkManager := NewLinkManager(cfg, st, engine, logger, observer)

	imageService := services.NewImageService(services.ImageServiceDeps{
		Exec:          st.Exec,
		Repos:         st.Repos,
		Blobs:         blobs,
		Authorizer:    engine,
		Resolver:      renditions.NewResolver(blobs, renderer),
		Links:         linkManager,
		Catalog:       catalog,
		Renditions:    renderer,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
		Observer:      observer,
	})

	handlers := httpapi.NewHandlers(httpapi.Deps{
		Users:         services.NewUserService(st.Exec, st.Repos, ent, cfg),
		Images:        imageService,
		Links:         linkManager,
		PerkSets:      ent,
		Catalog:       catalog,
		PublicBaseURL: cfg.PublicBaseURL,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	})

	router := httpapi.NewRouter(handlers, httpapi.RouterOptions{
		SecretKey: []byte(cfg.SecretKey),
		Metrics:   metricsHandler,
		Logger:    logger,
	})

	sw := sweeper.New(linkManager, st.Repos.RefreshTokens(st.Exec.Conn()), cfg.SweepInterval, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      st.DB,
		handler: router,
		sweeper: sw,
	}, nil
}

// Handler returns the HTTP handler serving the API.
func (app *App) Handler() http.Handler {
	return app.handler
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(context.Background(), "HTTP shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves HTTP and sweeps expired links until ctx is cancelled or a
// termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.startHTTPServer(ctx)
	})
	g.Go(func() error {
		return app.sweeper.Run(ctx)
	})

	err := g.Wait()
	closeDB(app.db)
	return err
}

// SweepOnce runs a single sweep and releases the database.
func (app *App) SweepOnce(ctx context.Context) (sweeper.Result, error) {
	defer closeDB(app.db)
	return app.sweeper.RunOnce(ctx)
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
