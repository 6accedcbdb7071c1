// Package server wires configuration, storage, the file-field saga and the
// HTTP API together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/delivery"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/metrics"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/config"
	"github.com/dmitrijs2005/cardkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	local    *blobstore.Local
	saga     *saga.Saga
	accounts *services.AccountService
	http     *httpapi.Server
}

// OpenDatabase connects to PostgreSQL and applies pending migrations.
func OpenDatabase(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, rm, nil
}

// StorageOptions maps the configuration onto blobstore.Open options.
func StorageOptions(c *config.Config) blobstore.Options {
	return blobstore.Options{
		Backend:   c.StorageBackend,
		LocalRoot: c.UploadsDir,
		S3: blobstore.S3Config{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			AccessKeyID:     c.S3RootUser,
			SecretAccessKey: c.S3RootPassword,
			BaseEndpoint:    c.S3BaseEndpoint,
			UsePathStyle:    c.S3UsePathStyle,
		},
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, rm, err := OpenDatabase(ctx, c)
	if err != nil {
		return nil, err
	}

	store, err := blobstore.Open(ctx, StorageOptions(c))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	local, _ := store.(*blobstore.Local)

	m := metrics.New()
	blobs := m.InstrumentBlobStore(store)

	files := saga.New(blobs, rm.Fields(db), logger.With("module", "saga"), saga.WithObserver(m))
	resolver := delivery.NewResolver(blobs, c.SignedURLTTL)
	baseURL := strings.TrimRight(c.PublicBaseURL, "/")

	accounts := services.NewAccountService(db, rm, c.SecretKey, c.AccessTokenValidityDuration)

	srv := httpapi.NewServer(httpapi.Options{
		Address:              c.EndpointAddrHTTP,
		SecretKey:            c.SecretKey,
		MaxUploadBytes:       c.MaxUploadBytes,
		MaxConcurrentUploads: int64(c.MaxConcurrentUploads),
		ShutdownTimeout:      c.ShutdownTimeout,
	}, httpapi.Deps{
		Profiles:   services.NewProfileService(db, rm, files, resolver, baseURL, logger),
		Industries: services.NewIndustryService(db, rm, files, resolver, baseURL, logger),
		Catalog:    services.NewLinkCatalogService(db, rm),
		Accounts:   accounts,
		Delivery:   delivery.NewHandler(resolver, logger.With("module", "delivery"), m),
		Metrics:    m,
		Logger:     logger,
		Health:     db.PingContext,
	})

	logger.Info(ctx, "App initialized",
		"storage", store.Backend(),
		"max_upload", c.MaxUploadSize(),
		"max_concurrent_uploads", c.MaxConcurrentUploads,
	)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		local:    local,
		saga:     files,
		accounts: accounts,
		http:     srv,
	}, nil
}

func (app *App) warnIfNoAdmins(ctx context.Context) {
	n, err := app.accounts.CountAdmins(ctx)
	if err != nil {
		app.logger.Warn(ctx, "could not count admins", "err", err)
		return
	}
	if n == 0 {
		app.logger.Warn(ctx, "no admin accounts exist; create one with cardkeeper-admin add <username>")
	}
}

// Run serves until SIGINT, SIGTERM or SIGQUIT, then drains in-flight
// requests and background blob cleanups before closing the database.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")
	app.warnIfNoAdmins(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if app.local != nil {
		err := blobstore.RunTempSweeper(gctx, app.local, app.config.TempFileTTL, app.config.TempSweepSchedule, app.logger.With("module", "sweeper"))
		if err != nil {
			return errors.Join(err, app.close())
		}
	}

	g.Go(func() error {
		return app.http.Run(gctx)
	})

	err := g.Wait()
	app.logger.Info(ctx, "Waiting for background cleanups...")
	app.saga.Wait()

	return errors.Join(err, app.close())
}

func (app *App) close() error {
	if err := app.db.Close(); err != nil {
		return fmt.Errorf("db close error: %w", err)
	}
	return nil
}
