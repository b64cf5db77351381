package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/extractor"
	importhandler "github.com/FACorreiaa/subscription-tracker/internal/domain/import/handler"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/normalizer"
	importservice "github.com/FACorreiaa/subscription-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/dedupe"
	subscriptionshandler "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/handler"
	subscriptionsrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	subscriptionsservice "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/service"

	"github.com/FACorreiaa/subscription-tracker/pkg/config"
	"github.com/FACorreiaa/subscription-tracker/pkg/cron"
	"github.com/FACorreiaa/subscription-tracker/pkg/db"
	"github.com/FACorreiaa/subscription-tracker/pkg/metrics"
	"github.com/FACorreiaa/subscription-tracker/pkg/money"
	"github.com/FACorreiaa/subscription-tracker/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	SubscriptionsRepo subscriptionsrepo.SubscriptionRepository
	OverrideStore     *normalizer.OverrideStore

	// Services
	ImportService        *importservice.ImportService
	SubscriptionsService *subscriptionsservice.Service
	FileStorage          storage.Storage
	Scheduler            *cron.Scheduler

	// Handlers
	ImportHandler        *importhandler.ImportHandler
	SubscriptionsHandler *subscriptionshandler.SubscriptionsHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.NewDefault()
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.SubscriptionsRepo = subscriptionsrepo.NewPostgresSubscriptionRepository(d.DB.Pool)
	d.OverrideStore = normalizer.NewOverrideStore(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	fileStorage, err := storage.NewLocalStorage(d.Config.Storage.BasePath)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	ext := extractor.NewExtractor(nil, extractor.WithRowTolerance(d.Config.Import.RowTolerance))
	d.ImportService = importservice.NewImportService(ext, d.Logger).
		WithOverrideStore(d.OverrideStore).
		WithStorage(d.FileStorage).
		WithMetrics(d.Metrics).
		WithMaxUploadBytes(d.Config.Import.MaxUploadBytes)

	policy, err := dedupe.ParsePolicy(d.Config.Subscriptions.DuplicatePolicy)
	if err != nil {
		return err
	}
	d.SubscriptionsService = subscriptionsservice.NewService(d.SubscriptionsRepo, money.DefaultConverter(), d.Logger,
		subscriptionsservice.WithDuplicatePolicy(policy),
		subscriptionsservice.WithDisplayCurrency(d.Config.Subscriptions.DisplayCurrency),
		subscriptionsservice.WithMetrics(d.Metrics),
	)

	// Retention sweep for stored statement uploads
	d.Scheduler = cron.NewScheduler(d.FileStorage, d.Config.Storage.Retention, d.Config.Storage.SweepSchedule, d.Metrics, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	// A data URL carries base64, a third larger than the decoded file.
	maxBody := d.Config.Import.MaxUploadBytes*4/3 + 64<<10
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.OverrideStore, d.FileStorage, maxBody, d.Logger)
	d.SubscriptionsHandler = subscriptionshandler.NewSubscriptionsHandler(d.SubscriptionsService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
