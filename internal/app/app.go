package app

import (
	"context"
	"fmt"

	"tributary/internal/config"
	"tributary/internal/extract"
	"tributary/internal/models"
	"tributary/internal/orchestrator"
	"tributary/internal/services"
	"tributary/internal/store"
	"tributary/internal/store/primary"
	"tributary/internal/tenant"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

// App wires the stores, queue client and services every command runs on.
type App struct {
	Config *config.Config

	Store       *primary.StoreImpl
	JobStore    store.JobStore
	TenantStore store.TenantStore
	MergeWriter store.MergeWriter
	JobClient   store.JobClient

	Resolver     *tenant.Resolver
	Orchestrator *orchestrator.Orchestrator
	JobService   *services.JobService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{Config: cfg}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initCoreServices()

	log.Debug("Application initialization complete")
	return app, nil
}

func (a *App) initStore(ctx context.Context) error {
	st, err := primary.NewStore(ctx, a.Config.Database.DSN)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	a.Store = st
	a.JobStore = st
	a.TenantStore = st
	a.MergeWriter = st
	return nil
}

func (a *App) initJobClient() error {
	a.JobClient = store.NewAsynqJobClient(store.RedisOptions{
		Address:  a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}, a.Config.Worker.MaxRetry)
	return nil
}

func (a *App) initCoreServices() {
	cfg := a.Config
	a.Resolver = tenant.NewResolver(a.TenantStore)
	a.Orchestrator = orchestrator.New(
		a.JobStore,
		a.Resolver,
		a.MergeWriter,
		NewExtractorFactory(cfg),
		orchestrator.Config{
			TypeConcurrency: cfg.Ingestion.TypeConcurrency,
			JobTimeout:      cfg.Ingestion.JobTimeout,
			CancelGrace:     cfg.Ingestion.CancelGrace,
			FetchAttempts:   cfg.Ingestion.FetchAttempts,
			FetchRetryDelay: cfg.Ingestion.FetchRetryDelay,
			MasterDataTypes: cfg.Ingestion.MasterDataTypes,
		},
	)
	a.JobService = services.NewJobService(a.JobStore, a.JobClient)
}

// NewExtractorFactory routes each data type to the source that serves it:
// master-data types come from the tenant's file-drop bucket, everything else
// from the warehouse export API.
func NewExtractorFactory(cfg *config.Config) extract.Factory {
	master := make(map[string]bool, len(cfg.Ingestion.MasterDataTypes))
	for _, t := range cfg.Ingestion.MasterDataTypes {
		master[t] = true
	}

	return func(tc *models.TenantConfig, dataType string) (extract.Extractor, error) {
		if master[dataType] {
			awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
				awsconfig.WithRegion(tc.FileDrop.Region),
			)
			if err != nil {
				return nil, &extract.SourceConfigError{
					Source: store.SourceFileDrop,
					Err:    fmt.Errorf("load AWS config for region %q: %w", tc.FileDrop.Region, err),
				}
			}
			return extract.NewFileDropExtractor(s3.NewFromConfig(awsCfg), tc.FileDrop), nil
		}
		return extract.NewWarehouseExtractor(tc.Warehouse, cfg.Ingestion.PageSize), nil
	}
}

func (a *App) cleanupPartialInit() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.WithError(err).Warn("Error closing job client")
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// Close releases the app's connections.
func (a *App) Close() {
	a.cleanupPartialInit()
}
