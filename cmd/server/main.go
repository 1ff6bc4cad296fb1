package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfrecampione/golden-review-backend/config"
	"github.com/alfrecampione/golden-review-backend/internal/catalyst"
	"github.com/alfrecampione/golden-review-backend/internal/database"
	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/internal/handler"
	"github.com/alfrecampione/golden-review-backend/internal/repository"
	"github.com/alfrecampione/golden-review-backend/internal/service"
	"github.com/alfrecampione/golden-review-backend/internal/storage"
	s3storage "github.com/alfrecampione/golden-review-backend/internal/storage/s3"
	"github.com/alfrecampione/golden-review-backend/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	provider := config.GetProvider()
	provider.MustLoad()
	cfg := provider.MustGet()

	obs := observability.NewProvider(observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
	})
	logger := obs.Logger("server")
	ctx := context.Background()

	db, err := database.Connect(&cfg.Database, obs.Logger("database"))
	if err != nil {
		logger.Error(ctx, "database connection failed", err, nil)
		os.Exit(1)
	}
	defer db.Close()

	store, err := s3storage.NewClient(&cfg.Storage, obs.Logger("storage"), obs.Metrics("storage"))
	if err != nil {
		logger.Error(ctx, "storage client failed", err, nil)
		os.Exit(1)
	}
	offloader := storage.NewOffloader(store, cfg.Storage.Bucket, cfg.Storage.Region,
		obs.Logger("storage"), obs.Metrics("storage"))

	lambdaClient, err := service.NewLambdaClient(&cfg.Lambda)
	if err != nil {
		logger.Error(ctx, "lambda client failed", err, nil)
		os.Exit(1)
	}

	catalogRepo := repository.NewCatalogRepository(db, obs.Logger("repository"), obs.Metrics("repository"))
	policyRepo := repository.NewPolicyRepository(db, obs.Logger("repository"))
	catalystClient := catalyst.NewClient(cfg.Catalyst, obs.Logger("catalyst"), obs.Metrics("catalyst"))

	materializer := service.NewMaterializer(catalystClient, obs.Logger("materializer"), obs.Metrics("materializer"))
	detector := service.NewApplicationDetector(store, offloader, obs.Logger("detector"), obs.Metrics("detector"))
	catalog := catalogStore{repo: catalogRepo}
	syncer := service.NewSyncOrchestrator(
		catalystClient, materializer, offloader, catalog, detector,
		cfg.Sync.ScratchDir, cfg.Sync.RecencyWindow,
		obs.Logger("syncer"), obs.Metrics("syncer"),
	)
	analyzer := service.NewAnalysisInvoker(lambdaClient, cfg.Lambda.FunctionName,
		obs.Logger("analysis"), obs.Metrics("analysis"))

	audit := service.NewAuditPolicyUseCase(
		policyResolver{repo: policyRepo}, syncer, catalog, detector, analyzer,
		obs.Logger("audit"), obs.Metrics("audit"),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.NewRouter(audit, cfg.Server.AllowedOrigins, obs.Logger("http")),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info(ctx, "server listening", observability.Fields{"addr": cfg.Server.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server stopped", err, nil)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info(ctx, "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "shutdown incomplete", err, nil)
	}
}

// catalogStore adapts the repository's concrete transaction type to the
// service-layer port.
type catalogStore struct {
	repo *repository.CatalogRepository
}

func (c catalogStore) Begin(ctx context.Context) (service.CatalogTx, error) {
	return c.repo.Begin(ctx)
}

func (c catalogStore) ExistingIDs(ctx context.Context, contactID int64) (map[string]struct{}, error) {
	return c.repo.ExistingIDs(ctx, contactID)
}

func (c catalogStore) ListByContact(ctx context.Context, contactID int64) ([]entity.CatalogEntry, error) {
	return c.repo.ListByContact(ctx, contactID)
}

// policyResolver translates the repository's sentinel into the service's.
type policyResolver struct {
	repo *repository.PolicyRepository
}

func (p policyResolver) CustomerIDByPolicy(ctx context.Context, policyNumber string) (string, error) {
	id, err := p.repo.CustomerIDByPolicy(ctx, policyNumber)
	if errors.Is(err, repository.ErrPolicyNotFound) {
		return "", service.ErrPolicyNotFound
	}
	return id, err
}
