package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docroute/internal/api"
	"docroute/internal/approval"
	"docroute/internal/config"
	"docroute/internal/domain"
	"docroute/internal/logging"
	"docroute/internal/storage"
	appTemporal "docroute/internal/temporal"
)

type documentStore interface {
	approval.DocumentStore
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.Must(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = logger.Sync() }()

	catalog := domain.DefaultCatalog()
	if cfg.CatalogFile != "" {
		catalog, err = domain.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			logger.Fatal("load catalog", zap.String("path", cfg.CatalogFile), zap.Error(err))
		}
	}

	var store documentStore
	opts := []approval.Option{approval.WithMaxAttempts(cfg.CheckInAttempts)}
	var h *api.Handler

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		// Standalone mode: no object storage and no issuance workflow.
		store = storage.NewMemoryStore()
		svc := approval.NewService(store, catalog, logger, opts...)
		h = api.NewHandler(cfg, svc, store, nil, logger)
		logger.Warn("running with in-memory store; qr codes and attachments are disabled")
	default:
		pg, err := storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = pg.Ping(ctx)
		cancel()
		if err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		store = pg

		blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
		if err != nil {
			logger.Fatal("connect minio", zap.Error(err))
		}
		blob.WithPublicURL(cfg.MinioPublicURL).WithAttachmentPrefix(cfg.AttachmentPrefix)

		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			logger.Fatal("connect temporal", zap.Error(err))
		}
		defer temporalClient.Close()

		issuer := appTemporal.NewIssuer(temporalClient, cfg.TemporalTaskQueue, cfg.WorkflowIDPrefix)
		svc := approval.NewService(store, catalog, logger, append(opts, approval.WithIssuanceStarter(issuer))...)
		h = api.NewHandler(cfg, svc, store, blob, logger)
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
	}
}
