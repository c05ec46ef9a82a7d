package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"docroute/internal/approval"
	"docroute/internal/config"
	"docroute/internal/domain"
	"docroute/internal/events"
	"docroute/internal/logging"
	"docroute/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.Must(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = logger.Sync() }()

	if cfg.StoreDriver != config.StoreDriverPostgres {
		logger.Fatal("event-handler requires the postgres store", zap.String("store", cfg.StoreDriver))
	}

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer store.Close()

	blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	if err != nil {
		logger.Fatal("connect minio", zap.Error(err))
	}
	blob.WithPublicURL(cfg.MinioPublicURL).WithAttachmentPrefix(cfg.AttachmentPrefix)

	// Image attachment does not consult the catalog.
	svc := approval.NewService(store, domain.DefaultCatalog(), logger)

	source := events.NewMinioAttachmentEventSource(blob.Client(), blob.Bucket(), cfg.AttachmentPrefix)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("event-handler listening for attachment uploads",
		zap.String("bucket", blob.Bucket()),
		zap.String("prefix", cfg.AttachmentPrefix),
	)
	if err := source.Run(ctx, events.NewAttachmentHandler(svc, blob.ObjectURL, logger)); err != nil {
		logger.Fatal("event-handler stopped with error", zap.Error(err))
	}
}
