package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hszk-dev/vidshelf/internal/config"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/queue"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/storage"
	"github.com/hszk-dev/vidshelf/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	cleanupSvc := usecase.NewCleanupService(blobs, usecase.CleanupServiceConfig{
		MaxRetries: cfg.Worker.MaxRetries,
	})

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Tasks run on the consumer goroutine, which returns only after the
	// current task, so its exit marks the end of in-flight work.
	consumerDone := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		defer close(consumerDone)
		logger.Info("starting worker, consuming blob cleanup tasks",
			slog.String("storage", cfg.Storage.Backend),
			slog.Int("max_retries", cfg.Worker.MaxRetries),
		)
		err := queueClient.ConsumeCleanupTasks(ctx, func(task repository.CleanupTask) error {
			// Deletes are short; finish the current one even during shutdown.
			return cleanupSvc.ProcessTask(context.WithoutCancel(ctx), task)
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()

	select {
	case <-consumerDone:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}

// openBlobStore opens the same blob backend the API server writes to.
func openBlobStore(ctx context.Context, cfg *config.Config) (repository.BlobStore, error) {
	if cfg.Storage.Backend == config.BackendMinIO {
		store, err := storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKey:       cfg.MinIO.AccessKey,
			SecretKey:       cfg.MinIO.SecretKey,
			Bucket:          cfg.MinIO.Bucket,
			UseSSL:          cfg.MinIO.UseSSL,
			PlaceholderPath: cfg.Storage.PlaceholderPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		slog.Info("connected to MinIO", slog.String("bucket", cfg.MinIO.Bucket))
		return store, nil
	}

	store, err := storage.NewFilesystem(storage.FilesystemConfig{
		VideoDir:        cfg.Storage.UploadDir,
		ThumbnailDir:    cfg.Storage.ThumbnailDir,
		PlaceholderPath: cfg.Storage.PlaceholderPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare blob directories: %w", err)
	}
	return store, nil
}
