package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/vidshelf/internal/api/handler"
	"github.com/hszk-dev/vidshelf/internal/api/middleware"
	"github.com/hszk-dev/vidshelf/internal/config"
	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/cache"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/postgres"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/queue"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/sqlite"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/storage"
	"github.com/hszk-dev/vidshelf/internal/thumbnail"
	"github.com/hszk-dev/vidshelf/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	checks := map[string]handler.Pinger{}

	videoRepo, closeDB, err := openRepository(ctx, cfg.Database, checks)
	if err != nil {
		return err
	}
	defer closeDB()

	blobs, err := openBlobStore(ctx, cfg.Storage, cfg.MinIO, checks)
	if err != nil {
		return err
	}

	var cleanupQueue repository.CleanupQueue
	if cfg.RabbitMQ.Enabled {
		queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer queueClient.Close()
		cleanupQueue = queueClient
		checks["rabbitmq"] = handler.PingFunc(func(context.Context) error {
			if !queueClient.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		})
		logger.Info("connected to RabbitMQ")
	}

	thumbnailer := thumbnail.NewFFmpegGenerator(thumbnail.FFmpegConfig{
		FFmpegPath: cfg.Thumbnail.FFmpegPath,
		SeekOffset: cfg.Thumbnail.SeekOffset,
		Timeout:    cfg.Thumbnail.Timeout,
	})

	if err := os.MkdirAll(cfg.Storage.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	catalogSvc := usecase.NewCatalogService(videoRepo, blobs, thumbnailer, cleanupQueue, usecase.CatalogServiceConfig{
		TempDir:           cfg.Storage.TempDir,
		AllowedExtensions: model.NewExtensionSet(cfg.Storage.AllowedExtensions),
	})

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		logger.Info("connected to Redis")

		catalogSvc = usecase.NewCachedCatalogService(
			catalogSvc,
			cache.NewRedisVideoCache(redisClient),
			usecase.CachedCatalogServiceConfig{CacheTTL: cfg.Redis.CacheTTL},
		)
	}

	r, err := setupRouter(logger, cfg, catalogSvc, checks)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			slog.Int("port", cfg.Server.Port),
			slog.String("database", cfg.Database.Driver),
			slog.String("storage", cfg.Storage.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openRepository connects to the configured catalog database. The returned
// func closes it.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, checks map[string]handler.Pinger) (repository.VideoRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.DSN()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		checks["database"] = pgClient
		slog.Info("connected to PostgreSQL")
		return postgres.NewVideoRepository(pgClient.Pool()), func() { _ = pgClient.Close() }, nil
	default:
		sqliteClient, err := sqlite.NewClient(ctx, sqlite.DefaultClientConfig(cfg.Path))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		checks["database"] = sqliteClient
		slog.Info("opened SQLite database", slog.String("path", cfg.Path))
		return sqlite.NewVideoRepository(sqliteClient.DB()), func() { _ = sqliteClient.Close() }, nil
	}
}

func openBlobStore(ctx context.Context, cfg config.StorageConfig, minioCfg config.MinIOConfig, checks map[string]handler.Pinger) (repository.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendMinIO:
		store, err := storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:        minioCfg.Endpoint,
			AccessKey:       minioCfg.AccessKey,
			SecretKey:       minioCfg.SecretKey,
			Bucket:          minioCfg.Bucket,
			UseSSL:          minioCfg.UseSSL,
			PlaceholderPath: cfg.PlaceholderPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		checks["storage"] = store
		slog.Info("connected to MinIO", slog.String("bucket", minioCfg.Bucket))
		return store, nil
	default:
		store, err := storage.NewFilesystem(storage.FilesystemConfig{
			VideoDir:        cfg.UploadDir,
			ThumbnailDir:    cfg.ThumbnailDir,
			PlaceholderPath: cfg.PlaceholderPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to prepare blob directories: %w", err)
		}
		return store, nil
	}
}

func setupRouter(logger *slog.Logger, cfg *config.Config, svc usecase.CatalogService, checks map[string]handler.Pinger) (*chi.Mux, error) {
	pages, err := handler.NewPageHandler(svc, handler.NewFlashStore(cfg.Server.SessionSecret), cfg.Server.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	videos := handler.NewVideoHandler(svc)
	health := handler.NewHealthHandler(checks)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics)

	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", handler.StaticFiles()))

	r.Get("/", pages.Gallery)
	r.Post("/upload", pages.Upload)
	r.Get("/video/{id}", pages.Detail)
	r.Get("/video/{id}/download", videos.Download)

	r.Get("/uploads/{filename}", videos.ServeVideo)
	r.Get("/thumbnails/{filename}", videos.ServeThumbnail)
	r.Get("/placeholder.jpg", videos.ServePlaceholder)

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos", videos.List)
		r.Post("/videos/bulk_delete", videos.BulkDelete)
		r.Get("/video/{id}", videos.Get)
		r.Post("/video/{id}/save_overlay", videos.SaveOverlay)
		r.Post("/video/{id}/delete", videos.Delete)
	})

	return r, nil
}
