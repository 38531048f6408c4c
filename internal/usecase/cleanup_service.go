package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/metrics"
)

const (
	// DefaultMaxRetries is the default number of attempts before a cleanup task is dropped.
	DefaultMaxRetries = 5
)

// CleanupServiceConfig holds configuration for CleanupService.
type CleanupServiceConfig struct {
	// MaxRetries is the retry count at which a task is dropped.
	MaxRetries int
}

// DefaultCleanupServiceConfig returns the default configuration.
func DefaultCleanupServiceConfig() CleanupServiceConfig {
	return CleanupServiceConfig{
		MaxRetries: DefaultMaxRetries,
	}
}

// CleanupService retries blob deletes that failed while deleting a video.
type CleanupService interface {
	// ProcessTask deletes the blob named by task.
	// Returns nil on success or when the task is dropped.
	// Returns error for failures that should be retried.
	ProcessTask(ctx context.Context, task repository.CleanupTask) error
}

type cleanupService struct {
	blobs      repository.BlobStore
	maxRetries int
}

// NewCleanupService creates a new CleanupService instance.
func NewCleanupService(blobs repository.BlobStore, cfg CleanupServiceConfig) CleanupService {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &cleanupService{
		blobs:      blobs,
		maxRetries: cfg.MaxRetries,
	}
}

func (s *cleanupService) ProcessTask(ctx context.Context, task repository.CleanupTask) error {
	kind := string(task.Kind)

	if task.RetryCount >= s.maxRetries {
		slog.Error("dropping blob cleanup task after max retries",
			"kind", kind,
			"name", task.Name,
			"retry_count", task.RetryCount,
		)
		metrics.BlobDeletesTotal.WithLabelValues(kind, metrics.BlobDeleteDropped).Inc()
		return nil
	}

	var err error
	switch task.Kind {
	case repository.BlobKindVideo:
		err = s.blobs.DeleteVideo(ctx, task.Name)
	case repository.BlobKindThumbnail:
		err = s.blobs.DeleteThumbnail(ctx, task.Name)
	default:
		slog.Warn("dropping cleanup task of unknown kind",
			"kind", kind,
			"name", task.Name,
		)
		return nil
	}

	if err != nil {
		metrics.BlobDeletesTotal.WithLabelValues(kind, metrics.BlobDeleteError).Inc()
		return fmt.Errorf("delete %s %q: %w", kind, task.Name, err)
	}

	slog.Info("blob cleanup completed",
		"kind", kind,
		"name", task.Name,
		"retry_count", task.RetryCount,
	)
	metrics.BlobDeletesTotal.WithLabelValues(kind, metrics.BlobDeleteSuccess).Inc()
	return nil
}
