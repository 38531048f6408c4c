package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/metrics"
	"github.com/hszk-dev/vidshelf/internal/thumbnail"
)

var (
	// ErrUnsupportedFile is returned when an uploaded file's extension is not allowed.
	ErrUnsupportedFile = errors.New("file type not allowed")
)

// UploadInput contains one uploaded file.
type UploadInput struct {
	Filename string
	Content  io.Reader
}

// CatalogService defines the interface for video catalog operations.
type CatalogService interface {
	// Upload stores the file under a free name, generates its thumbnail
	// (falling back to the placeholder) and catalogs it.
	// Returns ErrUnsupportedFile without writing anything if the extension is not allowed.
	Upload(ctx context.Context, input UploadInput) (*model.Video, error)

	// List returns all videos, newest first.
	List(ctx context.Context) ([]*model.Video, error)

	// Get retrieves a video by ID.
	Get(ctx context.Context, id int64) (*model.Video, error)

	// UpdateAnnotation replaces the overlay text, and the title when non-empty.
	UpdateAnnotation(ctx context.Context, id int64, title, overlayText string) (*model.Video, error)

	// Delete removes the video, its blobs and its thumbnail.
	Delete(ctx context.Context, id int64) error

	// BulkDelete deletes each id in order, skipping unknown ones.
	// Returns the deleted ids in input order.
	BulkDelete(ctx context.Context, ids []int64) ([]int64, error)

	// OpenVideo opens a stored video blob for streaming.
	OpenVideo(ctx context.Context, filename string) (*repository.Object, error)

	// OpenThumbnail opens a thumbnail, or the placeholder if it does not exist.
	OpenThumbnail(ctx context.Context, filename string) (*repository.Object, error)

	// OpenPlaceholder opens the placeholder image.
	OpenPlaceholder(ctx context.Context) (*repository.Object, error)
}

// CatalogServiceConfig holds configuration for CatalogService.
type CatalogServiceConfig struct {
	// TempDir is the base directory for per-upload working files.
	TempDir string
	// AllowedExtensions is the upload allow-list.
	AllowedExtensions model.ExtensionSet
}

// DefaultCatalogServiceConfig returns the default configuration.
func DefaultCatalogServiceConfig() CatalogServiceConfig {
	return CatalogServiceConfig{
		TempDir:           filepath.Join(os.TempDir(), "vidshelf"),
		AllowedExtensions: model.NewExtensionSet(model.DefaultVideoExtensions),
	}
}

type catalogService struct {
	repo        repository.VideoRepository
	blobs       repository.BlobStore
	thumbnailer thumbnail.Generator
	cleanup     repository.CleanupQueue

	tempDir string
	allowed model.ExtensionSet
}

// NewCatalogService creates a new CatalogService instance.
// cleanup may be nil, in which case failed blob deletes are only logged.
func NewCatalogService(
	repo repository.VideoRepository,
	blobs repository.BlobStore,
	thumbnailer thumbnail.Generator,
	cleanup repository.CleanupQueue,
	cfg CatalogServiceConfig,
) CatalogService {
	allowed := cfg.AllowedExtensions
	if len(allowed) == 0 {
		allowed = model.NewExtensionSet(model.DefaultVideoExtensions)
	}
	return &catalogService{
		repo:        repo,
		blobs:       blobs,
		thumbnailer: thumbnailer,
		cleanup:     cleanup,
		tempDir:     cfg.TempDir,
		allowed:     allowed,
	}
}

// Upload streams the file into the blob store while keeping a local copy
// for ffmpeg, then catalogs it.
func (s *catalogService) Upload(ctx context.Context, input UploadInput) (*model.Video, error) {
	if input.Filename == "" || !s.allowed.Allows(input.Filename) {
		metrics.UploadsTotal.WithLabelValues(metrics.UploadSkipped).Inc()
		return nil, ErrUnsupportedFile
	}

	video, err := s.upload(ctx, input)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.UploadFailed).Inc()
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues(metrics.UploadCreated).Inc()
	return video, nil
}

func (s *catalogService) upload(ctx context.Context, input UploadInput) (*model.Video, error) {
	workDir, err := s.createWorkDir()
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer s.removeWorkDir(workDir)

	localPath := filepath.Join(workDir, "source"+strings.ToLower(filepath.Ext(input.Filename)))
	local, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("create local copy: %w", err)
	}

	stored, err := s.blobs.SaveVideo(ctx, io.TeeReader(input.Content, local), input.Filename)
	closeErr := local.Close()
	if err != nil {
		return nil, fmt.Errorf("save video: %w", err)
	}

	thumb := model.NoThumbnail
	if closeErr == nil {
		thumb = s.createThumbnail(ctx, stored, localPath, workDir)
	}

	video, err := model.NewVideo(stored, thumb)
	if err == nil {
		err = s.repo.Create(ctx, video)
	}
	if err != nil {
		s.deleteBlob(ctx, repository.BlobKindVideo, stored)
		if thumb != model.NoThumbnail {
			s.deleteBlob(ctx, repository.BlobKindThumbnail, thumb)
		}
		return nil, fmt.Errorf("create video: %w", err)
	}

	slog.Info("video uploaded",
		slog.Int64("video_id", video.ID),
		slog.String("filename", video.Filename),
		slog.Bool("thumbnail", video.HasThumbnail()),
	)
	return video, nil
}

// createThumbnail returns the stored thumbnail name, or NoThumbnail if any
// step fails.
func (s *catalogService) createThumbnail(ctx context.Context, stored, localPath, workDir string) string {
	out := filepath.Join(workDir, "thumbnail.jpg")
	if !s.thumbnailer.Generate(ctx, localPath, out) {
		metrics.ThumbnailsTotal.WithLabelValues(metrics.ThumbnailPlaceholder).Inc()
		return model.NoThumbnail
	}

	f, err := os.Open(out)
	if err != nil {
		metrics.ThumbnailsTotal.WithLabelValues(metrics.ThumbnailPlaceholder).Inc()
		return model.NoThumbnail
	}
	defer f.Close()

	name, err := s.blobs.SaveThumbnail(ctx, stored, f)
	if err != nil {
		slog.Warn("failed to store thumbnail",
			slog.String("filename", stored),
			slog.String("error", err.Error()),
		)
		metrics.ThumbnailsTotal.WithLabelValues(metrics.ThumbnailPlaceholder).Inc()
		return model.NoThumbnail
	}

	metrics.ThumbnailsTotal.WithLabelValues(metrics.ThumbnailGenerated).Inc()
	return name
}

// List returns all videos, newest first.
func (s *catalogService) List(ctx context.Context) ([]*model.Video, error) {
	return s.repo.List(ctx)
}

// Get retrieves a video by ID.
func (s *catalogService) Get(ctx context.Context, id int64) (*model.Video, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAnnotation applies the edit inside a repository transaction.
func (s *catalogService) UpdateAnnotation(ctx context.Context, id int64, title, overlayText string) (*model.Video, error) {
	return s.repo.Update(ctx, id, func(v *model.Video) error {
		return v.Annotate(title, overlayText)
	})
}

// Delete removes the row and, while it is still locked, its blobs.
func (s *catalogService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id, func(v *model.Video) {
		s.deleteBlob(ctx, repository.BlobKindVideo, v.Filename)
		if v.HasThumbnail() {
			s.deleteBlob(ctx, repository.BlobKindThumbnail, v.Thumbnail)
		}
	})
}

// BulkDelete deletes each distinct id once, in input order.
func (s *catalogService) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	deleted := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		err := s.Delete(ctx, id)
		switch {
		case err == nil:
			deleted = append(deleted, id)
		case errors.Is(err, repository.ErrVideoNotFound):
			// unknown ids are skipped
		default:
			return deleted, fmt.Errorf("delete video %d: %w", id, err)
		}
	}

	return deleted, nil
}

func (s *catalogService) OpenVideo(ctx context.Context, filename string) (*repository.Object, error) {
	return s.blobs.OpenVideo(ctx, filename)
}

func (s *catalogService) OpenThumbnail(ctx context.Context, filename string) (*repository.Object, error) {
	return s.blobs.ResolveThumbnail(ctx, filename)
}

func (s *catalogService) OpenPlaceholder(ctx context.Context) (*repository.Object, error) {
	return s.blobs.OpenPlaceholder(ctx)
}

// deleteBlob removes a blob best-effort. Failures are logged, counted and,
// when a cleanup queue is configured, handed to the worker.
func (s *catalogService) deleteBlob(ctx context.Context, kind repository.BlobKind, name string) {
	var err error
	switch kind {
	case repository.BlobKindVideo:
		err = s.blobs.DeleteVideo(ctx, name)
	case repository.BlobKindThumbnail:
		err = s.blobs.DeleteThumbnail(ctx, name)
	}

	if err == nil {
		metrics.BlobDeletesTotal.WithLabelValues(string(kind), metrics.BlobDeleteSuccess).Inc()
		return
	}

	slog.Warn("failed to delete blob",
		slog.String("kind", string(kind)),
		slog.String("name", name),
		slog.String("error", err.Error()),
	)
	metrics.BlobDeletesTotal.WithLabelValues(string(kind), metrics.BlobDeleteError).Inc()

	if s.cleanup == nil {
		return
	}

	task := repository.CleanupTask{Kind: kind, Name: name}
	if err := s.cleanup.PublishCleanupTask(context.WithoutCancel(ctx), task); err != nil {
		slog.Error("failed to enqueue blob cleanup",
			slog.String("kind", string(kind)),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.BlobDeletesTotal.WithLabelValues(string(kind), metrics.BlobDeleteRequeued).Inc()
}

// createWorkDir creates a private directory for one upload.
func (s *catalogService) createWorkDir() (string, error) {
	base := s.tempDir
	if base == "" {
		base = os.TempDir()
	}
	workDir := filepath.Join(base, uuid.NewString())
	if err := os.MkdirAll(workDir, 0700); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	return workDir, nil
}

func (s *catalogService) removeWorkDir(workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		slog.Warn("failed to remove upload work directory",
			slog.String("dir", workDir),
			slog.String("error", err.Error()),
		)
	}
}
