package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hszk-dev/vidshelf/internal/domain/repository"
)

// FilesystemConfig holds configuration for the local blob store.
type FilesystemConfig struct {
	VideoDir        string
	ThumbnailDir    string
	PlaceholderPath string
}

// Filesystem implements repository.BlobStore on two local directories.
type Filesystem struct {
	videoDir    string
	thumbDir    string
	placeholder string
}

// Compile-time verification that Filesystem implements repository.BlobStore.
var _ repository.BlobStore = (*Filesystem)(nil)

// NewFilesystem creates the video and thumbnail directories if needed and
// makes sure a placeholder image is available.
func NewFilesystem(cfg FilesystemConfig) (*Filesystem, error) {
	for _, dir := range []string{cfg.VideoDir, cfg.ThumbnailDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := EnsurePlaceholder(cfg.PlaceholderPath); err != nil {
		return nil, fmt.Errorf("failed to prepare placeholder: %w", err)
	}

	return &Filesystem{
		videoDir:    cfg.VideoDir,
		thumbDir:    cfg.ThumbnailDir,
		placeholder: cfg.PlaceholderPath,
	}, nil
}

// SaveVideo writes r under a free name derived from suggestedName.
// The file is created with O_EXCL, so a concurrent upload that picked the
// same candidate moves on to the next suffix instead of overwriting.
func (s *Filesystem) SaveVideo(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	base := SanitizeFilename(suggestedName)

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name := candidateName(base, attempt)

		// A free video name whose thumbnail slot is taken would make two
		// videos share one thumbnail.
		if _, err := os.Stat(s.ThumbnailPath(name)); err == nil {
			continue
		}

		path := filepath.Join(s.videoDir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return "", fmt.Errorf("failed to create video file: %w", err)
		}

		if err := writeAndClose(f, r); err != nil {
			_ = os.Remove(path) // Best-effort cleanup of the partial file
			return "", fmt.Errorf("failed to write video file: %w", err)
		}

		return name, nil
	}

	return "", fmt.Errorf("%w: %s", repository.ErrNameExhausted, base)
}

// SaveThumbnail atomically replaces the thumbnail of videoName.
func (s *Filesystem) SaveThumbnail(ctx context.Context, videoName string, r io.Reader) (string, error) {
	if !validBlobName(videoName) {
		return "", fmt.Errorf("invalid video name %q", videoName)
	}
	name := ThumbnailNameFor(videoName)

	f, err := os.CreateTemp(s.thumbDir, ".thumb-*")
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail file: %w", err)
	}
	tmp := f.Name()

	if err := writeAndClose(f, r); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write thumbnail file: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(s.thumbDir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to store thumbnail: %w", err)
	}

	return name, nil
}

// OpenVideo opens a stored video.
func (s *Filesystem) OpenVideo(ctx context.Context, name string) (*repository.Object, error) {
	if !validBlobName(name) {
		return nil, repository.ErrObjectNotFound
	}
	return openLocalFile(filepath.Join(s.videoDir, name), name)
}

// ResolveThumbnail opens the named thumbnail or falls back to the placeholder.
func (s *Filesystem) ResolveThumbnail(ctx context.Context, name string) (*repository.Object, error) {
	path := s.ResolveThumbnailPath(name)
	if path == s.placeholder {
		return s.OpenPlaceholder(ctx)
	}

	obj, err := openLocalFile(path, name)
	if errors.Is(err, repository.ErrObjectNotFound) {
		// Removed between the stat and the open.
		return s.OpenPlaceholder(ctx)
	}
	return obj, err
}

// OpenPlaceholder opens the placeholder image.
func (s *Filesystem) OpenPlaceholder(ctx context.Context) (*repository.Object, error) {
	return openLocalFile(s.placeholder, filepath.Base(s.placeholder))
}

// ResolveThumbnailPath returns the path of the named thumbnail if it exists
// as a regular file, otherwise the placeholder path.
func (s *Filesystem) ResolveThumbnailPath(name string) string {
	if !validBlobName(name) {
		return s.placeholder
	}
	path := filepath.Join(s.thumbDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return s.placeholder
	}
	return path
}

// ThumbnailPath returns where the thumbnail of videoName lives.
func (s *Filesystem) ThumbnailPath(videoName string) string {
	return filepath.Join(s.thumbDir, ThumbnailNameFor(videoName))
}

// VideoPath returns where the video named name lives.
func (s *Filesystem) VideoPath(name string) string {
	return filepath.Join(s.videoDir, name)
}

// DeleteVideo removes a stored video.
func (s *Filesystem) DeleteVideo(ctx context.Context, name string) error {
	return removeIfExists(s.videoDir, name)
}

// DeleteThumbnail removes a stored thumbnail.
func (s *Filesystem) DeleteThumbnail(ctx context.Context, name string) error {
	return removeIfExists(s.thumbDir, name)
}

func removeIfExists(dir, name string) error {
	if !validBlobName(name) {
		return nil
	}
	err := os.Remove(filepath.Join(dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

func writeAndClose(f *os.File, r io.Reader) error {
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
