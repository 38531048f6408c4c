package repository

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for video and thumbnail blob storage.
// Implementations should be provided by the infrastructure layer (e.g., local filesystem, MinIO).
type BlobStore interface {
	// SaveVideo sanitizes suggestedName, derives a name that is not in use
	// (appending _1, _2, ... before the extension) and writes r under it.
	// Returns the stored name. Never overwrites an existing video.
	SaveVideo(ctx context.Context, r io.Reader, suggestedName string) (string, error)

	// SaveThumbnail stores the thumbnail image of a stored video under
	// ThumbnailNameFor(videoName) and returns that name.
	SaveThumbnail(ctx context.Context, videoName string, r io.Reader) (string, error)

	// OpenVideo opens a stored video for reading.
	// Returns ErrObjectNotFound if it does not exist.
	// Caller is responsible for closing the returned Object.
	OpenVideo(ctx context.Context, name string) (*Object, error)

	// ResolveThumbnail opens the named thumbnail, or the placeholder image if
	// no such thumbnail exists. It never returns ErrObjectNotFound.
	ResolveThumbnail(ctx context.Context, name string) (*Object, error)

	// OpenPlaceholder opens the placeholder image.
	OpenPlaceholder(ctx context.Context) (*Object, error)

	// DeleteVideo removes a stored video. A missing video is not an error.
	DeleteVideo(ctx context.Context, name string) error

	// DeleteThumbnail removes a stored thumbnail. A missing thumbnail is not an error.
	DeleteThumbnail(ctx context.Context, name string) error
}

// Object is an open blob ready to be streamed.
type Object struct {
	io.ReadSeekCloser
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
}
