package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
)

// ErrStale is returned by Set and SetList when the cache was invalidated
// after the caller read its generation. Nothing is written in that case.
var ErrStale = errors.New("cache generation changed")

// VideoCache defines the interface for caching catalog metadata.
// Implementations should handle serialization/deserialization transparently.
type VideoCache interface {
	// Get retrieves a video from cache by ID.
	// Returns nil, nil if the video is not found in cache (cache miss).
	Get(ctx context.Context, videoID int64) (*model.Video, error)

	// Generation returns the invalidation counter. Read it before loading
	// the value that will be cached.
	Generation(ctx context.Context) (int64, error)

	// Set stores a video in cache with the specified TTL, unless the
	// generation moved past generation (ErrStale).
	Set(ctx context.Context, video *model.Video, generation int64, ttl time.Duration) error

	// GetList retrieves the cached gallery listing.
	// Returns nil, nil on cache miss; an empty catalog is a non-nil empty slice.
	GetList(ctx context.Context) ([]*model.Video, error)

	// SetList stores the gallery listing with the specified TTL, unless the
	// generation moved past generation (ErrStale).
	SetList(ctx context.Context, videos []*model.Video, generation int64, ttl time.Duration) error

	// Invalidate advances the generation and removes the given videos and
	// the gallery listing. Missing keys are not an error.
	Invalidate(ctx context.Context, videoIDs ...int64) error
}
