package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/cache"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/metrics"
)

const listFlightKey = "list"

// CachedCatalogServiceConfig holds configuration for the cached catalog.
type CachedCatalogServiceConfig struct {
	// CacheTTL is the TTL for cached catalog metadata.
	CacheTTL time.Duration
}

// DefaultCachedCatalogServiceConfig returns the default configuration.
func DefaultCachedCatalogServiceConfig() CachedCatalogServiceConfig {
	return CachedCatalogServiceConfig{
		CacheTTL: 5 * time.Minute,
	}
}

// cachedCatalogService wraps CatalogService with read-through caching.
// Writes go to the delegate first and then invalidate the affected keys.
// Reads capture the cache generation before loading, so a load that raced
// with an invalidation is returned but never stored.
type cachedCatalogService struct {
	delegate CatalogService
	cache    cache.VideoCache
	sfGroup  singleflight.Group

	cacheTTL time.Duration
}

// NewCachedCatalogService creates a CatalogService that caches reads of delegate.
func NewCachedCatalogService(
	delegate CatalogService,
	videoCache cache.VideoCache,
	cfg CachedCatalogServiceConfig,
) CatalogService {
	return &cachedCatalogService{
		delegate: delegate,
		cache:    videoCache,
		cacheTTL: cfg.CacheTTL,
	}
}

// Upload delegates and drops the cached listing on success.
func (s *cachedCatalogService) Upload(ctx context.Context, input UploadInput) (*model.Video, error) {
	video, err := s.delegate.Upload(ctx, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return video, nil
}

// List serves the gallery listing from cache, coalescing concurrent misses.
func (s *cachedCatalogService) List(ctx context.Context) ([]*model.Video, error) {
	result, err, shared := s.sfGroup.Do(listFlightKey, func() (any, error) {
		return s.listWithCache(ctx)
	})
	recordFlight(shared)

	if err != nil {
		return nil, err
	}
	return result.([]*model.Video), nil
}

func (s *cachedCatalogService) listWithCache(ctx context.Context) ([]*model.Video, error) {
	videos, err := s.cache.GetList(ctx)
	if err != nil {
		recordCache(metrics.CacheOpGet, metrics.CacheStatusError)
		slog.Warn("cache list failed, falling back to database", "error", err)
	}
	if videos != nil {
		recordCache(metrics.CacheOpGet, metrics.CacheStatusHit)
		return videos, nil
	}
	recordCache(metrics.CacheOpGet, metrics.CacheStatusMiss)

	gen, genErr := s.generation(ctx)

	videos, err = s.delegate.List(ctx)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		recordSet(s.cache.SetList(ctx, videos, gen, s.cacheTTL), "video list")
	}
	return videos, nil
}

// Get retrieves a video with cache-aside and singleflight.
func (s *cachedCatalogService) Get(ctx context.Context, id int64) (*model.Video, error) {
	result, err, shared := s.sfGroup.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return s.getWithCache(ctx, id)
	})
	recordFlight(shared)

	if err != nil {
		return nil, err
	}
	return result.(*model.Video), nil
}

func (s *cachedCatalogService) getWithCache(ctx context.Context, id int64) (*model.Video, error) {
	video, err := s.cache.Get(ctx, id)
	if err != nil {
		recordCache(metrics.CacheOpGet, metrics.CacheStatusError)
		slog.Warn("cache get failed, falling back to database",
			"video_id", id,
			"error", err,
		)
	}
	if video != nil {
		recordCache(metrics.CacheOpGet, metrics.CacheStatusHit)
		return video, nil
	}
	recordCache(metrics.CacheOpGet, metrics.CacheStatusMiss)

	gen, genErr := s.generation(ctx)

	video, err = s.delegate.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		recordSet(s.cache.Set(ctx, video, gen, s.cacheTTL), "video "+strconv.FormatInt(id, 10))
	}

	return video, nil
}

// generation reads the cache generation. On error the loaded value is
// served uncached.
func (s *cachedCatalogService) generation(ctx context.Context) (int64, error) {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		recordCache(metrics.CacheOpGet, metrics.CacheStatusError)
		slog.Warn("failed to read cache generation", "error", err)
	}
	return gen, err
}

func (s *cachedCatalogService) UpdateAnnotation(ctx context.Context, id int64, title, overlayText string) (*model.Video, error) {
	video, err := s.delegate.UpdateAnnotation(ctx, id, title, overlayText)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return video, nil
}

func (s *cachedCatalogService) Delete(ctx context.Context, id int64) error {
	err := s.delegate.Delete(ctx, id)
	if err == nil {
		s.invalidate(ctx, id)
	}
	return err
}

// BulkDelete invalidates whatever was deleted, even when the batch aborts.
func (s *cachedCatalogService) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	deleted, err := s.delegate.BulkDelete(ctx, ids)
	if len(deleted) > 0 {
		s.invalidate(ctx, deleted...)
	}
	return deleted, err
}

func (s *cachedCatalogService) OpenVideo(ctx context.Context, filename string) (*repository.Object, error) {
	return s.delegate.OpenVideo(ctx, filename)
}

func (s *cachedCatalogService) OpenThumbnail(ctx context.Context, filename string) (*repository.Object, error) {
	return s.delegate.OpenThumbnail(ctx, filename)
}

func (s *cachedCatalogService) OpenPlaceholder(ctx context.Context) (*repository.Object, error) {
	return s.delegate.OpenPlaceholder(ctx)
}

// invalidate drops the listing and the given videos. Failure only logs; the
// entries expire after the TTL.
func (s *cachedCatalogService) invalidate(ctx context.Context, ids ...int64) {
	s.sfGroup.Forget(listFlightKey)
	for _, id := range ids {
		s.sfGroup.Forget(strconv.FormatInt(id, 10))
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		recordCache(metrics.CacheOpDelete, metrics.CacheStatusError)
		slog.Warn("failed to invalidate cache",
			"video_ids", ids,
			"error", err,
		)
		return
	}
	recordCache(metrics.CacheOpDelete, metrics.CacheStatusSuccess)
}

func recordCache(op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(op, status, metrics.CacheTypeRedis).Inc()
}

func recordSet(err error, what string) {
	switch {
	case err == nil:
		recordCache(metrics.CacheOpSet, metrics.CacheStatusSuccess)
	case errors.Is(err, cache.ErrStale):
		recordCache(metrics.CacheOpSet, metrics.CacheStatusStale)
	default:
		recordCache(metrics.CacheOpSet, metrics.CacheStatusError)
		slog.Warn("failed to cache "+what, "error", err)
	}
}

func recordFlight(shared bool) {
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}
}
