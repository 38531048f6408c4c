package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
)

const (
	// videoCacheKeyPrefix is the prefix for video cache keys in Redis.
	videoCacheKeyPrefix = "video:"

	// listCacheKey holds the newest-first gallery listing.
	listCacheKey = "videos:all"

	// generationKey is incremented by every invalidation.
	generationKey = "videos:generation"
)

// videoJSON is the JSON representation of a Video for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type videoJSON struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	OverlayText string `json:"overlay_text"`
	Thumbnail   string `json:"thumbnail"`
	CreatedAt   string `json:"created_at"`
}

// RedisVideoCache implements VideoCache using Redis as the backing store.
type RedisVideoCache struct {
	client *redis.Client
}

// NewRedisVideoCache creates a new Redis-backed video cache.
func NewRedisVideoCache(client *redis.Client) *RedisVideoCache {
	return &RedisVideoCache{
		client: client,
	}
}

// Get retrieves a video from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisVideoCache) Get(ctx context.Context, videoID int64) (*model.Video, error) {
	data, err := c.client.Get(ctx, c.buildKey(videoID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var v videoJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("deserialize video: %w", err)
	}

	video, err := fromJSON(v)
	if err != nil {
		return nil, fmt.Errorf("deserialize video: %w", err)
	}
	return video, nil
}

// Generation returns the current invalidation generation; 0 before the
// first invalidation.
func (c *RedisVideoCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return gen, nil
}

// Set stores a video in Redis cache with the specified TTL.
func (c *RedisVideoCache) Set(ctx context.Context, video *model.Video, generation int64, ttl time.Duration) error {
	data, err := json.Marshal(toJSON(video))
	if err != nil {
		return fmt.Errorf("serialize video: %w", err)
	}

	return c.setIfCurrent(ctx, c.buildKey(video.ID), data, generation, ttl)
}

// GetList retrieves the gallery listing from Redis.
// Returns nil, nil on cache miss.
func (c *RedisVideoCache) GetList(ctx context.Context) ([]*model.Video, error) {
	data, err := c.client.Get(ctx, listCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var items []videoJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("deserialize video list: %w", err)
	}

	videos := make([]*model.Video, 0, len(items))
	for _, item := range items {
		video, err := fromJSON(item)
		if err != nil {
			return nil, fmt.Errorf("deserialize video list: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// SetList stores the gallery listing in Redis.
func (c *RedisVideoCache) SetList(ctx context.Context, videos []*model.Video, generation int64, ttl time.Duration) error {
	items := make([]videoJSON, 0, len(videos))
	for _, v := range videos {
		items = append(items, toJSON(v))
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("serialize video list: %w", err)
	}

	return c.setIfCurrent(ctx, listCacheKey, data, generation, ttl)
}

// setIfCurrent writes key only while the generation still equals generation.
// WATCH aborts the write when an invalidation lands between the check and EXEC.
func (c *RedisVideoCache) setIfCurrent(ctx context.Context, key string, data []byte, generation int64, ttl time.Duration) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, generationKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("redis set: %w", err)
	}
}

// Invalidate bumps the generation and removes the given videos and the
// listing in one MULTI/EXEC.
func (c *RedisVideoCache) Invalidate(ctx context.Context, videoIDs ...int64) error {
	keys := make([]string, 0, len(videoIDs)+1)
	keys = append(keys, listCacheKey)
	for _, id := range videoIDs {
		keys = append(keys, c.buildKey(id))
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}

	return nil
}

// buildKey constructs the Redis key for a video.
func (c *RedisVideoCache) buildKey(videoID int64) string {
	return videoCacheKeyPrefix + strconv.FormatInt(videoID, 10)
}

func toJSON(video *model.Video) videoJSON {
	return videoJSON{
		ID:          video.ID,
		Filename:    video.Filename,
		Title:       video.Title,
		OverlayText: video.OverlayText,
		Thumbnail:   video.Thumbnail,
		CreatedAt:   video.CreatedAt.Format(time.RFC3339Nano),
	}
}

func fromJSON(v videoJSON) (*model.Video, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &model.Video{
		ID:          v.ID,
		Filename:    v.Filename,
		Title:       v.Title,
		OverlayText: v.OverlayText,
		Thumbnail:   v.Thumbnail,
		CreatedAt:   createdAt,
	}, nil
}
