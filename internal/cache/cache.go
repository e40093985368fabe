/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultArtistIndexTTL = 10 * time.Minute
	DefaultGenreListTTL   = 10 * time.Minute
	DefaultAlbumListTTL   = 5 * time.Minute
	DefaultCoverTTL       = 24 * time.Hour
)

// Key prefixes for Redis cache
const (
	KeyArtistIndex = "bragi:cache:artist_index"
	KeyGenreList   = "bragi:cache:genres"
	KeyAlbumList   = "bragi:cache:album_list:" // + type:size:offset
	KeyCover       = "bragi:cache:cover:"      // + item_id:size
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ArtistIndexTTL time.Duration
	GenreListTTL   time.Duration
	AlbumListTTL   time.Duration
	CoverTTL       time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ArtistIndexTTL: DefaultArtistIndexTTL,
		GenreListTTL:   DefaultGenreListTTL,
		AlbumListTTL:   DefaultAlbumListTTL,
		CoverTTL:       DefaultCoverTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Artist index caching

// CachedIndexEntry is one artist entry in the alphabetical index.
type CachedIndexEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AlbumCount int    `json:"album_count"`
}

// CachedIndex groups artists under an index letter.
type CachedIndex struct {
	Name    string             `json:"name"`
	Artists []CachedIndexEntry `json:"artists"`
}

// GetArtistIndex retrieves the cached alphabetical artist index.
func (c *Cache) GetArtistIndex(ctx context.Context) ([]CachedIndex, bool) {
	var indexes []CachedIndex
	found, err := c.get(ctx, KeyArtistIndex, &indexes)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("buckets", len(indexes)).Msg("artist index cache hit")
	return indexes, true
}

// SetArtistIndex caches the alphabetical artist index.
func (c *Cache) SetArtistIndex(ctx context.Context, indexes []CachedIndex) error {
	return c.set(ctx, KeyArtistIndex, indexes, c.config.ArtistIndexTTL)
}

// Genre caching

// CachedGenre is one genre with its usage counts.
type CachedGenre struct {
	Name       string `json:"name"`
	SongCount  int    `json:"song_count"`
	AlbumCount int    `json:"album_count"`
}

// GetGenres retrieves the cached genre list.
func (c *Cache) GetGenres(ctx context.Context) ([]CachedGenre, bool) {
	var genres []CachedGenre
	found, err := c.get(ctx, KeyGenreList, &genres)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(genres)).Msg("genre list cache hit")
	return genres, true
}

// SetGenres caches the genre list.
func (c *Cache) SetGenres(ctx context.Context, genres []CachedGenre) error {
	return c.set(ctx, KeyGenreList, genres, c.config.GenreListTTL)
}

// Album list caching

// AlbumListKey builds the cache key for a getAlbumList2 page.
func AlbumListKey(listType string, size, offset int) string {
	return fmt.Sprintf("%s%s:%d:%d", KeyAlbumList, listType, size, offset)
}

// GetAlbumList retrieves a cached album list page into dest.
func (c *Cache) GetAlbumList(ctx context.Context, key string, dest any) bool {
	found, err := c.get(ctx, key, dest)
	if err != nil || !found {
		return false
	}
	c.logger.Debug().Str("key", key).Msg("album list cache hit")
	return true
}

// SetAlbumList caches an album list page.
func (c *Cache) SetAlbumList(ctx context.Context, key string, value any) error {
	return c.set(ctx, key, value, c.config.AlbumListTTL)
}

// Cover caching

// CoverKey builds the cache key for a resized cover image.
func CoverKey(itemID string, size int) string {
	return fmt.Sprintf("%s%s:%d", KeyCover, itemID, size)
}

// GetCover retrieves cached resized cover bytes.
func (c *Cache) GetCover(ctx context.Context, itemID string, size int) ([]byte, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	data, err := c.client.Get(ctx, CoverKey(itemID, size)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get_cover")
		return nil, false
	}
	return data, true
}

// SetCover caches resized cover bytes.
func (c *Cache) SetCover(ctx context.Context, itemID string, size int, data []byte) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Set(ctx, CoverKey(itemID, size), data, c.config.CoverTTL).Err(); err != nil {
		c.handleError(err, "set_cover")
		return err
	}
	return nil
}

// InvalidateCovers removes all cached cover renditions for an item.
func (c *Cache) InvalidateCovers(ctx context.Context, itemID string) error {
	c.logger.Debug().Str("item_id", itemID).Msg("invalidating cover caches")
	return c.deletePattern(ctx, KeyCover+itemID+":*")
}

// Bulk invalidation

// InvalidateBrowse removes the browse-level caches. Called after a scan
// changes the library.
func (c *Cache) InvalidateBrowse(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating browse caches")

	if err := c.delete(ctx, KeyArtistIndex); err != nil {
		return err
	}
	if err := c.delete(ctx, KeyGenreList); err != nil {
		return err
	}
	return c.deletePattern(ctx, KeyAlbumList+"*")
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "bragi:cache:*")
}
