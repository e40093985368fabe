/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package artwork

import (
	"context"
	"fmt"
	"sync"

	"github.com/h2non/filetype"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/storage"
)

// Job is one cover image to persist, emitted by the scanner after the
// owning catalog batch has committed.
type Job struct {
	ItemID string // cover art id recorded on the album or artist row
	Data   []byte
	MIME   string
}

// Service writes cover originals to object storage and serves resized
// renditions, caching them in Redis.
type Service struct {
	store   storage.ObjectStore
	cache   *cache.Cache
	sizes   []int
	workers int
	logger  zerolog.Logger

	prewarm sync.WaitGroup
}

// NewService creates the artwork service. workers bounds concurrent cover
// writes, sizes lists the renditions pre-warmed after scans.
func NewService(store storage.ObjectStore, c *cache.Cache, workers int, sizes []int, logger zerolog.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		store:   store,
		cache:   c,
		sizes:   sizes,
		workers: workers,
		logger:  logger.With().Str("component", "artwork").Logger(),
	}
}

func coverKey(itemID string) string {
	return "covers/" + itemID
}

// ProcessBatch persists a batch of cover images with bounded concurrency
// and returns the item ids whose covers were durably stored. Write failures
// are logged and skipped; a bad image never affects the already-committed
// catalog rows. Returns once all writes finish; cache pre-warming continues
// in the background.
func (s *Service) ProcessBatch(ctx context.Context, jobs []Job) []string {
	if len(jobs) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var stored []string

	for _, job := range jobs {
		if len(job.Data) == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(job Job) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.store.Put(ctx, coverKey(job.ItemID), job.Data, job.MIME); err != nil {
				s.logger.Warn().Err(err).Str("item_id", job.ItemID).Msg("cover write failed, skipping")
				return
			}

			mu.Lock()
			stored = append(stored, job.ItemID)
			mu.Unlock()

			// Renditions are best effort and must not delay the scan.
			s.prewarm.Add(1)
			go s.prewarmRenditions(job.ItemID, job.Data)
		}(job)
	}

	wg.Wait()
	return stored
}

// prewarmRenditions populates the cache with resized covers so the first
// getCoverArt request after a scan does not pay the resize cost.
func (s *Service) prewarmRenditions(itemID string, data []byte) {
	defer s.prewarm.Done()

	ctx := context.Background()
	if err := s.cache.InvalidateCovers(ctx, itemID); err != nil {
		s.logger.Debug().Err(err).Str("item_id", itemID).Msg("cover cache invalidation failed")
	}

	for _, size := range s.sizes {
		resized, err := Resize(data, size)
		if err != nil {
			s.logger.Debug().Err(err).Str("item_id", itemID).Int("size", size).Msg("cover prewarm resize failed")
			return
		}
		if err := s.cache.SetCover(ctx, itemID, size, resized); err != nil {
			s.logger.Debug().Err(err).Str("item_id", itemID).Int("size", size).Msg("cover prewarm cache write failed")
			return
		}
	}
}

// WaitPrewarm blocks until background pre-warming finishes. Used in tests
// and during shutdown.
func (s *Service) WaitPrewarm() {
	s.prewarm.Wait()
}

// Get serves a cover image. size <= 0 returns the original; otherwise a
// JPEG rendition scaled to fit size, cached after first use.
func (s *Service) Get(ctx context.Context, itemID string, size int) ([]byte, string, error) {
	if size > 0 {
		if data, ok := s.cache.GetCover(ctx, itemID, size); ok {
			return data, "image/jpeg", nil
		}
	}

	original, err := s.store.Get(ctx, coverKey(itemID))
	if err != nil {
		return nil, "", fmt.Errorf("load cover %s: %w", itemID, err)
	}

	if size <= 0 {
		return original, sniffImageMIME(original), nil
	}

	resized, err := Resize(original, size)
	if err != nil {
		return nil, "", fmt.Errorf("resize cover %s: %w", itemID, err)
	}
	if err := s.cache.SetCover(ctx, itemID, size, resized); err != nil {
		s.logger.Debug().Err(err).Str("item_id", itemID).Msg("cover cache write failed")
	}
	return resized, "image/jpeg", nil
}

// Delete removes the stored original for an item and any cached renditions.
func (s *Service) Delete(ctx context.Context, itemID string) error {
	if err := s.cache.InvalidateCovers(ctx, itemID); err != nil {
		s.logger.Debug().Err(err).Str("item_id", itemID).Msg("cover cache invalidation failed")
	}
	return s.store.Delete(ctx, coverKey(itemID))
}

func sniffImageMIME(data []byte) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return "application/octet-stream"
}
