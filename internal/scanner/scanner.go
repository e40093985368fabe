/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scanner walks the music library, extracts metadata, and keeps the
// catalog in sync with the files on disk.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/artwork"
	"github.com/friendsincode/bragi_stream/internal/config"
	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/metadata"
	"github.com/friendsincode/bragi_stream/internal/telemetry"
)

var (
	// ErrScanInProgress is returned when a scan is requested while another
	// scan is still running. Only one scan runs at a time.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrLibraryPathNotFound is returned when a configured library root does
	// not exist. The scan aborts without touching the catalog.
	ErrLibraryPathNotFound = errors.New("library path not found")
)

// CoverStore persists cover art emitted by committed batches.
type CoverStore interface {
	ProcessBatch(ctx context.Context, jobs []artwork.Job) []string
}

// Options control a single scan run.
type Options struct {
	// Full forces re-extraction of every file, ignoring recorded timestamps.
	Full bool
}

// Status is a snapshot of scan progress, served by getScanStatus.
type Status struct {
	Scanning    bool
	Count       int64 // files processed so far, including skipped ones
	Total       int64
	CurrentPath string
	StartedAt   time.Time
	LastScan    *Summary
}

// Summary describes a completed scan.
type Summary struct {
	Scanned     int64 // files extracted and written
	Skipped     int64 // unchanged files
	Failed      int64 // extraction or batch failures
	Deleted     int64 // songs removed by reconciliation
	Duration    time.Duration
	CompletedAt time.Time
}

// Scanner coordinates library scans. All pipeline stages run inside Scan;
// the struct itself only holds dependencies and progress state.
type Scanner struct {
	db        *gorm.DB
	extractor metadata.Extractor
	covers    CoverStore
	bus       *events.Bus
	folders   []config.MusicFolder
	workers   int
	batchSize int
	logger    zerolog.Logger

	mu          sync.Mutex
	scanning    bool
	count       int64
	total       int64
	currentPath string
	startedAt   time.Time
	lastScan    *Summary
}

// New creates a scanner. workers bounds concurrent metadata extraction,
// batchSize bounds how many results share one catalog transaction.
func New(db *gorm.DB, extractor metadata.Extractor, covers CoverStore, bus *events.Bus, folders []config.MusicFolder, workers, batchSize int, logger zerolog.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Scanner{
		db:        db,
		extractor: extractor,
		covers:    covers,
		bus:       bus,
		folders:   folders,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "scanner").Logger(),
	}
}

// Status returns a snapshot of the current progress.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Scanning:    s.scanning,
		Count:       s.count,
		Total:       s.total,
		CurrentPath: s.currentPath,
		StartedAt:   s.startedAt,
		LastScan:    s.lastScan,
	}
}

// StartAsync launches a scan in the background. Returns ErrScanInProgress
// if one is already running. The scan is detached from the caller's
// cancellation so an HTTP trigger going away cannot abort it mid-flight.
func (s *Scanner) StartAsync(ctx context.Context, opts Options) error {
	if err := s.begin(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := s.run(ctx, opts); err != nil {
			s.logger.Error().Err(err).Msg("background scan failed")
		}
	}()
	return nil
}

// Scan runs a scan synchronously. Returns ErrScanInProgress if one is
// already running.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Summary, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	return s.run(ctx, opts)
}

// begin claims the single scan slot and resets progress counters.
func (s *Scanner) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanning {
		return ErrScanInProgress
	}
	s.scanning = true
	s.count = 0
	s.total = 0
	s.currentPath = ""
	s.startedAt = time.Now()
	telemetry.ScanRunning.Set(1)
	return nil
}

// end releases the scan slot. Deferred from run so the flag clears even
// when a scan aborts.
func (s *Scanner) end(summary *Summary) {
	s.mu.Lock()
	s.scanning = false
	s.currentPath = ""
	if summary != nil {
		s.lastScan = summary
	}
	s.mu.Unlock()
	telemetry.ScanRunning.Set(0)
}

type fileEntry struct {
	path    string
	modTime time.Time
}

type extractResult struct {
	path    string
	meta    *metadata.Metadata
	modTime time.Time
}

// run executes the scan pipeline. begin must have succeeded first.
func (s *Scanner) run(ctx context.Context, opts Options) (summary *Summary, err error) {
	start := time.Now()
	summary = &Summary{}
	defer func() {
		summary.Duration = time.Since(start)
		summary.CompletedAt = time.Now()
		s.end(summary)
		telemetry.ScanDuration.Observe(summary.Duration.Seconds())
		if err != nil {
			s.bus.Publish(events.EventScanFailed, events.Payload{"error": err.Error()})
		}
	}()

	s.bus.Publish(events.EventScanStarted, events.Payload{"full": opts.Full})
	s.logger.Info().Bool("full", opts.Full).Int("folders", len(s.folders)).Msg("scan started")

	for _, folder := range s.folders {
		info, statErr := os.Stat(folder.Path)
		if statErr != nil || !info.IsDir() {
			err = fmt.Errorf("%w: %s", ErrLibraryPathNotFound, folder.Path)
			return summary, err
		}
	}

	files, walkErr := s.discover(ctx)
	if walkErr != nil {
		err = walkErr
		return summary, err
	}

	s.mu.Lock()
	s.total = int64(len(files))
	s.mu.Unlock()

	known, loadErr := s.loadKnownSongs(ctx)
	if loadErr != nil {
		err = loadErr
		return summary, err
	}

	seen := make(map[string]struct{}, len(files))
	var pending []fileEntry
	for _, f := range files {
		seen[f.path] = struct{}{}
		// Unchanged files are skipped; any doubt about staleness means
		// re-extraction.
		if recorded, ok := known[f.path]; ok && !opts.Full && !f.modTime.After(recorded) {
			summary.Skipped++
			s.advance(f.path)
			telemetry.ScanFilesSkipped.Inc()
			continue
		}
		pending = append(pending, f)
	}

	if pipeErr := s.pipeline(ctx, pending, summary); pipeErr != nil {
		err = pipeErr
		return summary, err
	}

	// Reconciliation runs even when individual batches failed; it only
	// removes songs whose files are gone from disk.
	deleted, recErr := s.reconcile(ctx, seen)
	if recErr != nil {
		s.logger.Error().Err(recErr).Msg("reconciliation failed")
	}
	summary.Deleted = deleted

	if aggErr := s.recomputeAggregates(ctx); aggErr != nil {
		s.logger.Error().Err(aggErr).Msg("aggregate recompute failed")
	}

	s.bus.Publish(events.EventScanCompleted, events.Payload{
		"scanned": summary.Scanned,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
		"deleted": summary.Deleted,
	})
	s.bus.Publish(events.EventMediaUpdated, events.Payload{})

	s.logger.Info().
		Int64("scanned", summary.Scanned).
		Int64("skipped", summary.Skipped).
		Int64("failed", summary.Failed).
		Int64("deleted", summary.Deleted).
		Dur("duration", summary.Duration).
		Msg("scan completed")

	return summary, nil
}

// discover walks every configured folder and returns all audio files.
func (s *Scanner) discover(ctx context.Context) ([]fileEntry, error) {
	var files []fileEntry
	for _, folder := range s.folders {
		walkErr := filepath.WalkDir(folder.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("walk error, skipping subtree")
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() || !metadata.IsAudioPath(path) {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				s.logger.Warn().Err(infoErr).Str("path", path).Msg("stat failed, skipping file")
				return nil
			}
			files = append(files, fileEntry{path: path, modTime: info.ModTime()})
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return files, nil
}

// loadKnownSongs returns path -> last catalog write time for change detection.
func (s *Scanner) loadKnownSongs(ctx context.Context) (map[string]time.Time, error) {
	type row struct {
		Path      string
		UpdatedAt time.Time
	}
	var rows []row
	if err := s.db.WithContext(ctx).Table("songs").Select("path", "updated_at").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load known songs: %w", err)
	}
	known := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		known[r.Path] = r.UpdatedAt
	}
	return known, nil
}

// pipeline runs extraction workers feeding the batching catalog writer.
func (s *Scanner) pipeline(ctx context.Context, pending []fileEntry, summary *Summary) error {
	if len(pending) == 0 {
		return nil
	}

	jobs := make(chan fileEntry)
	results := make(chan extractResult, s.batchSize)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				meta, err := s.extractor.Extract(ctx, f.path)
				if err != nil {
					s.logger.Warn().Err(err).Str("path", f.path).Msg("extraction failed, skipping file")
					s.mu.Lock()
					summary.Failed++
					s.mu.Unlock()
					s.advance(f.path)
					telemetry.ScanFilesFailed.Inc()
					continue
				}
				results <- extractResult{path: f.path, meta: meta, modTime: f.modTime}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range pending {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	batch := make([]extractResult, 0, s.batchSize)
	for result := range results {
		batch = append(batch, result)
		if len(batch) >= s.batchSize {
			s.flushBatch(ctx, batch, summary)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		s.flushBatch(ctx, batch, summary)
	}

	return ctx.Err()
}

// advance bumps the processed counter and records the current path.
func (s *Scanner) advance(path string) {
	s.mu.Lock()
	s.count++
	s.currentPath = path
	count, total := s.count, s.total
	s.mu.Unlock()

	if count%100 == 0 || count == total {
		s.bus.Publish(events.EventScanProgress, events.Payload{
			"count": count,
			"total": total,
		})
	}
}
