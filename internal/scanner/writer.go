/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scanner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/artwork"
	"github.com/friendsincode/bragi_stream/internal/metadata"
	"github.com/friendsincode/bragi_stream/internal/models"
	"github.com/friendsincode/bragi_stream/internal/telemetry"
)

const (
	unknownArtist = "[Unknown Artist]"
	unknownAlbum  = "[Unknown Album]"

	albumCoverPrefix = "al-"
)

// flushBatch writes one batch in a single transaction. A failed batch is
// dropped whole; the scan continues with the next one. Cover art is handed
// to the cover store only after the batch commits.
func (s *Scanner) flushBatch(ctx context.Context, batch []extractResult, summary *Summary) {
	covers, err := s.writeBatch(ctx, batch)
	if err != nil {
		s.logger.Error().Err(err).Int("size", len(batch)).Msg("batch write failed, dropping batch")
		telemetry.ScanBatchCommits.WithLabelValues("error").Inc()
		s.mu.Lock()
		summary.Failed += int64(len(batch))
		s.mu.Unlock()
		for _, r := range batch {
			s.advance(r.path)
			telemetry.ScanFilesFailed.Inc()
		}
		return
	}

	telemetry.ScanBatchCommits.WithLabelValues("ok").Inc()
	s.mu.Lock()
	summary.Scanned += int64(len(batch))
	s.mu.Unlock()
	for _, r := range batch {
		s.advance(r.path)
		telemetry.ScanFilesScanned.Inc()
	}

	if s.covers == nil || len(covers) == 0 {
		return
	}
	stored := s.covers.ProcessBatch(ctx, covers)
	for _, itemID := range stored {
		albumID := strings.TrimPrefix(itemID, albumCoverPrefix)
		if err := s.db.WithContext(ctx).Model(&models.Album{}).
			Where("id = ?", albumID).
			Update("cover_art", itemID).Error; err != nil {
			s.logger.Warn().Err(err).Str("album_id", albumID).Msg("failed to record cover art id")
		}
	}
}

// writeBatch upserts one batch of extraction results and returns the cover
// jobs for albums that gained artwork. Artists and albums created inside
// the transaction are cached per batch so a rollback cannot leak stale ids.
func (s *Scanner) writeBatch(ctx context.Context, batch []extractResult) ([]artwork.Job, error) {
	var jobs []artwork.Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		artists := make(map[string]*models.Artist)
		albums := make(map[string]*models.Album)
		queuedCovers := make(map[string]bool)
		touchedAlbums := make(map[string]bool)

		for _, r := range batch {
			meta := r.meta

			artistName := firstNonEmpty(meta.AlbumArtist, meta.Artist, unknownArtist)
			artist, err := getOrCreateArtist(tx, artists, artistName)
			if err != nil {
				return err
			}

			albumName := firstNonEmpty(meta.Album, unknownAlbum)
			album, err := getOrCreateAlbum(tx, albums, artist.ID, albumName, meta)
			if err != nil {
				return err
			}
			touchedAlbums[album.ID] = true

			if err := upsertSong(tx, r.path, artist.ID, album.ID, meta); err != nil {
				return err
			}

			if len(meta.Cover) > 0 && album.CoverArt == "" && !queuedCovers[album.ID] {
				queuedCovers[album.ID] = true
				jobs = append(jobs, artwork.Job{
					ItemID: albumCoverPrefix + album.ID,
					Data:   meta.Cover,
					MIME:   meta.CoverMIME,
				})
			}
		}

		ids := make([]string, 0, len(touchedAlbums))
		for id := range touchedAlbums {
			ids = append(ids, id)
		}
		return recomputeAlbumAggregates(tx, ids)
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func getOrCreateArtist(tx *gorm.DB, cache map[string]*models.Artist, name string) (*models.Artist, error) {
	if artist, ok := cache[name]; ok {
		return artist, nil
	}

	var artist models.Artist
	err := tx.Where("name = ?", name).First(&artist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		artist = models.Artist{ID: uuid.NewString(), Name: name}
		err = tx.Create(&artist).Error
	}
	if err != nil {
		return nil, err
	}
	cache[name] = &artist
	return &artist, nil
}

func getOrCreateAlbum(tx *gorm.DB, cache map[string]*models.Album, artistID, name string, meta *metadata.Metadata) (*models.Album, error) {
	key := artistID + "\x00" + name
	if album, ok := cache[key]; ok {
		if err := backfillAlbumTags(tx, album, meta); err != nil {
			return nil, err
		}
		return album, nil
	}

	var album models.Album
	err := tx.Where("artist_id = ? AND name = ?", artistID, name).First(&album).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		album = models.Album{
			ID:       uuid.NewString(),
			ArtistID: artistID,
			Name:     name,
			Year:     meta.Year,
			Genre:    meta.Genre,
		}
		err = tx.Create(&album).Error
	case err == nil:
		err = backfillAlbumTags(tx, &album, meta)
	}
	if err != nil {
		return nil, err
	}
	cache[key] = &album
	return &album, nil
}

// backfillAlbumTags fills in year and genre an earlier untagged file left
// empty. Values already recorded are never overwritten.
func backfillAlbumTags(tx *gorm.DB, album *models.Album, meta *metadata.Metadata) error {
	updates := map[string]any{}
	if album.Year == 0 && meta.Year != 0 {
		album.Year = meta.Year
		updates["year"] = meta.Year
	}
	if album.Genre == "" && meta.Genre != "" {
		album.Genre = meta.Genre
		updates["genre"] = meta.Genre
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Album{}).Where("id = ?", album.ID).Updates(updates).Error
}

// upsertSong creates or refreshes the song row keyed by path. PlayCount and
// identity survive metadata updates.
func upsertSong(tx *gorm.DB, path, artistID, albumID string, meta *metadata.Metadata) error {
	var song models.Song
	err := tx.Where("path = ?", path).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		song = models.Song{ID: uuid.NewString(), Path: path}
	} else if err != nil {
		return err
	}

	song.AlbumID = albumID
	song.ArtistID = artistID
	song.Title = meta.Title
	song.Track = meta.Track
	song.Disc = meta.Disc
	song.Duration = meta.Duration
	song.BitRate = meta.BitRate
	song.SampleRate = meta.SampleRate
	song.Channels = meta.Channels
	song.Genre = meta.Genre
	song.Year = meta.Year
	song.ContentType = meta.ContentType
	song.Suffix = meta.Suffix
	song.FileSize = meta.FileSize
	song.Lyrics = meta.Lyrics

	return tx.Save(&song).Error
}

// recomputeAlbumAggregates refreshes derived song_count and duration for
// the given albums inside the current transaction, so every committed batch
// leaves aggregates consistent.
func recomputeAlbumAggregates(tx *gorm.DB, albumIDs []string) error {
	if len(albumIDs) == 0 {
		return nil
	}
	return tx.Exec(`
		UPDATE albums SET
			song_count = (SELECT COUNT(*) FROM songs WHERE songs.album_id = albums.id),
			duration = (SELECT COALESCE(SUM(songs.duration), 0) FROM songs WHERE songs.album_id = albums.id),
			updated_at = ?
		WHERE albums.id IN ?`, time.Now(), albumIDs).Error
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
