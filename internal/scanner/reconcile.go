/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scanner

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/models"
)

const reconcileChunkSize = 500

// reconcile removes catalog rows whose files are gone from disk: stale
// songs first, then albums left empty, then artists left with nothing.
// Dependent rows (playlist entries, annotations, play history) go with
// their songs.
func (s *Scanner) reconcile(ctx context.Context, seen map[string]struct{}) (int64, error) {
	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type songRow struct {
			ID   string
			Path string
		}
		var rows []songRow
		if err := tx.Table("songs").Select("id", "path").Scan(&rows).Error; err != nil {
			return fmt.Errorf("load songs: %w", err)
		}

		var stale []string
		for _, r := range rows {
			if _, ok := seen[r.Path]; !ok {
				stale = append(stale, r.ID)
			}
		}

		for _, chunk := range chunks(stale, reconcileChunkSize) {
			if err := tx.Where("song_id IN ?", chunk).Delete(&models.PlaylistEntry{}).Error; err != nil {
				return fmt.Errorf("delete playlist entries: %w", err)
			}
			if err := tx.Where("song_id IN ?", chunk).Delete(&models.PlayHistory{}).Error; err != nil {
				return fmt.Errorf("delete play history: %w", err)
			}
			if err := tx.Where("item_id IN ? AND item_kind = ?", chunk, models.KindSong).Delete(&models.Annotation{}).Error; err != nil {
				return fmt.Errorf("delete song annotations: %w", err)
			}
			if err := tx.Where("id IN ?", chunk).Delete(&models.Song{}).Error; err != nil {
				return fmt.Errorf("delete songs: %w", err)
			}
		}
		deleted = int64(len(stale))

		var emptyAlbums []string
		if err := tx.Table("albums").
			Where("NOT EXISTS (SELECT 1 FROM songs WHERE songs.album_id = albums.id)").
			Pluck("id", &emptyAlbums).Error; err != nil {
			return fmt.Errorf("find empty albums: %w", err)
		}
		for _, chunk := range chunks(emptyAlbums, reconcileChunkSize) {
			if err := tx.Where("item_id IN ? AND item_kind = ?", chunk, models.KindAlbum).Delete(&models.Annotation{}).Error; err != nil {
				return fmt.Errorf("delete album annotations: %w", err)
			}
			if err := tx.Where("id IN ?", chunk).Delete(&models.Album{}).Error; err != nil {
				return fmt.Errorf("delete albums: %w", err)
			}
		}

		var emptyArtists []string
		if err := tx.Table("artists").
			Where("NOT EXISTS (SELECT 1 FROM albums WHERE albums.artist_id = artists.id)").
			Where("NOT EXISTS (SELECT 1 FROM songs WHERE songs.artist_id = artists.id)").
			Pluck("id", &emptyArtists).Error; err != nil {
			return fmt.Errorf("find empty artists: %w", err)
		}
		for _, chunk := range chunks(emptyArtists, reconcileChunkSize) {
			if err := tx.Where("item_id IN ? AND item_kind = ?", chunk, models.KindArtist).Delete(&models.Annotation{}).Error; err != nil {
				return fmt.Errorf("delete artist annotations: %w", err)
			}
			if err := tx.Where("id IN ?", chunk).Delete(&models.Artist{}).Error; err != nil {
				return fmt.Errorf("delete artists: %w", err)
			}
		}

		if len(stale) > 0 || len(emptyAlbums) > 0 || len(emptyArtists) > 0 {
			s.logger.Info().
				Int("songs", len(stale)).
				Int("albums", len(emptyAlbums)).
				Int("artists", len(emptyArtists)).
				Msg("reconciled deleted files")
		}
		return nil
	})

	return deleted, err
}

// recomputeAggregates refreshes every derived count after reconciliation.
func (s *Scanner) recomputeAggregates(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.Exec(`
		UPDATE albums SET
			song_count = (SELECT COUNT(*) FROM songs WHERE songs.album_id = albums.id),
			duration = (SELECT COALESCE(SUM(songs.duration), 0) FROM songs WHERE songs.album_id = albums.id)`).Error; err != nil {
		return fmt.Errorf("recompute album aggregates: %w", err)
	}

	if err := db.Exec(`
		UPDATE playlists SET
			song_count = (SELECT COUNT(*) FROM playlist_entries WHERE playlist_entries.playlist_id = playlists.id),
			duration = (SELECT COALESCE(SUM(songs.duration), 0)
				FROM playlist_entries JOIN songs ON songs.id = playlist_entries.song_id
				WHERE playlist_entries.playlist_id = playlists.id)`).Error; err != nil {
		return fmt.Errorf("recompute playlist aggregates: %w", err)
	}

	return nil
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}
