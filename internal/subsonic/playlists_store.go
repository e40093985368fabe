/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"context"
	"errors"
	"net/url"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/models"
)

var errNotOwner = errors.New("not playlist owner")

// queryString distinguishes an absent parameter from an empty one, so
// updatePlaylist can clear the comment.
func queryString(q url.Values, key string) (string, bool) {
	if _, ok := q[key]; !ok {
		return "", false
	}
	return q.Get(key), true
}

// appendEntries adds songs starting at the given position. Unknown song ids
// fail the whole operation.
func appendEntries(tx *gorm.DB, playlistID string, start int, songIDs []string) error {
	for i, songID := range songIDs {
		var exists int64
		if err := tx.Model(&models.Song{}).Where("id = ?", songID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}
		entry := models.PlaylistEntry{
			ID:         uuid.NewString(),
			PlaylistID: playlistID,
			SongID:     songID,
			Position:   start + i,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}

// removeEntriesAt deletes entries by zero-based position and renumbers the
// remainder.
func removeEntriesAt(tx *gorm.DB, playlistID string, positions []int) error {
	sort.Sort(sort.Reverse(sort.IntSlice(positions)))

	var entries []models.PlaylistEntry
	if err := tx.Where("playlist_id = ?", playlistID).Order("position").Find(&entries).Error; err != nil {
		return err
	}

	for _, pos := range positions {
		if pos < 0 || pos >= len(entries) {
			continue
		}
		if err := tx.Delete(&entries[pos]).Error; err != nil {
			return err
		}
		entries = append(entries[:pos], entries[pos+1:]...)
	}

	for i := range entries {
		if entries[i].Position != i {
			if err := tx.Model(&entries[i]).Update("position", i).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// refreshPlaylistAggregates recomputes the derived song count and duration.
func refreshPlaylistAggregates(tx *gorm.DB, playlistID string) error {
	return tx.Exec(`
		UPDATE playlists SET
			song_count = (SELECT COUNT(*) FROM playlist_entries WHERE playlist_entries.playlist_id = playlists.id),
			duration = (SELECT COALESCE(SUM(songs.duration), 0)
				FROM playlist_entries JOIN songs ON songs.id = playlist_entries.song_id
				WHERE playlist_entries.playlist_id = playlists.id)
		WHERE playlists.id = ?`, playlistID).Error
}

// toPlaylist converts a playlist row, optionally loading its entries.
func (a *API) toPlaylist(ctx context.Context, pl models.Playlist, withEntries bool) Playlist {
	out := Playlist{
		ID:        pl.ID,
		Name:      pl.Name,
		Comment:   pl.Comment,
		Public:    pl.Public,
		SongCount: pl.SongCount,
		Duration:  pl.Duration,
		Created:   pl.CreatedAt,
		Changed:   pl.UpdatedAt,
	}

	var owner models.User
	if err := a.db.WithContext(ctx).Where("id = ?", pl.OwnerID).First(&owner).Error; err == nil {
		out.Owner = owner.Username
	}

	if !withEntries {
		return out
	}

	var rows []songRow
	err := a.songQuery(ctx).
		Joins("JOIN playlist_entries ON playlist_entries.song_id = songs.id").
		Where("playlist_entries.playlist_id = ?", pl.ID).
		Order("playlist_entries.position").
		Scan(&rows).Error
	if err != nil {
		a.logger.Error().Err(err).Str("playlist_id", pl.ID).Msg("failed to load playlist entries")
		return out
	}
	for _, row := range rows {
		out.Entry = append(out.Entry, toChild(row, nil))
	}
	return out
}
