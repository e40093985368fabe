/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"context"
	"encoding/hex"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/models"
)

// decodePassword unwraps the optional "enc:" hex encoding used by password
// parameters. Returns false for malformed hex.
func decodePassword(p string) (string, bool) {
	if !strings.HasPrefix(p, "enc:") {
		return p, true
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(p, "enc:"))
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// songRow joins a song with its album and artist names for API conversion.
type songRow struct {
	models.Song
	AlbumName  string
	ArtistName string
	AlbumCover string
}

// songQuery selects songs with the joined names every Child needs.
func (a *API) songQuery(ctx context.Context) *gorm.DB {
	return a.db.WithContext(ctx).Table("songs").
		Select("songs.*, albums.name AS album_name, albums.cover_art AS album_cover, artists.name AS artist_name").
		Joins("JOIN albums ON albums.id = songs.album_id").
		Joins("JOIN artists ON artists.id = songs.artist_id")
}

func toChild(row songRow, ann *models.Annotation) Child {
	child := Child{
		ID:          row.ID,
		Parent:      row.AlbumID,
		Title:       row.Title,
		Album:       row.AlbumName,
		Artist:      row.ArtistName,
		CoverArt:    row.AlbumCover,
		Created:     row.CreatedAt,
		Duration:    row.Duration,
		BitRate:     row.BitRate,
		Track:       row.Track,
		DiscNumber:  row.Disc,
		Year:        row.Year,
		Genre:       row.Genre,
		Size:        row.FileSize,
		Suffix:      row.Suffix,
		ContentType: row.ContentType,
		Path:        row.Path,
		AlbumID:     row.AlbumID,
		ArtistID:    row.ArtistID,
		PlayCount:   row.PlayCount,
		Type:        "music",
	}
	if ann != nil {
		if ann.Starred {
			child.Starred = ann.StarredAt
		}
		child.UserRating = ann.Rating
	}
	return child
}

func toAlbum(album models.Album, artistName string, ann *models.Annotation) Album {
	out := Album{
		ID:        album.ID,
		Name:      album.Name,
		Artist:    artistName,
		ArtistID:  album.ArtistID,
		CoverArt:  album.CoverArt,
		SongCount: album.SongCount,
		Duration:  album.Duration,
		PlayCount: album.PlayCount,
		Created:   album.CreatedAt,
		Year:      album.Year,
		Genre:     album.Genre,
	}
	if ann != nil && ann.Starred {
		out.Starred = ann.StarredAt
	}
	return out
}

func toArtist(artist models.Artist, albumCount int, ann *models.Annotation) Artist {
	out := Artist{
		ID:         artist.ID,
		Name:       artist.Name,
		CoverArt:   artist.CoverArt,
		AlbumCount: albumCount,
	}
	if ann != nil && ann.Starred {
		out.Starred = ann.StarredAt
	}
	return out
}

// annotationsFor loads the caller's annotations for a set of items.
func (a *API) annotationsFor(ctx context.Context, userID string, kind models.ItemKind, ids []string) map[string]*models.Annotation {
	if len(ids) == 0 {
		return nil
	}
	var rows []models.Annotation
	if err := a.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ? AND item_id IN ?", userID, kind, ids).
		Find(&rows).Error; err != nil {
		a.logger.Warn().Err(err).Msg("failed to load annotations")
		return nil
	}
	out := make(map[string]*models.Annotation, len(rows))
	for i := range rows {
		out[rows[i].ItemID] = &rows[i]
	}
	return out
}

// indexLetter buckets an artist name for the alphabetical index. Leading
// articles are ignored, digits and symbols group under "#".
func indexLetter(name string) string {
	trimmed := strings.TrimSpace(name)
	for _, article := range []string{"The ", "El ", "La ", "Los ", "Las ", "Le ", "Les "} {
		if len(trimmed) > len(article) && strings.EqualFold(trimmed[:len(article)], article) {
			trimmed = trimmed[len(article):]
			break
		}
	}
	if trimmed == "" {
		return "#"
	}
	first := []rune(trimmed)[0]
	if !unicode.IsLetter(first) {
		return "#"
	}
	return strings.ToUpper(string(first))
}

const ignoredArticles = "The El La Los Las Le Les"
