/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"fmt"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/models"
)

// albumRow joins an album with its artist name.
type albumRow struct {
	models.Album
	ArtistName string
}

func (a *API) albumQuery(r *http.Request) *gorm.DB {
	return a.db.WithContext(r.Context()).Table("albums").
		Select("albums.*, artists.name AS artist_name").
		Joins("JOIN artists ON artists.id = albums.artist_id")
}

// randomFn returns the dialect's random ordering expression.
func (a *API) randomFn() string {
	if a.db.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}

func queryInt(r *http.Request, key string, def, max int) int {
	val := def
	if raw := r.URL.Query().Get(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			val = parsed
		}
	}
	if max > 0 && val > max {
		val = max
	}
	return val
}

func (a *API) handleGetAlbumList2(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	listType := r.URL.Query().Get("type")
	if listType == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'type' is missing")
		return
	}
	size := queryInt(r, "size", 10, 500)
	offset := queryInt(r, "offset", 0, 0)

	query := a.albumQuery(r).Limit(size).Offset(offset)
	switch listType {
	case "random":
		query = query.Order(a.randomFn())
	case "newest":
		query = query.Order("albums.created_at DESC")
	case "recent":
		query = query.Order("albums.updated_at DESC")
	case "frequent":
		query = query.Where("albums.play_count > 0").Order("albums.play_count DESC")
	case "alphabeticalByName":
		query = query.Order("albums.name")
	case "alphabeticalByArtist":
		query = query.Order("artist_name, albums.name")
	case "byYear":
		from := queryInt(r, "fromYear", 0, 0)
		to := queryInt(r, "toYear", 0, 0)
		if from <= to {
			query = query.Where("albums.year BETWEEN ? AND ?", from, to).Order("albums.year")
		} else {
			query = query.Where("albums.year BETWEEN ? AND ?", to, from).Order("albums.year DESC")
		}
	case "byGenre":
		genre := r.URL.Query().Get("genre")
		if genre == "" {
			sendError(w, r, ErrCodeMissingParam, "required parameter 'genre' is missing")
			return
		}
		query = query.Where("albums.genre = ?", genre).Order("albums.name")
	case "starred":
		query = query.
			Joins("JOIN annotations ON annotations.item_id = albums.id AND annotations.item_kind = ? AND annotations.user_id = ? AND annotations.starred", models.KindAlbum, user.ID).
			Order("annotations.starred_at DESC")
	default:
		sendError(w, r, ErrCodeGeneric, "unsupported list type "+listType)
		return
	}

	// Annotations are applied per user below, so the joined rows themselves
	// are safe to share across users.
	key := albumListCacheKey(r, listType, size, offset)

	var rows []albumRow
	if key == "" || !a.cache.GetAlbumList(r.Context(), key, &rows) {
		if err := query.Scan(&rows).Error; err != nil {
			a.logger.Error().Err(err).Str("type", listType).Msg("album list query failed")
			sendError(w, r, ErrCodeGeneric, "failed to load album list")
			return
		}
		if key != "" {
			if err := a.cache.SetAlbumList(r.Context(), key, rows); err != nil {
				a.logger.Debug().Err(err).Msg("album list cache write failed")
			}
		}
	}

	albumIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		albumIDs = append(albumIDs, row.ID)
	}
	anns := a.annotationsFor(r.Context(), user.ID, models.KindAlbum, albumIDs)

	list := &AlbumList2{Album: []Album{}}
	for _, row := range rows {
		list.Album = append(list.Album, toAlbum(row.Album, row.ArtistName, anns[row.ID]))
	}

	resp := NewResponse()
	resp.AlbumList2 = list
	sendResponse(w, r, resp)
}

// albumListCacheKey returns the cache key for a getAlbumList2 page, or ""
// when the page cannot be cached (random ordering, per-user content).
func albumListCacheKey(r *http.Request, listType string, size, offset int) string {
	switch listType {
	case "random", "starred":
		return ""
	case "byGenre":
		return cache.AlbumListKey(listType+":"+r.URL.Query().Get("genre"), size, offset)
	case "byYear":
		from := queryInt(r, "fromYear", 0, 0)
		to := queryInt(r, "toYear", 0, 0)
		return cache.AlbumListKey(fmt.Sprintf("%s:%d:%d", listType, from, to), size, offset)
	default:
		return cache.AlbumListKey(listType, size, offset)
	}
}

func (a *API) handleGetRandomSongs(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	size := queryInt(r, "size", 10, 500)

	query := a.songQuery(r.Context()).Order(a.randomFn()).Limit(size)
	if genre := r.URL.Query().Get("genre"); genre != "" {
		query = query.Where("songs.genre = ?", genre)
	}
	if from := queryInt(r, "fromYear", 0, 0); from > 0 {
		query = query.Where("songs.year >= ?", from)
	}
	if to := queryInt(r, "toYear", 0, 0); to > 0 {
		query = query.Where("songs.year <= ?", to)
	}

	var rows []songRow
	if err := query.Scan(&rows).Error; err != nil {
		a.logger.Error().Err(err).Msg("random songs query failed")
		sendError(w, r, ErrCodeGeneric, "failed to load songs")
		return
	}

	resp := NewResponse()
	resp.RandomSongs = a.toSongs(r, user.ID, rows)
	sendResponse(w, r, resp)
}

func (a *API) handleGetSongsByGenre(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	genre := r.URL.Query().Get("genre")
	if genre == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'genre' is missing")
		return
	}
	count := queryInt(r, "count", 10, 500)
	offset := queryInt(r, "offset", 0, 0)

	var rows []songRow
	err := a.songQuery(r.Context()).
		Where("songs.genre = ?", genre).
		Order("songs.title").Limit(count).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("songs by genre query failed")
		sendError(w, r, ErrCodeGeneric, "failed to load songs")
		return
	}

	resp := NewResponse()
	resp.SongsByGenre = a.toSongs(r, user.ID, rows)
	sendResponse(w, r, resp)
}

func (a *API) toSongs(r *http.Request, userID string, rows []songRow) *Songs {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	anns := a.annotationsFor(r.Context(), userID, models.KindSong, ids)

	songs := &Songs{Song: []Child{}}
	for _, row := range rows {
		songs.Song = append(songs.Song, toChild(row, anns[row.ID]))
	}
	return songs
}

func (a *API) handleGetStarred2(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	ctx := r.Context()
	starred := &Starred2{}

	var artists []models.Artist
	err := a.db.WithContext(ctx).Table("artists").
		Joins("JOIN annotations ON annotations.item_id = artists.id AND annotations.item_kind = ? AND annotations.user_id = ? AND annotations.starred", models.KindArtist, user.ID).
		Order("annotations.starred_at DESC").
		Select("artists.*").
		Scan(&artists).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("starred artists query failed")
		sendError(w, r, ErrCodeGeneric, "failed to load starred items")
		return
	}
	artistIDs := make([]string, 0, len(artists))
	for _, ar := range artists {
		artistIDs = append(artistIDs, ar.ID)
	}
	artistAnns := a.annotationsFor(ctx, user.ID, models.KindArtist, artistIDs)
	for _, ar := range artists {
		var albumCount int64
		a.db.WithContext(ctx).Model(&models.Album{}).Where("artist_id = ?", ar.ID).Count(&albumCount)
		starred.Artist = append(starred.Artist, toArtist(ar, int(albumCount), artistAnns[ar.ID]))
	}

	var albums []albumRow
	err = a.albumQuery(r).
		Joins("JOIN annotations ON annotations.item_id = albums.id AND annotations.item_kind = ? AND annotations.user_id = ? AND annotations.starred", models.KindAlbum, user.ID).
		Order("annotations.starred_at DESC").
		Scan(&albums).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("starred albums query failed")
		sendError(w, r, ErrCodeGeneric, "failed to load starred items")
		return
	}
	albumIDs := make([]string, 0, len(albums))
	for _, al := range albums {
		albumIDs = append(albumIDs, al.ID)
	}
	albumAnns := a.annotationsFor(ctx, user.ID, models.KindAlbum, albumIDs)
	for _, al := range albums {
		starred.Album = append(starred.Album, toAlbum(al.Album, al.ArtistName, albumAnns[al.ID]))
	}

	var songs []songRow
	err = a.songQuery(ctx).
		Joins("JOIN annotations ON annotations.item_id = songs.id AND annotations.item_kind = ? AND annotations.user_id = ? AND annotations.starred", models.KindSong, user.ID).
		Order("annotations.starred_at DESC").
		Scan(&songs).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("starred songs query failed")
		sendError(w, r, ErrCodeGeneric, "failed to load starred items")
		return
	}
	songIDs := make([]string, 0, len(songs))
	for _, s := range songs {
		songIDs = append(songIDs, s.ID)
	}
	songAnns := a.annotationsFor(ctx, user.ID, models.KindSong, songIDs)
	for _, s := range songs {
		starred.Song = append(starred.Song, toChild(s, songAnns[s.ID]))
	}

	resp := NewResponse()
	resp.Starred2 = starred
	sendResponse(w, r, resp)
}

func (a *API) handleSearch3(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'query' is missing")
		return
	}
	// Some clients quote the query when asking for "everything".
	if query == `""` {
		query = ""
	}
	pattern := "%" + query + "%"
	ctx := r.Context()

	artistCount := queryInt(r, "artistCount", 20, 200)
	artistOffset := queryInt(r, "artistOffset", 0, 0)
	albumCount := queryInt(r, "albumCount", 20, 200)
	albumOffset := queryInt(r, "albumOffset", 0, 0)
	songCount := queryInt(r, "songCount", 20, 500)
	songOffset := queryInt(r, "songOffset", 0, 0)

	result := &SearchResult3{}

	type artistRow struct {
		models.Artist
		AlbumCount int
	}
	var artists []artistRow
	err := a.db.WithContext(ctx).Table("artists").
		Select("artists.*, (SELECT COUNT(*) FROM albums WHERE albums.artist_id = artists.id) AS album_count").
		Where("artists.name LIKE ?", pattern).
		Order("artists.name").Limit(artistCount).Offset(artistOffset).
		Scan(&artists).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("artist search failed")
		sendError(w, r, ErrCodeGeneric, "search failed")
		return
	}
	for _, ar := range artists {
		result.Artist = append(result.Artist, toArtist(ar.Artist, ar.AlbumCount, nil))
	}

	var albums []albumRow
	err = a.albumQuery(r).
		Where("albums.name LIKE ?", pattern).
		Order("albums.name").Limit(albumCount).Offset(albumOffset).
		Scan(&albums).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("album search failed")
		sendError(w, r, ErrCodeGeneric, "search failed")
		return
	}
	albumIDs := make([]string, 0, len(albums))
	for _, al := range albums {
		albumIDs = append(albumIDs, al.ID)
	}
	albumAnns := a.annotationsFor(ctx, user.ID, models.KindAlbum, albumIDs)
	for _, al := range albums {
		result.Album = append(result.Album, toAlbum(al.Album, al.ArtistName, albumAnns[al.ID]))
	}

	var songs []songRow
	err = a.songQuery(ctx).
		Where("songs.title LIKE ?", pattern).
		Order("songs.title").Limit(songCount).Offset(songOffset).
		Scan(&songs).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("song search failed")
		sendError(w, r, ErrCodeGeneric, "search failed")
		return
	}
	songIDs := make([]string, 0, len(songs))
	for _, s := range songs {
		songIDs = append(songIDs, s.ID)
	}
	songAnns := a.annotationsFor(ctx, user.ID, models.KindSong, songIDs)
	for _, s := range songs {
		result.Song = append(result.Song, toChild(s, songAnns[s.ID]))
	}

	resp := NewResponse()
	resp.SearchResult3 = result
	sendResponse(w, r, resp)
}
