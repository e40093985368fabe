/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"net/http"
	"sort"

	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/models"
)

func (a *API) handleGetMusicFolders(w http.ResponseWriter, r *http.Request) {
	folders := make([]MusicFolder, 0, len(a.folders))
	for _, f := range a.folders {
		folders = append(folders, MusicFolder{ID: f.ID, Name: f.Name})
	}

	resp := NewResponse()
	resp.MusicFolders = &MusicFolders{MusicFolder: folders}
	sendResponse(w, r, resp)
}

// handleGetIndexes serves the same ID3 index as getArtists; this server has
// no separate file-structure view.
func (a *API) handleGetIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := a.buildIndexes(r)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to build artist index")
		sendError(w, r, ErrCodeGeneric, "failed to build artist index")
		return
	}
	resp := NewResponse()
	resp.Indexes = indexes
	sendResponse(w, r, resp)
}

func (a *API) handleGetArtists(w http.ResponseWriter, r *http.Request) {
	indexes, err := a.buildIndexes(r)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to build artist index")
		sendError(w, r, ErrCodeGeneric, "failed to build artist index")
		return
	}
	resp := NewResponse()
	resp.Artists = indexes
	sendResponse(w, r, resp)
}

// buildIndexes assembles the alphabetical artist index, preferring the
// cached copy. The cache is invalidated when a scan changes the library.
func (a *API) buildIndexes(r *http.Request) (*Indexes, error) {
	ctx := r.Context()

	if cached, ok := a.cache.GetArtistIndex(ctx); ok {
		return cachedToIndexes(cached), nil
	}

	type artistRow struct {
		models.Artist
		AlbumCount int
	}
	var rows []artistRow
	err := a.db.WithContext(ctx).Table("artists").
		Select("artists.*, (SELECT COUNT(*) FROM albums WHERE albums.artist_id = artists.id) AS album_count").
		Order("artists.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]Artist)
	cacheBuckets := make(map[string][]cache.CachedIndexEntry)
	for _, row := range rows {
		letter := indexLetter(row.Name)
		buckets[letter] = append(buckets[letter], toArtist(row.Artist, row.AlbumCount, nil))
		cacheBuckets[letter] = append(cacheBuckets[letter], cache.CachedIndexEntry{
			ID:         row.ID,
			Name:       row.Name,
			AlbumCount: row.AlbumCount,
		})
	}

	letters := make([]string, 0, len(buckets))
	for letter := range buckets {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	indexes := &Indexes{IgnoredArticles: ignoredArticles}
	cached := make([]cache.CachedIndex, 0, len(letters))
	for _, letter := range letters {
		indexes.Index = append(indexes.Index, Index{Name: letter, Artist: buckets[letter]})
		cached = append(cached, cache.CachedIndex{Name: letter, Artists: cacheBuckets[letter]})
	}

	if err := a.cache.SetArtistIndex(ctx, cached); err != nil {
		a.logger.Debug().Err(err).Msg("artist index cache write failed")
	}
	return indexes, nil
}

func cachedToIndexes(cached []cache.CachedIndex) *Indexes {
	indexes := &Indexes{IgnoredArticles: ignoredArticles}
	for _, bucket := range cached {
		idx := Index{Name: bucket.Name}
		for _, entry := range bucket.Artists {
			idx.Artist = append(idx.Artist, Artist{
				ID:         entry.ID,
				Name:       entry.Name,
				AlbumCount: entry.AlbumCount,
			})
		}
		indexes.Index = append(indexes.Index, idx)
	}
	return indexes
}

func (a *API) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}
	ctx := r.Context()

	var artist models.Artist
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&artist).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "artist not found")
		return
	}

	var albums []models.Album
	if err := a.db.WithContext(ctx).Where("artist_id = ?", id).Order("year, name").Find(&albums).Error; err != nil {
		a.logger.Error().Err(err).Msg("failed to load artist albums")
		sendError(w, r, ErrCodeGeneric, "failed to load artist")
		return
	}

	albumIDs := make([]string, 0, len(albums))
	for _, al := range albums {
		albumIDs = append(albumIDs, al.ID)
	}
	albumAnns := a.annotationsFor(ctx, user.ID, models.KindAlbum, albumIDs)
	artistAnn := a.annotationsFor(ctx, user.ID, models.KindArtist, []string{artist.ID})

	out := toArtist(artist, len(albums), artistAnn[artist.ID])
	for _, al := range albums {
		out.Album = append(out.Album, toAlbum(al, artist.Name, albumAnns[al.ID]))
	}

	resp := NewResponse()
	resp.Artist = &out
	sendResponse(w, r, resp)
}

func (a *API) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}
	ctx := r.Context()

	var album models.Album
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&album).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "album not found")
		return
	}

	var artist models.Artist
	if err := a.db.WithContext(ctx).Where("id = ?", album.ArtistID).First(&artist).Error; err != nil {
		a.logger.Error().Err(err).Str("album_id", id).Msg("album references missing artist")
		sendError(w, r, ErrCodeGeneric, "failed to load album")
		return
	}

	var rows []songRow
	if err := a.songQuery(ctx).Where("songs.album_id = ?", id).
		Order("songs.disc, songs.track, songs.title").Scan(&rows).Error; err != nil {
		a.logger.Error().Err(err).Msg("failed to load album songs")
		sendError(w, r, ErrCodeGeneric, "failed to load album")
		return
	}

	songIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		songIDs = append(songIDs, row.ID)
	}
	songAnns := a.annotationsFor(ctx, user.ID, models.KindSong, songIDs)
	albumAnn := a.annotationsFor(ctx, user.ID, models.KindAlbum, []string{album.ID})

	out := toAlbum(album, artist.Name, albumAnn[album.ID])
	for _, row := range rows {
		out.Song = append(out.Song, toChild(row, songAnns[row.ID]))
	}

	resp := NewResponse()
	resp.Album = &out
	sendResponse(w, r, resp)
}

func (a *API) handleGetSong(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}
	ctx := r.Context()

	var row songRow
	if err := a.songQuery(ctx).Where("songs.id = ?", id).Scan(&row).Error; err != nil || row.ID == "" {
		sendError(w, r, ErrCodeNotFound, "song not found")
		return
	}

	anns := a.annotationsFor(ctx, user.ID, models.KindSong, []string{row.ID})
	child := toChild(row, anns[row.ID])

	resp := NewResponse()
	resp.Song = &child
	sendResponse(w, r, resp)
}

func (a *API) handleGetGenres(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cached, ok := a.cache.GetGenres(ctx); ok {
		genres := &Genres{}
		for _, g := range cached {
			genres.Genre = append(genres.Genre, Genre{Name: g.Name, SongCount: g.SongCount, AlbumCount: g.AlbumCount})
		}
		resp := NewResponse()
		resp.Genres = genres
		sendResponse(w, r, resp)
		return
	}

	type genreRow struct {
		Genre      string
		SongCount  int
		AlbumCount int
	}
	var rows []genreRow
	err := a.db.WithContext(ctx).Raw(`
		SELECT songs.genre AS genre,
			COUNT(*) AS song_count,
			COUNT(DISTINCT songs.album_id) AS album_count
		FROM songs
		WHERE songs.genre <> ''
		GROUP BY songs.genre
		ORDER BY songs.genre`).Scan(&rows).Error
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to load genres")
		sendError(w, r, ErrCodeGeneric, "failed to load genres")
		return
	}

	genres := &Genres{}
	cached := make([]cache.CachedGenre, 0, len(rows))
	for _, row := range rows {
		genres.Genre = append(genres.Genre, Genre{Name: row.Genre, SongCount: row.SongCount, AlbumCount: row.AlbumCount})
		cached = append(cached, cache.CachedGenre{Name: row.Genre, SongCount: row.SongCount, AlbumCount: row.AlbumCount})
	}

	if err := a.cache.SetGenres(ctx, cached); err != nil {
		a.logger.Debug().Err(err).Msg("genre cache write failed")
	}

	resp := NewResponse()
	resp.Genres = genres
	sendResponse(w, r, resp)
}
