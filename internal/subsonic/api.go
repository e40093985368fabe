/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/artwork"
	"github.com/friendsincode/bragi_stream/internal/auth"
	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/config"
	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/models"
	"github.com/friendsincode/bragi_stream/internal/scanner"
)

// API exposes the Subsonic-compatible REST handlers.
type API struct {
	db      *gorm.DB
	scanner *scanner.Scanner
	artwork *artwork.Service
	cache   *cache.Cache
	sealer  *auth.PasswordSealer
	bus     *events.Bus
	folders []config.MusicFolder
	logger  zerolog.Logger
}

// New creates the Subsonic API.
func New(db *gorm.DB, scan *scanner.Scanner, art *artwork.Service, c *cache.Cache, sealer *auth.PasswordSealer, bus *events.Bus, folders []config.MusicFolder, logger zerolog.Logger) *API {
	return &API{
		db:      db,
		scanner: scan,
		artwork: art,
		cache:   c,
		sealer:  sealer,
		bus:     bus,
		folders: folders,
		logger:  logger.With().Str("component", "subsonic").Logger(),
	}
}

// Routes mounts /rest on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/rest", func(r chi.Router) {
		r.Use(a.authMiddleware)

		// System
		a.handle(r, "ping", a.handlePing)
		a.handle(r, "getLicense", a.handleGetLicense)
		a.handle(r, "startScan", a.handleStartScan)
		a.handle(r, "getScanStatus", a.handleGetScanStatus)

		// Browsing
		a.handle(r, "getMusicFolders", a.handleGetMusicFolders)
		a.handle(r, "getIndexes", a.handleGetIndexes)
		a.handle(r, "getArtists", a.handleGetArtists)
		a.handle(r, "getArtist", a.handleGetArtist)
		a.handle(r, "getAlbum", a.handleGetAlbum)
		a.handle(r, "getSong", a.handleGetSong)
		a.handle(r, "getGenres", a.handleGetGenres)

		// Lists and search
		a.handle(r, "getAlbumList2", a.handleGetAlbumList2)
		a.handle(r, "getRandomSongs", a.handleGetRandomSongs)
		a.handle(r, "getSongsByGenre", a.handleGetSongsByGenre)
		a.handle(r, "getStarred2", a.handleGetStarred2)
		a.handle(r, "search3", a.handleSearch3)

		// Media retrieval
		a.handle(r, "stream", a.handleStream)
		a.handle(r, "download", a.handleDownload)
		a.handle(r, "getCoverArt", a.handleGetCoverArt)

		// Playlists
		a.handle(r, "getPlaylists", a.handleGetPlaylists)
		a.handle(r, "getPlaylist", a.handleGetPlaylist)
		a.handle(r, "createPlaylist", a.handleCreatePlaylist)
		a.handle(r, "updatePlaylist", a.handleUpdatePlaylist)
		a.handle(r, "deletePlaylist", a.handleDeletePlaylist)

		// Annotations
		a.handle(r, "star", a.handleStar)
		a.handle(r, "unstar", a.handleUnstar)
		a.handle(r, "setRating", a.handleSetRating)
		a.handle(r, "scrobble", a.handleScrobble)

		// User management
		a.handle(r, "getUser", a.handleGetUser)
		a.handle(r, "getUsers", a.handleGetUsers)
		a.handle(r, "createUser", a.handleCreateUser)
		a.handle(r, "updateUser", a.handleUpdateUser)
		a.handle(r, "deleteUser", a.handleDeleteUser)
		a.handle(r, "changePassword", a.handleChangePassword)
	})
}

// handle registers a view under both its bare name and the legacy .view
// suffix, for any method. Clients disagree on both.
func (a *API) handle(r chi.Router, name string, h http.HandlerFunc) {
	r.HandleFunc("/"+name, h)
	r.HandleFunc("/"+name+".view", h)
}

// authMiddleware validates Subsonic parameter authentication: either
// u + t + s (token auth, t = md5(password + s)) or the legacy u + p form.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		username := q.Get("u")
		if username == "" {
			sendError(w, r, ErrCodeMissingParam, "required parameter 'u' is missing")
			return
		}

		token, salt, password := q.Get("t"), q.Get("s"), q.Get("p")
		if (token == "" || salt == "") && password == "" {
			sendError(w, r, ErrCodeMissingParam, "authentication parameters are missing")
			return
		}

		var user models.User
		err := a.db.WithContext(r.Context()).Where("username = ?", username).First(&user).Error
		if err != nil {
			// Same error as a bad password so usernames cannot be probed.
			sendError(w, r, ErrCodeWrongAuth, "wrong username or password")
			return
		}

		stored, err := a.sealer.Open(user.SealedPassword)
		if err != nil {
			a.logger.Error().Err(err).Str("username", username).Msg("failed to unseal password")
			sendError(w, r, ErrCodeWrongAuth, "wrong username or password")
			return
		}

		ok := false
		if token != "" && salt != "" {
			ok = auth.CheckToken(stored, salt, token)
		} else {
			ok = auth.CheckPassword(stored, password)
		}
		if !ok {
			sendError(w, r, ErrCodeWrongAuth, "wrong username or password")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), &user)))
	})
}

// requireAdmin fetches the authenticated user and enforces the admin flag.
// Returns nil after writing the error response when the check fails.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) *models.User {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		sendError(w, r, ErrCodeWrongAuth, "authentication required")
		return nil
	}
	if !user.Admin {
		sendError(w, r, ErrCodeNotAuthorized, user.Username+" is not authorized to perform this action")
		return nil
	}
	return user
}

// currentUser fetches the authenticated user, writing an error when absent.
func (a *API) currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		sendError(w, r, ErrCodeWrongAuth, "authentication required")
		return nil
	}
	return user
}
