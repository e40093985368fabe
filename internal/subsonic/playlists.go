/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/models"
)

func (a *API) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	ctx := r.Context()

	query := a.db.WithContext(ctx).Model(&models.Playlist{})
	if target := r.URL.Query().Get("username"); target != "" && target != user.Username {
		// Only admins may list another user's playlists.
		if !user.Admin {
			sendError(w, r, ErrCodeNotAuthorized, user.Username+" is not authorized to list playlists of other users")
			return
		}
		var owner models.User
		if err := a.db.WithContext(ctx).Where("username = ?", target).First(&owner).Error; err != nil {
			sendError(w, r, ErrCodeNotFound, "user not found")
			return
		}
		query = query.Where("owner_id = ?", owner.ID)
	} else {
		query = query.Where("owner_id = ? OR public", user.ID)
	}

	var lists []models.Playlist
	if err := query.Order("name").Find(&lists).Error; err != nil {
		a.logger.Error().Err(err).Msg("playlist list query failed")
		sendError(w, r, ErrCodeGeneric, "failed to load playlists")
		return
	}

	out := &Playlists{Playlist: []Playlist{}}
	for _, pl := range lists {
		out.Playlist = append(out.Playlist, a.toPlaylist(r.Context(), pl, false))
	}

	resp := NewResponse()
	resp.Playlists = out
	sendResponse(w, r, resp)
}

func (a *API) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}

	var pl models.Playlist
	if err := a.db.WithContext(r.Context()).Where("id = ?", id).First(&pl).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "playlist not found")
		return
	}
	if pl.OwnerID != user.ID && !pl.Public && !user.Admin {
		sendError(w, r, ErrCodeNotAuthorized, user.Username+" is not authorized to view this playlist")
		return
	}

	out := a.toPlaylist(r.Context(), pl, true)
	resp := NewResponse()
	resp.Playlist = &out
	sendResponse(w, r, resp)
}

func (a *API) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	q := r.URL.Query()
	name := q.Get("name")
	playlistID := q.Get("playlistId")
	if name == "" && playlistID == "" {
		sendError(w, r, ErrCodeMissingParam, "either 'name' or 'playlistId' is required")
		return
	}
	songIDs := q["songId"]
	ctx := r.Context()

	var pl models.Playlist
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if playlistID != "" {
			if err := tx.Where("id = ?", playlistID).First(&pl).Error; err != nil {
				return err
			}
			if pl.OwnerID != user.ID && !user.Admin {
				return errNotOwner
			}
			if name != "" {
				pl.Name = name
			}
			// Replace semantics: createPlaylist with playlistId rewrites entries.
			if err := tx.Where("playlist_id = ?", pl.ID).Delete(&models.PlaylistEntry{}).Error; err != nil {
				return err
			}
		} else {
			pl = models.Playlist{ID: uuid.NewString(), OwnerID: user.ID, Name: name}
			if err := tx.Create(&pl).Error; err != nil {
				return err
			}
		}

		if err := appendEntries(tx, pl.ID, 0, songIDs); err != nil {
			return err
		}
		return refreshPlaylistAggregates(tx, pl.ID)
	})
	if err == errNotOwner {
		sendError(w, r, ErrCodeNotAuthorized, user.Username+" is not authorized to modify this playlist")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("create playlist failed")
		sendError(w, r, ErrCodeGeneric, "failed to create playlist")
		return
	}

	a.bus.Publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": pl.ID})

	// Return the stored playlist with entries, like the reference server.
	if err := a.db.WithContext(ctx).Where("id = ?", pl.ID).First(&pl).Error; err != nil {
		sendError(w, r, ErrCodeGeneric, "failed to load playlist")
		return
	}
	out := a.toPlaylist(ctx, pl, true)
	resp := NewResponse()
	resp.Playlist = &out
	sendResponse(w, r, resp)
}

func (a *API) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	q := r.URL.Query()
	id := q.Get("playlistId")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'playlistId' is missing")
		return
	}
	ctx := r.Context()

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pl models.Playlist
		if err := tx.Where("id = ?", id).First(&pl).Error; err != nil {
			return err
		}
		if pl.OwnerID != user.ID && !user.Admin {
			return errNotOwner
		}

		if name := q.Get("name"); name != "" {
			pl.Name = name
		}
		if comment, ok := queryString(q, "comment"); ok {
			pl.Comment = comment
		}
		if public := q.Get("public"); public != "" {
			pl.Public = public == "true"
		}
		if err := tx.Save(&pl).Error; err != nil {
			return err
		}

		// Removals are by position, processed high to low so indices stay valid.
		if removals := q["songIndexToRemove"]; len(removals) > 0 {
			positions := make([]int, 0, len(removals))
			for _, raw := range removals {
				if idx, err := strconv.Atoi(raw); err == nil {
					positions = append(positions, idx)
				}
			}
			if err := removeEntriesAt(tx, pl.ID, positions); err != nil {
				return err
			}
		}

		if adds := q["songIdToAdd"]; len(adds) > 0 {
			var maxPos int
			if err := tx.Model(&models.PlaylistEntry{}).
				Where("playlist_id = ?", pl.ID).
				Select("COALESCE(MAX(position), -1)").Scan(&maxPos).Error; err != nil {
				return err
			}
			if err := appendEntries(tx, pl.ID, maxPos+1, adds); err != nil {
				return err
			}
		}

		return refreshPlaylistAggregates(tx, pl.ID)
	})
	if err == errNotOwner {
		sendError(w, r, ErrCodeNotAuthorized, user.Username+" is not authorized to modify this playlist")
		return
	}
	if err == gorm.ErrRecordNotFound {
		sendError(w, r, ErrCodeNotFound, "playlist not found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("update playlist failed")
		sendError(w, r, ErrCodeGeneric, "failed to update playlist")
		return
	}

	a.bus.Publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": id})
	sendResponse(w, r, NewResponse())
}

func (a *API) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
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

	var pl models.Playlist
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&pl).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "playlist not found")
		return
	}
	if pl.OwnerID != user.ID && !user.Admin {
		sendError(w, r, ErrCodeNotAuthorized, user.Username+" is not authorized to delete this playlist")
		return
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&pl).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("delete playlist failed")
		sendError(w, r, ErrCodeGeneric, "failed to delete playlist")
		return
	}

	a.bus.Publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": id})
	sendResponse(w, r, NewResponse())
}
