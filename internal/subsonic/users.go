/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/models"
)

func toUser(u models.User) User {
	return User{
		Username:     u.Username,
		Email:        u.Email,
		AdminRole:    u.Admin,
		SettingsRole: true,
		DownloadRole: true,
		PlaylistRole: true,
		StreamRole:   true,
		ScrobbleRole: true,
	}
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	caller := a.currentUser(w, r)
	if caller == nil {
		return
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		username = caller.Username
	}
	if username != caller.Username && !caller.Admin {
		sendError(w, r, ErrCodeNotAuthorized, caller.Username+" is not authorized to view other users")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "user not found")
		return
	}

	resp := NewResponse()
	u := toUser(user)
	resp.User = &u
	sendResponse(w, r, resp)
}

func (a *API) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	if a.requireAdmin(w, r) == nil {
		return
	}

	var users []models.User
	if err := a.db.WithContext(r.Context()).Order("username").Find(&users).Error; err != nil {
		a.logger.Error().Err(err).Msg("user list query failed")
		sendError(w, r, ErrCodeGeneric, "failed to load users")
		return
	}

	out := &Users{User: []User{}}
	for _, u := range users {
		out.User = append(out.User, toUser(u))
	}

	resp := NewResponse()
	resp.Users = out
	sendResponse(w, r, resp)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if a.requireAdmin(w, r) == nil {
		return
	}
	q := r.URL.Query()
	username := q.Get("username")
	password := q.Get("password")
	if username == "" || password == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameters 'username' and 'password' are missing")
		return
	}
	if decoded, ok := decodePassword(password); ok {
		password = decoded
	} else {
		sendError(w, r, ErrCodeGeneric, "malformed password parameter")
		return
	}

	sealed, err := a.sealer.Seal(password)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to seal password")
		sendError(w, r, ErrCodeGeneric, "failed to create user")
		return
	}

	user := models.User{
		ID:             uuid.NewString(),
		Username:       username,
		SealedPassword: sealed,
		Email:          q.Get("email"),
		Admin:          q.Get("adminRole") == "true",
	}
	if err := a.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		a.logger.Error().Err(err).Str("username", username).Msg("user create failed")
		sendError(w, r, ErrCodeGeneric, "failed to create user")
		return
	}

	a.bus.Publish(events.EventUserCreated, events.Payload{"username": username})
	sendResponse(w, r, NewResponse())
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if a.requireAdmin(w, r) == nil {
		return
	}
	q := r.URL.Query()
	username := q.Get("username")
	if username == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'username' is missing")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "user not found")
		return
	}

	if email, ok := queryString(q, "email"); ok {
		user.Email = email
	}
	if admin := q.Get("adminRole"); admin != "" {
		user.Admin = admin == "true"
	}
	if password := q.Get("password"); password != "" {
		decoded, ok := decodePassword(password)
		if !ok {
			sendError(w, r, ErrCodeGeneric, "malformed password parameter")
			return
		}
		sealed, err := a.sealer.Seal(decoded)
		if err != nil {
			sendError(w, r, ErrCodeGeneric, "failed to update user")
			return
		}
		user.SealedPassword = sealed
	}

	if err := a.db.WithContext(r.Context()).Save(&user).Error; err != nil {
		a.logger.Error().Err(err).Str("username", username).Msg("user update failed")
		sendError(w, r, ErrCodeGeneric, "failed to update user")
		return
	}

	sendResponse(w, r, NewResponse())
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := a.requireAdmin(w, r)
	if caller == nil {
		return
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'username' is missing")
		return
	}
	if username == caller.Username {
		sendError(w, r, ErrCodeGeneric, "cannot delete the authenticated user")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "user not found")
		return
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Annotation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.PlayHistory{}).Error; err != nil {
			return err
		}
		var playlists []models.Playlist
		if err := tx.Where("owner_id = ?", user.ID).Find(&playlists).Error; err != nil {
			return err
		}
		for _, pl := range playlists {
			if err := tx.Where("playlist_id = ?", pl.ID).Delete(&models.PlaylistEntry{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Playlist{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Str("username", username).Msg("user delete failed")
		sendError(w, r, ErrCodeGeneric, "failed to delete user")
		return
	}

	a.bus.Publish(events.EventUserDeleted, events.Payload{"username": username})
	sendResponse(w, r, NewResponse())
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	caller := a.currentUser(w, r)
	if caller == nil {
		return
	}
	q := r.URL.Query()
	username := q.Get("username")
	password := q.Get("password")
	if username == "" || password == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameters 'username' and 'password' are missing")
		return
	}
	if username != caller.Username && !caller.Admin {
		sendError(w, r, ErrCodeNotAuthorized, caller.Username+" is not authorized to change this password")
		return
	}
	decoded, ok := decodePassword(password)
	if !ok {
		sendError(w, r, ErrCodeGeneric, "malformed password parameter")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "user not found")
		return
	}

	sealed, err := a.sealer.Seal(decoded)
	if err != nil {
		sendError(w, r, ErrCodeGeneric, "failed to change password")
		return
	}
	if err := a.db.WithContext(r.Context()).Model(&user).Update("sealed_password", sealed).Error; err != nil {
		a.logger.Error().Err(err).Str("username", username).Msg("password change failed")
		sendError(w, r, ErrCodeGeneric, "failed to change password")
		return
	}

	sendResponse(w, r, NewResponse())
}
