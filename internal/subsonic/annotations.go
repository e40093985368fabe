/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/models"
)

// resolveKind finds what catalog item an id refers to. The generic id
// parameter of star/unstar can name a song, album, or artist.
func (a *API) resolveKind(ctx context.Context, id string) (models.ItemKind, bool) {
	var count int64
	if a.db.WithContext(ctx).Model(&models.Song{}).Where("id = ?", id).Count(&count); count > 0 {
		return models.KindSong, true
	}
	if a.db.WithContext(ctx).Model(&models.Album{}).Where("id = ?", id).Count(&count); count > 0 {
		return models.KindAlbum, true
	}
	if a.db.WithContext(ctx).Model(&models.Artist{}).Where("id = ?", id).Count(&count); count > 0 {
		return models.KindArtist, true
	}
	return "", false
}

type annotationTarget struct {
	id   string
	kind models.ItemKind
}

// collectTargets gathers every item named by the id/albumId/artistId
// parameters. Returns false after writing an error response.
func (a *API) collectTargets(w http.ResponseWriter, r *http.Request) ([]annotationTarget, bool) {
	q := r.URL.Query()
	var targets []annotationTarget

	for _, id := range q["id"] {
		kind, ok := a.resolveKind(r.Context(), id)
		if !ok {
			sendError(w, r, ErrCodeNotFound, "item "+id+" not found")
			return nil, false
		}
		targets = append(targets, annotationTarget{id: id, kind: kind})
	}
	for _, id := range q["albumId"] {
		targets = append(targets, annotationTarget{id: id, kind: models.KindAlbum})
	}
	for _, id := range q["artistId"] {
		targets = append(targets, annotationTarget{id: id, kind: models.KindArtist})
	}

	if len(targets) == 0 {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return nil, false
	}
	return targets, true
}

// upsertAnnotation applies mutate to the user's annotation row for an item,
// creating the row if needed.
func (a *API) upsertAnnotation(ctx context.Context, userID, itemID string, kind models.ItemKind, mutate func(*models.Annotation)) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ann models.Annotation
		err := tx.Where("user_id = ? AND item_id = ? AND item_kind = ?", userID, itemID, kind).First(&ann).Error
		if err == gorm.ErrRecordNotFound {
			ann = models.Annotation{
				ID:       uuid.NewString(),
				UserID:   userID,
				ItemID:   itemID,
				ItemKind: kind,
			}
		} else if err != nil {
			return err
		}
		mutate(&ann)
		return tx.Save(&ann).Error
	})
}

func (a *API) handleStar(w http.ResponseWriter, r *http.Request) {
	a.setStarred(w, r, true)
}

func (a *API) handleUnstar(w http.ResponseWriter, r *http.Request) {
	a.setStarred(w, r, false)
}

func (a *API) setStarred(w http.ResponseWriter, r *http.Request, starred bool) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	targets, ok := a.collectTargets(w, r)
	if !ok {
		return
	}

	now := time.Now()
	for _, target := range targets {
		err := a.upsertAnnotation(r.Context(), user.ID, target.id, target.kind, func(ann *models.Annotation) {
			ann.Starred = starred
			if starred {
				ann.StarredAt = &now
			} else {
				ann.StarredAt = nil
			}
		})
		if err != nil {
			a.logger.Error().Err(err).Str("item_id", target.id).Msg("star update failed")
			sendError(w, r, ErrCodeGeneric, "failed to update star")
			return
		}
	}

	sendResponse(w, r, NewResponse())
}

func (a *API) handleSetRating(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}
	ratingRaw := q.Get("rating")
	if ratingRaw == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'rating' is missing")
		return
	}
	rating, err := strconv.Atoi(ratingRaw)
	if err != nil || rating < 0 || rating > 5 {
		sendError(w, r, ErrCodeGeneric, "rating must be between 0 and 5")
		return
	}

	kind, ok := a.resolveKind(r.Context(), id)
	if !ok {
		sendError(w, r, ErrCodeNotFound, "item "+id+" not found")
		return
	}

	err = a.upsertAnnotation(r.Context(), user.ID, id, kind, func(ann *models.Annotation) {
		ann.Rating = rating
	})
	if err != nil {
		a.logger.Error().Err(err).Str("item_id", id).Msg("rating update failed")
		sendError(w, r, ErrCodeGeneric, "failed to set rating")
		return
	}

	sendResponse(w, r, NewResponse())
}

// handleScrobble records plays. submission=false is a now-playing
// notification and does not bump play counts.
func (a *API) handleScrobble(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	q := r.URL.Query()
	ids := q["id"]
	if len(ids) == 0 {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}

	submission := q.Get("submission") != "false"
	times := q["time"]
	ctx := r.Context()

	for i, id := range ids {
		var song models.Song
		if err := a.db.WithContext(ctx).Where("id = ?", id).First(&song).Error; err != nil {
			sendError(w, r, ErrCodeNotFound, "song "+id+" not found")
			return
		}

		playedAt := time.Now()
		if i < len(times) {
			if millis, err := strconv.ParseInt(times[i], 10, 64); err == nil {
				playedAt = time.UnixMilli(millis)
			}
		}

		err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			history := models.PlayHistory{
				ID:         uuid.NewString(),
				UserID:     user.ID,
				SongID:     song.ID,
				PlayedAt:   playedAt,
				Submission: submission,
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
			if !submission {
				return nil
			}
			if err := tx.Model(&models.Song{}).Where("id = ?", song.ID).
				Update("play_count", gorm.Expr("play_count + 1")).Error; err != nil {
				return err
			}
			return tx.Model(&models.Album{}).Where("id = ?", song.AlbumID).
				Update("play_count", gorm.Expr("play_count + 1")).Error
		})
		if err != nil {
			a.logger.Error().Err(err).Str("song_id", id).Msg("scrobble failed")
			sendError(w, r, ErrCodeGeneric, "failed to record play")
			return
		}
	}

	sendResponse(w, r, NewResponse())
}
