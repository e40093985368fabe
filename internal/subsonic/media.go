/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/friendsincode/bragi_stream/internal/models"
)

// handleStream serves the raw audio file with range support. Transcoding is
// not implemented; maxBitRate and format hints are ignored.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	a.serveSongFile(w, r, false)
}

// handleDownload is stream with a download disposition.
func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	a.serveSongFile(w, r, true)
}

func (a *API) serveSongFile(w http.ResponseWriter, r *http.Request, asAttachment bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}

	var song models.Song
	if err := a.db.WithContext(r.Context()).Where("id = ?", id).First(&song).Error; err != nil {
		sendError(w, r, ErrCodeNotFound, "song not found")
		return
	}

	f, err := os.Open(song.Path)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", song.Path).Msg("song file missing on disk")
		sendError(w, r, ErrCodeNotFound, "media file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		sendError(w, r, ErrCodeGeneric, "failed to stat media file")
		return
	}

	if song.ContentType != "" {
		w.Header().Set("Content-Type", song.ContentType)
	}
	if asAttachment {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(song.Path)+`"`)
	}

	http.ServeContent(w, r, filepath.Base(song.Path), info.ModTime(), f)
}

func (a *API) handleGetCoverArt(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		sendError(w, r, ErrCodeMissingParam, "required parameter 'id' is missing")
		return
	}
	size := queryInt(r, "size", 0, 0)

	data, mime, err := a.artwork.Get(r.Context(), id, size)
	if err != nil {
		sendError(w, r, ErrCodeNotFound, "cover art not found")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, id, time.Time{}, bytes.NewReader(data))
}
