/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"errors"
	"net/http"

	"github.com/friendsincode/bragi_stream/internal/scanner"
)

func (a *API) handlePing(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, r, NewResponse())
}

func (a *API) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	resp := NewResponse()
	resp.License = &License{Valid: true}
	sendResponse(w, r, resp)
}

// handleStartScan kicks off a background scan. A scan already in progress
// is not an error; the current status is returned either way.
func (a *API) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if a.requireAdmin(w, r) == nil {
		return
	}

	full := r.URL.Query().Get("fullScan") == "true"
	err := a.scanner.StartAsync(r.Context(), scanner.Options{Full: full})
	if err != nil && !errors.Is(err, scanner.ErrScanInProgress) {
		a.logger.Error().Err(err).Msg("failed to start scan")
		sendError(w, r, ErrCodeGeneric, "failed to start scan")
		return
	}

	a.writeScanStatus(w, r)
}

func (a *API) handleGetScanStatus(w http.ResponseWriter, r *http.Request) {
	a.writeScanStatus(w, r)
}

func (a *API) writeScanStatus(w http.ResponseWriter, r *http.Request) {
	status := a.scanner.Status()
	resp := NewResponse()
	resp.ScanStatus = &ScanStatus{Scanning: status.Scanning, Count: status.Count}
	sendResponse(w, r, resp)
}
