/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package admin exposes the JSON management API under /api/v1. Unlike the
// Subsonic surface it uses JWT Bearer authentication.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/auth"
	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/models"
	"github.com/friendsincode/bragi_stream/internal/scanner"
	"github.com/friendsincode/bragi_stream/internal/version"
)

const tokenTTL = 24 * time.Hour

// API is the admin HTTP handler.
type API struct {
	db        *gorm.DB
	scanner   *scanner.Scanner
	sealer    *auth.PasswordSealer
	bus       *events.Bus
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the admin API.
func New(db *gorm.DB, scan *scanner.Scanner, sealer *auth.PasswordSealer, bus *events.Bus, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		scanner:   scan,
		sealer:    sealer,
		bus:       bus,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "admin").Logger(),
	}
}

// Routes mounts /api/v1 on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", a.handleLogin)
		r.Get("/version", a.handleVersion)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Get("/events", a.handleEvents)
			pr.Get("/scan/status", a.handleScanStatus)

			pr.Group(func(ar chi.Router) {
				ar.Use(auth.RequireAdmin)
				ar.Post("/scan", a.handleStartScan)
			})
		})
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).Where("username = ?", req.Username).First(&user).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "wrong username or password")
		return
	}
	stored, err := a.sealer.Open(user.SealedPassword)
	if err != nil || !auth.CheckPassword(stored, req.Password) {
		writeError(w, http.StatusUnauthorized, "wrong username or password")
		return
	}

	token, err := auth.Issue(a.jwtSecret, auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Admin:    user.Admin,
	}, tokenTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Username: user.Username, Admin: user.Admin})
}

func (a *API) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func (a *API) handleScanStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.scanner.Status())
}

func (a *API) handleStartScan(w http.ResponseWriter, r *http.Request) {
	full := r.URL.Query().Get("full") == "true"
	if err := a.scanner.StartAsync(r.Context(), scanner.Options{Full: full}); err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			writeError(w, http.StatusConflict, "scan already in progress")
			return
		}
		a.logger.Error().Err(err).Msg("scan start failed")
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}
	writeJSON(w, http.StatusAccepted, a.scanner.Status())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
