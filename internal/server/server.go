/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the HTTP surfaces and background workers together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/admin"
	"github.com/friendsincode/bragi_stream/internal/artwork"
	"github.com/friendsincode/bragi_stream/internal/auth"
	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/config"
	"github.com/friendsincode/bragi_stream/internal/db"
	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/metadata"
	"github.com/friendsincode/bragi_stream/internal/scanner"
	"github.com/friendsincode/bragi_stream/internal/storage"
	"github.com/friendsincode/bragi_stream/internal/subsonic"
	"github.com/friendsincode/bragi_stream/internal/telemetry"
	"github.com/friendsincode/bragi_stream/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db       *gorm.DB
	cache    *cache.Cache
	bus      *events.Bus
	scanner  *scanner.Scanner
	artwork  *artwork.Service
	subsonic *subsonic.API
	admin    *admin.API
	updates  *version.Checker

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("bragi-stream-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket upgrades and audio streaming.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			if isStreamingPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// No write deadline: stream/download responses can legitimately run
		// for the length of a song. The middleware timeout covers the rest.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// isStreamingPath reports whether the request serves audio and must not be
// subject to the request timeout.
func isStreamingPath(path string) bool {
	for _, prefix := range []string{"/rest/stream", "/rest/download"} {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		s.logger.Warn().Err(err).Msg("database metrics callbacks not registered")
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := os.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", s.cfg.DataDir, err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	browseCache, err := cache.New(cacheCfg, s.logger)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	s.cache = browseCache
	s.DeferClose(func() error { return s.cache.Close() })

	store, err := s.newObjectStore()
	if err != nil {
		return err
	}
	s.artwork = artwork.NewService(store, s.cache, s.cfg.CoverWorkers, s.cfg.CoverCacheSizes, s.logger)

	extractor := metadata.NewTagExtractor(s.logger)
	s.scanner = scanner.New(database, extractor, s.artwork, s.bus, s.cfg.MusicFolders, s.cfg.ScanWorkers, s.cfg.ScanBatchSize, s.logger)

	sealer, err := auth.NewPasswordSealer([]byte(s.cfg.JWTSigningKey))
	if err != nil {
		return fmt.Errorf("initialize password sealer: %w", err)
	}

	s.subsonic = subsonic.New(database, s.scanner, s.artwork, s.cache, sealer, s.bus, s.cfg.MusicFolders, s.logger)
	s.admin = admin.New(database, s.scanner, sealer, s.bus, []byte(s.cfg.JWTSigningKey), s.logger)
	s.updates = version.NewChecker(s.logger)

	return nil
}

// newObjectStore picks the cover art backend: S3 when a bucket is
// configured, the local data directory otherwise.
func (s *Server) newObjectStore() (storage.ObjectStore, error) {
	if s.cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(context.Background(), storage.S3Config{
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
			Region:          s.cfg.S3Region,
			Bucket:          s.cfg.S3Bucket,
			Endpoint:        s.cfg.S3Endpoint,
			UsePathStyle:    s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize S3 store: %w", err)
		}
		s.logger.Info().Str("bucket", s.cfg.S3Bucket).Msg("cover art stored in S3")
		return store, nil
	}

	store := storage.NewFilesystemStore(s.cfg.DataDir, s.logger)
	if err := store.CheckAccess(context.Background()); err != nil {
		return nil, fmt.Errorf("data directory not writable: %w", err)
	}
	return store, nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Scanner exposes the library scanner, used by the scan subcommand.
func (s *Server) Scanner() *scanner.Scanner {
	return s.scanner
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	s.artwork.WaitPrewarm()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.cfg.ScanInterval > 0 {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runPeriodicScan(ctx)
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runCacheInvalidationListener(ctx)
	}()

	// Database connection gauge updater.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	s.updates.Start(ctx)
	s.DeferClose(func() error { s.updates.Stop(); return nil })

	if s.cfg.MetricsBind != "" {
		s.startMetricsServer(ctx)
	}
}

// runPeriodicScan kicks off an incremental scan on the configured interval.
// An already-running scan is not an error; the tick is simply skipped.
func (s *Server) runPeriodicScan(ctx context.Context) {
	s.logger.Info().Dur("interval", s.cfg.ScanInterval).Msg("periodic library scan enabled")
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.scanner.StartAsync(ctx, scanner.Options{})
			if err != nil && !errors.Is(err, scanner.ErrScanInProgress) {
				s.logger.Error().Err(err).Msg("periodic scan failed to start")
			}
		}
	}
}

// runCacheInvalidationListener drops cached browse results whenever the
// catalog or a playlist changes.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	mediaUpdated := s.bus.Subscribe(events.EventMediaUpdated)
	mediaDeleted := s.bus.Subscribe(events.EventMediaDeleted)
	playlistUpdated := s.bus.Subscribe(events.EventPlaylistUpdated)

	defer func() {
		s.bus.Unsubscribe(events.EventMediaUpdated, mediaUpdated)
		s.bus.Unsubscribe(events.EventMediaDeleted, mediaDeleted)
		s.bus.Unsubscribe(events.EventPlaylistUpdated, playlistUpdated)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-mediaUpdated:
			s.logger.Debug().Msg("invalidating browse cache (media updated)")
			if err := s.cache.InvalidateBrowse(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("browse cache invalidation failed")
			}
		case <-mediaDeleted:
			s.logger.Debug().Msg("invalidating browse cache (media deleted)")
			if err := s.cache.InvalidateBrowse(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("browse cache invalidation failed")
			}
		case <-playlistUpdated:
			// Playlists are not cached today; browse lists reference
			// aggregate counts so drop them anyway.
			if err := s.cache.InvalidateBrowse(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("browse cache invalidation failed")
			}
		}
	}
}

// startMetricsServer serves Prometheus metrics on a dedicated listener so
// the scrape endpoint is never exposed on the public port.
func (s *Server) startMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())

	metricsServer := &http.Server{
		Addr:              s.cfg.MetricsBind,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.logger.Info().Str("addr", s.cfg.MetricsBind).Msg("metrics listener started")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics listener exited")
		}
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.subsonic.Routes(s.router)
	s.admin.Routes(s.router)
}
