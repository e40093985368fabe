/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// MusicFolder is a named library root exposed via getMusicFolders.
type MusicFolder struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., http://music.example.com)
	DBBackend   DatabaseBackend
	DBDSN       string

	// Library configuration
	MusicRoot     string        // Root of the music library walked by the scanner
	DataDir       string        // Covers, derived art and other server-owned files
	LibraryConfig string        // Optional YAML manifest declaring multiple music folders
	MusicFolders  []MusicFolder // Populated from LibraryConfig, or a single default folder
	ScanInterval  time.Duration // 0 disables the periodic scan

	// Scanner tuning
	ScanWorkers     int   // Concurrent metadata extractions (K)
	ScanBatchSize   int   // Extraction results per catalog transaction (B)
	CoverWorkers    int   // Concurrent cover writes (C)
	CoverCacheSizes []int // Derived cover sizes pre-warmed after scans

	JWTSigningKey string
	MetricsBind   string

	// S3 cover art storage (optional; filesystem is the default)
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis cache (browse endpoints)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("BRAGI_ENV", "development"),
		HTTPBind:      getEnv("BRAGI_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("BRAGI_HTTP_PORT", 4533),
		BaseURL:       getEnv("BRAGI_BASE_URL", ""),
		DBBackend:     DatabaseBackend(getEnv("BRAGI_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:         getEnv("BRAGI_DB_DSN", "./bragi.db"),
		MusicRoot:     getEnv("BRAGI_MUSIC_ROOT", "./music"),
		DataDir:       getEnv("BRAGI_DATA_DIR", "./data"),
		LibraryConfig: getEnv("BRAGI_LIBRARY_CONFIG", ""),
		ScanInterval:  time.Duration(getEnvInt("BRAGI_SCAN_INTERVAL_MINUTES", 0)) * time.Minute,

		ScanWorkers:   getEnvInt("BRAGI_SCAN_WORKERS", 8),
		ScanBatchSize: getEnvInt("BRAGI_SCAN_BATCH_SIZE", 100),
		CoverWorkers:  getEnvInt("BRAGI_COVER_WORKERS", 4),

		JWTSigningKey: getEnv("BRAGI_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("BRAGI_METRICS_BIND", "127.0.0.1:9000"),

		S3AccessKeyID:     getEnvAny([]string{"BRAGI_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"BRAGI_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"BRAGI_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"BRAGI_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"BRAGI_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"BRAGI_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBool("BRAGI_S3_USE_PATH_STYLE", false),

		TracingEnabled:    getEnvBool("BRAGI_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("BRAGI_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("BRAGI_TRACING_SAMPLE_RATE", 1.0),

		RedisAddr:     getEnv("BRAGI_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("BRAGI_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("BRAGI_REDIS_DB", 0),
	}

	cfg.CoverCacheSizes = parseSizes(getEnv("BRAGI_COVER_CACHE_SIZES", "64,160,300"))

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BRAGI_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("BRAGI_JWT_SIGNING_KEY must be provided")
	}

	if cfg.ScanWorkers < 1 {
		cfg.ScanWorkers = 1
	}
	if cfg.ScanBatchSize < 1 {
		cfg.ScanBatchSize = 1
	}
	if cfg.CoverWorkers < 1 {
		cfg.CoverWorkers = 1
	}

	if err := cfg.loadMusicFolders(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadMusicFolders reads the optional YAML library manifest. Without one,
// the single MusicRoot is exposed as folder 1.
func (c *Config) loadMusicFolders() error {
	if c.LibraryConfig == "" {
		c.MusicFolders = []MusicFolder{{ID: 1, Name: "Music Library", Path: c.MusicRoot}}
		return nil
	}

	raw, err := os.ReadFile(c.LibraryConfig)
	if err != nil {
		return fmt.Errorf("read library config %s: %w", c.LibraryConfig, err)
	}

	var manifest struct {
		Folders []MusicFolder `yaml:"folders"`
	}
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("parse library config %s: %w", c.LibraryConfig, err)
	}
	if len(manifest.Folders) == 0 {
		return fmt.Errorf("library config %s declares no folders", c.LibraryConfig)
	}

	for i := range manifest.Folders {
		if manifest.Folders[i].ID == 0 {
			manifest.Folders[i].ID = i + 1
		}
		if manifest.Folders[i].Path == "" {
			return fmt.Errorf("library config folder %q has no path", manifest.Folders[i].Name)
		}
	}

	c.MusicFolders = manifest.Folders
	c.MusicRoot = manifest.Folders[0].Path
	return nil
}

func parseSizes(raw string) []int {
	var sizes []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n > 0 {
			sizes = append(sizes, n)
		}
	}
	return sizes
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
