package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BRAGI_JWT_SIGNING_KEY", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBBackend != DatabaseSQLite {
		t.Errorf("expected sqlite default backend, got %q", cfg.DBBackend)
	}
	if cfg.HTTPPort != 4533 {
		t.Errorf("expected default port 4533, got %d", cfg.HTTPPort)
	}
	if cfg.ScanWorkers != 8 || cfg.ScanBatchSize != 100 || cfg.CoverWorkers != 4 {
		t.Errorf("unexpected scanner defaults: workers=%d batch=%d covers=%d",
			cfg.ScanWorkers, cfg.ScanBatchSize, cfg.CoverWorkers)
	}
	if len(cfg.MusicFolders) != 1 || cfg.MusicFolders[0].ID != 1 {
		t.Errorf("expected single default music folder, got %+v", cfg.MusicFolders)
	}
	if len(cfg.CoverCacheSizes) != 3 {
		t.Errorf("expected 3 default cover cache sizes, got %v", cfg.CoverCacheSizes)
	}
}

func TestLoad_RequiresJWTKey(t *testing.T) {
	t.Setenv("BRAGI_JWT_SIGNING_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when BRAGI_JWT_SIGNING_KEY is missing")
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRAGI_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestLoad_LibraryManifest(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "library.yaml")
	data := []byte("folders:\n  - name: Rock\n    path: /srv/music/rock\n  - name: Jazz\n    path: /srv/music/jazz\n")
	if err := os.WriteFile(manifest, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	t.Setenv("BRAGI_LIBRARY_CONFIG", manifest)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.MusicFolders) != 2 {
		t.Fatalf("expected 2 folders, got %d", len(cfg.MusicFolders))
	}
	if cfg.MusicFolders[0].ID != 1 || cfg.MusicFolders[1].ID != 2 {
		t.Errorf("expected sequential folder ids, got %+v", cfg.MusicFolders)
	}
	if cfg.MusicRoot != "/srv/music/rock" {
		t.Errorf("expected MusicRoot from first folder, got %q", cfg.MusicRoot)
	}
}

func TestParseSizes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"defaults", "64,160,300", 3},
		{"whitespace", " 64 , 128 ", 2},
		{"garbage skipped", "64,abc,-5,128", 2},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSizes(tt.raw); len(got) != tt.want {
				t.Errorf("parseSizes(%q) = %v, want %d entries", tt.raw, got, tt.want)
			}
		})
	}
}
