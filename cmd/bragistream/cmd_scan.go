/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi_stream/internal/artwork"
	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/db"
	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/metadata"
	"github.com/friendsincode/bragi_stream/internal/scanner"
	"github.com/friendsincode/bragi_stream/internal/storage"
)

var scanFull bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot library scan and exit",
	Long:  "Walk the configured music folders, update the catalog, and exit. Useful from cron or after bulk library changes.",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanFull, "full", false, "re-extract every file regardless of modification time")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = cfg.RedisAddr
	cacheCfg.RedisPassword = cfg.RedisPassword
	cacheCfg.RedisDB = cfg.RedisDB
	browseCache, err := cache.New(cacheCfg, logger)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer func() { _ = browseCache.Close() }()

	store := storage.NewFilesystemStore(cfg.DataDir, logger)
	covers := artwork.NewService(store, browseCache, cfg.CoverWorkers, cfg.CoverCacheSizes, logger)
	extractor := metadata.NewTagExtractor(logger)

	scan := scanner.New(database, extractor, covers, events.NewBus(), cfg.MusicFolders, cfg.ScanWorkers, cfg.ScanBatchSize, logger)

	summary, err := scan.Scan(cmd.Context(), scanner.Options{Full: scanFull})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	covers.WaitPrewarm()

	logger.Info().
		Int64("scanned", summary.Scanned).
		Int64("skipped", summary.Skipped).
		Int64("failed", summary.Failed).
		Int64("deleted", summary.Deleted).
		Dur("duration", summary.Duration).
		Msg("scan complete")
	return nil
}
