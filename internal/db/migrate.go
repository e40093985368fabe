/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/bragi_stream/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Accounts
		&models.User{},

		// Catalog
		&models.Artist{},
		&models.Album{},
		&models.Song{},

		// Playlists
		&models.Playlist{},
		&models.PlaylistEntry{},

		// Per-user state
		&models.Annotation{},
		&models.PlayHistory{},
	); err != nil {
		return err
	}

	if err := normalizeLegacyRatings(database); err != nil {
		return err
	}

	return nil
}

// normalizeLegacyRatings clamps ratings written before the 1-5 range was
// enforced at the API layer.
func normalizeLegacyRatings(database *gorm.DB) error {
	if err := database.Exec("UPDATE annotations SET rating = 5 WHERE rating > 5").Error; err != nil {
		return fmt.Errorf("normalize ratings above range: %w", err)
	}
	if err := database.Exec("UPDATE annotations SET rating = 0 WHERE rating < 0").Error; err != nil {
		return fmt.Errorf("normalize ratings below range: %w", err)
	}
	return nil
}
