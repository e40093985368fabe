/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi_stream/internal/auth"
	"github.com/friendsincode/bragi_stream/internal/db"
	"github.com/friendsincode/bragi_stream/internal/models"
)

var (
	useraddPassword string
	useraddEmail    string
	useraddAdmin    bool
)

var useraddCmd = &cobra.Command{
	Use:   "useradd <username>",
	Short: "Create an account",
	Long:  "Create a user account directly in the database. Use this to bootstrap the first admin before any client can authenticate.",
	Args:  cobra.ExactArgs(1),
	RunE:  runUseradd,
}

func init() {
	useraddCmd.Flags().StringVar(&useraddPassword, "password", "", "password for the new account (required)")
	useraddCmd.Flags().StringVar(&useraddEmail, "email", "", "email address")
	useraddCmd.Flags().BoolVar(&useraddAdmin, "admin", false, "grant the admin role")
	_ = useraddCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(useraddCmd)
}

func runUseradd(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	username := args[0]

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	sealer, err := auth.NewPasswordSealer([]byte(cfg.JWTSigningKey))
	if err != nil {
		return fmt.Errorf("initialize password sealer: %w", err)
	}
	sealed, err := sealer.Seal(useraddPassword)
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}

	user := models.User{
		ID:             uuid.NewString(),
		Username:       username,
		SealedPassword: sealed,
		Email:          useraddEmail,
		Admin:          useraddAdmin,
	}
	if err := database.WithContext(cmd.Context()).Create(&user).Error; err != nil {
		return fmt.Errorf("create user %s: %w", username, err)
	}

	logger.Info().Str("username", username).Bool("admin", useraddAdmin).Msg("user created")
	return nil
}
