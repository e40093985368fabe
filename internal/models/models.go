/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// User represents an authenticated account. The password is sealed with
// AES-GCM (see internal/auth) because Subsonic token auth requires the
// server to recover the original secret.
type User struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	Username       string `gorm:"uniqueIndex"`
	SealedPassword []byte
	Email          string
	Admin          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Artist is a catalog artist created lazily by the scanner.
type Artist struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Name          string `gorm:"uniqueIndex"`
	MusicBrainzID string `gorm:"type:varchar(36)"`
	CoverArt      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Album aggregates songs. SongCount and Duration are derived and recomputed
// by the catalog writer after every change to the album's songs.
type Album struct {
	ID        string `gorm:"type:uuid;primaryKey;"`
	ArtistID  string `gorm:"type:uuid;index;uniqueIndex:idx_albums_artist_name"`
	Name      string `gorm:"uniqueIndex:idx_albums_artist_name"`
	Year      int
	Genre     string `gorm:"index"`
	CoverArt  string // Set only after cover bytes are durably stored
	SongCount int
	Duration  int // Seconds, sum over songs
	PlayCount int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Song is a single audio file. Path is the unique key used for change
// detection and reconciliation.
type Song struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	AlbumID     string `gorm:"type:uuid;index"`
	ArtistID    string `gorm:"type:uuid;index"`
	Title       string `gorm:"index"`
	Track       int
	Disc        int
	Duration    int // Seconds
	BitRate     int
	SampleRate  int
	Channels    int
	Genre       string `gorm:"index"`
	Year        int
	ContentType string `gorm:"type:varchar(64)"`
	Suffix      string `gorm:"type:varchar(16)"`
	Path        string `gorm:"uniqueIndex"`
	FileSize    int64
	Lyrics      string `gorm:"type:text"`
	PlayCount   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Playlist is a user-owned ordered song collection.
type Playlist struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	OwnerID   string `gorm:"type:uuid;index"`
	Name      string `gorm:"index"`
	Comment   string `gorm:"type:text"`
	Public    bool
	SongCount int
	Duration  int // Seconds, derived
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlaylistEntry orders songs within a playlist.
type PlaylistEntry struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	PlaylistID string `gorm:"type:uuid;index"`
	SongID     string `gorm:"type:uuid;index"`
	Position   int
}

// ItemKind discriminates annotation targets.
type ItemKind string

const (
	KindArtist ItemKind = "artist"
	KindAlbum  ItemKind = "album"
	KindSong   ItemKind = "song"
)

// Annotation stores per-user stars and ratings for catalog items.
type Annotation struct {
	ID        string   `gorm:"type:uuid;primaryKey"`
	UserID    string   `gorm:"type:uuid;index;uniqueIndex:idx_annotations_user_item"`
	ItemID    string   `gorm:"type:uuid;uniqueIndex:idx_annotations_user_item"`
	ItemKind  ItemKind `gorm:"type:varchar(16);uniqueIndex:idx_annotations_user_item"`
	Starred   bool
	StarredAt *time.Time
	Rating    int // 0 = unrated, 1-5 otherwise
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlayHistory records scrobbles.
type PlayHistory struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	UserID     string `gorm:"type:uuid;index"`
	SongID     string `gorm:"type:uuid;index"`
	PlayedAt   time.Time
	Submission bool // false for "now playing" notifications
}
