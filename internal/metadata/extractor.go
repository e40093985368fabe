/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package metadata extracts tags and audio properties from media files.
package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog"
	"go.senan.xyz/taglib"
)

// Metadata is everything the catalog records about a single audio file.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Lyrics      string
	Track       int
	Disc        int
	Year        int

	Duration   int // seconds
	BitRate    int // kbps
	SampleRate int
	Channels   int

	ContentType string
	Suffix      string
	FileSize    int64

	Cover     []byte
	CoverMIME string
}

// Extractor reads metadata from an audio file on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Metadata, error)
}

// TagExtractor extracts tags with dhowden/tag and audio properties with
// taglib. Either source may fail independently; a file with unreadable tags
// still gets path-derived fallbacks.
type TagExtractor struct {
	logger zerolog.Logger
}

// NewTagExtractor creates the default extractor.
func NewTagExtractor(logger zerolog.Logger) *TagExtractor {
	return &TagExtractor{
		logger: logger.With().Str("component", "metadata").Logger(),
	}
}

// Extract reads tags, audio properties, and embedded cover art from path.
func (e *TagExtractor) Extract(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat media file: %w", err)
	}

	meta := &Metadata{
		Title:       fallbackTitle(path),
		Suffix:      suffix(path),
		ContentType: sniffContentType(f, path),
		FileSize:    info.Size(),
	}

	if tags, err := tag.ReadFrom(f); err == nil {
		if t := strings.TrimSpace(tags.Title()); t != "" {
			meta.Title = t
		}
		meta.Artist = strings.TrimSpace(tags.Artist())
		meta.Album = strings.TrimSpace(tags.Album())
		meta.AlbumArtist = strings.TrimSpace(tags.AlbumArtist())
		meta.Genre = strings.TrimSpace(tags.Genre())
		meta.Lyrics = tags.Lyrics()
		meta.Year = tags.Year()
		meta.Track, _ = tags.Track()
		meta.Disc, _ = tags.Disc()

		if pic := tags.Picture(); pic != nil && len(pic.Data) > 0 {
			meta.Cover = pic.Data
			meta.CoverMIME = pic.MIMEType
		}
	} else {
		e.logger.Debug().Err(err).Str("path", path).Msg("no readable tags, using fallbacks")
	}

	if props, err := taglib.ReadProperties(path); err == nil {
		meta.Duration = int(props.Length.Seconds())
		meta.BitRate = int(props.Bitrate)
		meta.SampleRate = int(props.SampleRate)
		meta.Channels = int(props.Channels)
	} else {
		e.logger.Debug().Err(err).Str("path", path).Msg("failed to read audio properties")
	}

	return meta, nil
}

// sniffContentType identifies the MIME type from magic bytes, falling back
// to the file extension.
func sniffContentType(f *os.File, path string) string {
	header := make([]byte, 261)
	n, _ := f.ReadAt(header, 0)
	if kind, err := filetype.Match(header[:n]); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return MIMEForSuffix(suffix(path))
}

func fallbackTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func suffix(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

var audioSuffixes = map[string]string{
	"mp3":  "audio/mpeg",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"opus": "audio/opus",
	"m4a":  "audio/mp4",
	"m4b":  "audio/mp4",
	"aac":  "audio/aac",
	"wav":  "audio/x-wav",
	"wma":  "audio/x-ms-wma",
	"aif":  "audio/x-aiff",
	"aiff": "audio/x-aiff",
}

// IsAudioPath reports whether the file extension is a supported audio format.
func IsAudioPath(path string) bool {
	_, ok := audioSuffixes[suffix(path)]
	return ok
}

// MIMEForSuffix returns the MIME type for a known audio suffix, or a generic
// binary type otherwise.
func MIMEForSuffix(s string) string {
	if mime, ok := audioSuffixes[strings.ToLower(s)]; ok {
		return mime
	}
	return "application/octet-stream"
}
