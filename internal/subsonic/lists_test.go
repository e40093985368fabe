/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package subsonic

import (
	"net/http/httptest"
	"testing"
)

func TestAlbumListCacheKey(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		listType string
		want     string
	}{
		{"newest", "/rest/getAlbumList2?type=newest", "newest", "bragi:cache:album_list:newest:10:0"},
		{"by genre carries the genre", "/rest/getAlbumList2?type=byGenre&genre=Rock", "byGenre", "bragi:cache:album_list:byGenre:Rock:10:0"},
		{"by year carries the range", "/rest/getAlbumList2?type=byYear&fromYear=1990&toYear=1999", "byYear", "bragi:cache:album_list:byYear:1990:1999:10:0"},
		{"random is never cached", "/rest/getAlbumList2?type=random", "random", ""},
		{"starred is per user", "/rest/getAlbumList2?type=starred", "starred", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if got := albumListCacheKey(r, tt.listType, 10, 0); got != tt.want {
				t.Errorf("albumListCacheKey(%s) = %q, want %q", tt.listType, got, tt.want)
			}
		})
	}

	// Different pages must not collide.
	r := httptest.NewRequest("GET", "/rest/getAlbumList2?type=newest", nil)
	if albumListCacheKey(r, "newest", 10, 0) == albumListCacheKey(r, "newest", 10, 10) {
		t.Error("offset must be part of the cache key")
	}
}
