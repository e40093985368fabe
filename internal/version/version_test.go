/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"v1.0.0", "1.0.0", 0},
		{"0.9.3", "1.0.0", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.2.0", "1.10.0", -1},
		{"2.0", "2.0.0", 0},
		{"garbage", "1.0.0", -1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("Fixes\nmore text", 200); got != "Fixes" {
		t.Errorf("expected first line only, got %q", got)
	}
	long := strings.Repeat("x", 300)
	if got := firstLine(long, 200); len(got) != 200 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected capped notes, got %d chars", len(got))
	}
}

func TestCheckerInfoDefaults(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	info := c.Info()
	if info.CurrentVersion != Version {
		t.Errorf("expected current version %q, got %q", Version, info.CurrentVersion)
	}
	if info.UpdateAvailable {
		t.Error("no update should be reported before any check ran")
	}
}
