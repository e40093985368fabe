package auth

import (
	"crypto/md5"
	"encoding/hex"
	"testing"
)

func TestPasswordSealer_RoundTrip(t *testing.T) {
	sealer, err := NewPasswordSealer([]byte("server-secret"))
	if err != nil {
		t.Fatalf("NewPasswordSealer: %v", err)
	}

	sealed, err := sealer.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	plain, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "hunter2" {
		t.Fatalf("expected hunter2, got %q", plain)
	}
}

func TestPasswordSealer_RejectsTampering(t *testing.T) {
	sealer, err := NewPasswordSealer([]byte("server-secret"))
	if err != nil {
		t.Fatalf("NewPasswordSealer: %v", err)
	}

	sealed, err := sealer.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := sealer.Open(sealed); err == nil {
		t.Fatal("expected tampered ciphertext to fail")
	}
}

func TestCheckToken(t *testing.T) {
	sum := md5.Sum([]byte("sesame" + "c19b2d"))
	token := hex.EncodeToString(sum[:])

	if !CheckToken("sesame", "c19b2d", token) {
		t.Fatal("expected valid token to pass")
	}
	if CheckToken("sesame", "c19b2d", "deadbeef") {
		t.Fatal("expected bogus token to fail")
	}
	if CheckToken("wrong", "c19b2d", token) {
		t.Fatal("expected token for different password to fail")
	}
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		provided string
		want     bool
	}{
		{"clear match", "sesame", "sesame", true},
		{"clear mismatch", "sesame", "open", false},
		{"hex encoded match", "sesame", "enc:" + hex.EncodeToString([]byte("sesame")), true},
		{"hex encoded mismatch", "sesame", "enc:" + hex.EncodeToString([]byte("nope")), false},
		{"invalid hex", "sesame", "enc:zzzz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.stored, tt.provided); got != tt.want {
				t.Errorf("CheckPassword(%q, %q) = %v, want %v", tt.stored, tt.provided, got, tt.want)
			}
		})
	}
}
