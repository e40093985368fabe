package storage

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestFilesystemStore_RoundTrip(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Put(ctx, "covers/al-1/original.jpg", []byte("image-bytes"), "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := store.Get(ctx, "covers/al-1/original.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("unexpected payload %q", data)
	}

	exists, err := store.Exists(ctx, "covers/al-1/original.jpg")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}
}

func TestFilesystemStore_DeleteMissingIsNoop(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err := store.Delete(context.Background(), "covers/missing.jpg"); err != nil {
		t.Fatalf("Delete of missing object should succeed, got %v", err)
	}
}

func TestFilesystemStore_ExistsMissing(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	exists, err := store.Exists(context.Background(), "covers/missing.jpg")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("expected missing object to report false")
	}
}
