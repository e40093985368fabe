package artwork

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/storage"
)

// testImage renders a solid PNG of the given dimensions.
func testImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// disabledCache returns a cache with no Redis behind it; every operation is
// a no-op, matching production behavior when Redis is down.
func disabledCache(t *testing.T) *cache.Cache {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1" // nothing listens here
	c, err := cache.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return c
}

func TestResize_ScalesDownLongestEdge(t *testing.T) {
	data := testImage(t, 600, 300)

	resized, err := Resize(data, 150)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("decode resized: %v", err)
	}
	if got := img.Bounds().Dx(); got != 150 {
		t.Errorf("expected width 150, got %d", got)
	}
	if got := img.Bounds().Dy(); got != 75 {
		t.Errorf("expected height 75, got %d", got)
	}
}

func TestResize_SmallImageKeepsDimensions(t *testing.T) {
	data := testImage(t, 100, 80)

	resized, err := Resize(data, 300)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("decode resized: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Errorf("expected 100x80, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestResize_RejectsGarbage(t *testing.T) {
	if _, err := Resize([]byte("not an image"), 100); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestProcessBatch_StoresOriginals(t *testing.T) {
	store := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	svc := NewService(store, disabledCache(t), 4, []int{64}, zerolog.Nop())

	stored := svc.ProcessBatch(context.Background(), []Job{
		{ItemID: "al-1", Data: testImage(t, 300, 300), MIME: "image/png"},
		{ItemID: "al-2", Data: testImage(t, 200, 200), MIME: "image/png"},
		{ItemID: "al-empty"}, // no data, skipped
	})
	svc.WaitPrewarm()

	if len(stored) != 2 {
		t.Fatalf("expected 2 stored covers, got %d", len(stored))
	}

	for _, id := range []string{"al-1", "al-2"} {
		exists, err := store.Exists(context.Background(), "covers/"+id)
		if err != nil || !exists {
			t.Errorf("expected stored cover for %s (exists=%v err=%v)", id, exists, err)
		}
	}
	exists, _ := store.Exists(context.Background(), "covers/al-empty")
	if exists {
		t.Error("empty job should not produce a stored cover")
	}
}

func TestGet_OriginalAndRendition(t *testing.T) {
	store := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	svc := NewService(store, disabledCache(t), 2, nil, zerolog.Nop())
	ctx := context.Background()

	original := testImage(t, 400, 400)
	svc.ProcessBatch(ctx, []Job{{ItemID: "al-1", Data: original, MIME: "image/png"}})
	svc.WaitPrewarm()

	data, mime, err := svc.Get(ctx, "al-1", 0)
	if err != nil {
		t.Fatalf("Get original: %v", err)
	}
	if !bytes.Equal(data, original) {
		t.Error("original bytes should round-trip unchanged")
	}
	if mime != "image/png" {
		t.Errorf("expected image/png, got %q", mime)
	}

	data, mime, err = svc.Get(ctx, "al-1", 64)
	if err != nil {
		t.Fatalf("Get rendition: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("expected image/jpeg rendition, got %q", mime)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode rendition: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("expected 64px rendition, got %d", img.Bounds().Dx())
	}
}

func TestGet_MissingCover(t *testing.T) {
	store := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	svc := NewService(store, disabledCache(t), 2, nil, zerolog.Nop())

	if _, _, err := svc.Get(context.Background(), "al-missing", 0); err == nil {
		t.Fatal("expected error for missing cover")
	}
}
