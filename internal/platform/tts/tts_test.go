package tts

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New("", "voice-1", t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := CacheKey("v1", "take your medication")
	b := CacheKey("v1", "take your medication")
	if a != b {
		t.Error("expected identical keys for identical input")
	}
	if a == CacheKey("v2", "take your medication") {
		t.Error("expected different keys for different voices")
	}
	if a == CacheKey("v1", "different text") {
		t.Error("expected different keys for different text")
	}
}

func TestSynthesize_MockAudioAndCache(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	path, cached, err := svc.Synthesize(ctx, "hello", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached {
		t.Error("first synthesis should not be a cache hit")
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(audio, []byte{0x49, 0x44, 0x33}) {
		t.Error("expected mock audio to start with ID3 marker")
	}
	if len(audio) != 3+1024 {
		t.Errorf("expected %d byte placeholder, got %d", 3+1024, len(audio))
	}

	path2, cached, err := svc.Synthesize(ctx, "hello", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cached {
		t.Error("second synthesis should be a cache hit")
	}
	if path2 != path {
		t.Errorf("cache hit should return the same path: %s vs %s", path, path2)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	svc := newTestService(t)
	if _, _, err := svc.Synthesize(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestCacheStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Synthesize(ctx, "one", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Synthesize(ctx, "two", ""); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.CacheStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Files != 2 {
		t.Errorf("expected 2 cached files, got %d", stats.Files)
	}
	if stats.TotalBytes != 2*(3+1024) {
		t.Errorf("unexpected total size %d", stats.TotalBytes)
	}
}
