package artifact

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxlatelabs/voxlate-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func diskConfig(t *testing.T, mode string) config.ArtifactsConfig {
	t.Helper()
	tmp := t.TempDir()
	return config.ArtifactsConfig{
		Dir:           filepath.Join(tmp, "audio"),
		IndexPath:     filepath.Join(tmp, "artifacts.db"),
		Store:         "disk",
		RetentionMode: mode,
		TTLMinutes:    60,
		MaxCount:      100,
	}
}

func TestDiskPutOpen(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(ctx, diskConfig(t, "ttl"), newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	payload := []byte("RIFF fake wav payload")
	meta, err := store.Put(ctx, payload, "wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if meta.ID == "" {
		t.Fatalf("expected generated id")
	}
	if meta.ContentType != "audio/wav" {
		t.Fatalf("unexpected content type: %s", meta.ContentType)
	}

	rc, got, err := store.Open(ctx, meta.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("payload mismatch: %q", data)
	}
	if got.Format != "wav" || got.Size != int64(len(payload)) {
		t.Fatalf("unexpected meta: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at did not round-trip: %v", got.CreatedAt)
	}

	if _, _, err := store.Open(ctx, "no-such-artifact"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDiskEphemeralProbesDir(t *testing.T) {
	ctx := context.Background()
	cfg := diskConfig(t, "ephemeral")
	store, err := NewDiskStore(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	meta, err := store.Put(ctx, []byte("mp3 bytes"), "mp3")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, got, err := store.Open(ctx, meta.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rc.Close()
	if got.Format != "mp3" || got.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected meta: %+v", got)
	}

	removed, err := store.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 0 {
		t.Fatalf("ephemeral mode must not prune, removed %d", removed)
	}
}

func TestDiskPruneTTL(t *testing.T) {
	ctx := context.Background()
	cfg := diskConfig(t, "ttl")
	store, err := NewDiskStore(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return base }
	old, err := store.Put(ctx, []byte("old"), "wav")
	if err != nil {
		t.Fatalf("put old: %v", err)
	}

	store.clock = func() time.Time { return base.Add(2 * time.Hour) }
	fresh, err := store.Put(ctx, []byte("fresh"), "wav")
	if err != nil {
		t.Fatalf("put fresh: %v", err)
	}

	removed, err := store.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, _, err := store.Open(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old artifact pruned, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, old.ID+".wav")); !os.IsNotExist(err) {
		t.Fatalf("expected old file deleted")
	}
	rc, _, err := store.Open(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("fresh artifact must survive: %v", err)
	}
	rc.Close()
}

func TestDiskPruneMaxCount(t *testing.T) {
	ctx := context.Background()
	cfg := diskConfig(t, "ttl")
	cfg.TTLMinutes = 0
	cfg.MaxCount = 2
	store, err := NewDiskStore(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var metas []Meta
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Minute
		store.clock = func() time.Time { return base.Add(offset) }
		m, err := store.Put(ctx, []byte("clip"), "mp3")
		if err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
		metas = append(metas, m)
	}

	removed, err := store.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, _, err := store.Open(ctx, metas[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected oldest artifact pruned, got %v", err)
	}
	for _, m := range metas[1:] {
		rc, _, err := store.Open(ctx, m.ID)
		if err != nil {
			t.Fatalf("artifact %s must survive: %v", m.ID, err)
		}
		rc.Close()
	}
}

func TestDiskRejectsPathishID(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(ctx, diskConfig(t, "ephemeral"), newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, id := range []string{"", "../etc/passwd", "a/b"} {
		if _, _, err := store.Open(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("id %q: expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestScratchDir(t *testing.T) {
	cfg := config.ArtifactsConfig{Dir: filepath.Join(t.TempDir(), "audio")}
	dir, err := ScratchDir(cfg)
	if err != nil {
		t.Fatalf("scratch dir: %v", err)
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		t.Fatalf("expected directory at %s: %v", dir, err)
	}
	if filepath.Base(dir) != "incoming" {
		t.Fatalf("unexpected scratch dir: %s", dir)
	}
}

type countingStore struct {
	prunes atomic.Int32
}

func (c *countingStore) Put(ctx context.Context, data []byte, format string) (Meta, error) {
	return Meta{}, nil
}

func (c *countingStore) Open(ctx context.Context, id string) (io.ReadCloser, Meta, error) {
	return nil, Meta{}, ErrNotFound
}

func (c *countingStore) URL(ctx context.Context, id string) (string, error) { return "", nil }

func (c *countingStore) Prune(ctx context.Context) (int, error) {
	c.prunes.Add(1)
	return 1, nil
}

func (c *countingStore) Close() error { return nil }

func TestSweepPrunesOnInterval(t *testing.T) {
	store := &countingStore{}
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	Sweep(ctx, store, 10*time.Millisecond, newLogger())

	if got := store.prunes.Load(); got < 1 {
		t.Fatalf("expected at least one prune, got %d", got)
	}
}
