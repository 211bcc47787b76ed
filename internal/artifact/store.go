package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/voxlatelabs/voxlate-core/internal/config"
)

// ErrNotFound reports an artifact id with no stored payload.
var ErrNotFound = errors.New("artifact not found")

// Meta describes a stored audio artifact.
type Meta struct {
	ID          string
	Format      string // "mp3" or "wav"
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Store persists synthesized audio and applies the retention policy.
type Store interface {
	// Put writes a clip and returns its generated metadata.
	Put(ctx context.Context, data []byte, format string) (Meta, error)
	// Open returns a reader over the payload for id.
	Open(ctx context.Context, id string) (io.ReadCloser, Meta, error)
	// URL returns a directly fetchable location for id, or "" when the
	// daemon has to stream the payload itself.
	URL(ctx context.Context, id string) (string, error)
	// Prune applies retention and reports how many artifacts were removed.
	Prune(ctx context.Context) (int, error)
	Close() error
}

// NewStore builds the store selected by config.
func NewStore(ctx context.Context, cfg config.ArtifactsConfig, log *slog.Logger) (Store, error) {
	switch cfg.Store {
	case "s3":
		return NewS3Store(ctx, cfg, log)
	default:
		return NewDiskStore(ctx, cfg, log)
	}
}

// ScratchDir ensures and returns the directory for transient uploads.
// Files written there are request-scoped and removed by the caller.
func ScratchDir(cfg config.ArtifactsConfig) (string, error) {
	dir := filepath.Join(cfg.Dir, "incoming")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

func newArtifactID() string {
	return uuid.NewString()
}

func contentTypeFor(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
