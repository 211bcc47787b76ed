package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	_ "modernc.org/sqlite"
)

// DiskStore keeps artifacts as flat files under cfg.Dir. In "ttl"
// retention mode a SQLite index drives pruning; "ephemeral" mode keeps
// files until the operator clears the directory.
type DiskStore struct {
	dir   string
	db    *sql.DB
	cfg   config.ArtifactsConfig
	log   *slog.Logger
	clock func() time.Time
}

// NewDiskStore initializes the disk store according to config.
func NewDiskStore(ctx context.Context, cfg config.ArtifactsConfig, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	s := &DiskStore{dir: cfg.Dir, cfg: cfg, log: log, clock: time.Now}
	if cfg.RetentionMode == "ephemeral" {
		return s, nil
	}

	dir := filepath.Dir(cfg.IndexPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.IndexPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := s.Prune(ctx); err != nil {
		log.Warn("artifact prune on start failed", slogError(err))
	}

	return s, nil
}

func (s *DiskStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS artifacts (
    artifact_id TEXT PRIMARY KEY,
    format TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the index connection.
func (s *DiskStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put writes the payload to disk and records it in the index.
func (s *DiskStore) Put(ctx context.Context, data []byte, format string) (Meta, error) {
	meta := Meta{
		ID:          newArtifactID(),
		Format:      format,
		ContentType: contentTypeFor(format),
		Size:        int64(len(data)),
		CreatedAt:   s.clock().UTC(),
	}
	path := s.path(meta.ID, meta.Format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Meta{}, fmt.Errorf("write artifact: %w", err)
	}
	if s.db != nil {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO artifacts(artifact_id, format, size_bytes, created_at) VALUES(?, ?, ?, ?)`,
			meta.ID, meta.Format, meta.Size, meta.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			os.Remove(path)
			return Meta{}, fmt.Errorf("index artifact: %w", err)
		}
	}
	return meta, nil
}

// Open looks the id up and returns the payload.
func (s *DiskStore) Open(ctx context.Context, id string) (io.ReadCloser, Meta, error) {
	meta, err := s.lookup(ctx, id)
	if err != nil {
		return nil, Meta{}, err
	}
	f, err := os.Open(s.path(meta.ID, meta.Format))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Meta{}, ErrNotFound
	}
	if err != nil {
		return nil, Meta{}, fmt.Errorf("open artifact: %w", err)
	}
	return f, meta, nil
}

// URL always reports "" for disk: the daemon streams payloads itself.
func (s *DiskStore) URL(ctx context.Context, id string) (string, error) {
	return "", nil
}

// Prune deletes rows past the TTL cutoff, then rows beyond the max
// count, and removes their files after commit.
func (s *DiskStore) Prune(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	doomed := map[string]string{}
	if s.cfg.TTLMinutes > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.TTLMinutes) * time.Minute)
		if err = s.collect(ctx, tx, doomed,
			`SELECT artifact_id, format FROM artifacts WHERE created_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return 0, err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM artifacts WHERE created_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return 0, err
		}
	}
	if s.cfg.MaxCount > 0 {
		if err = s.collect(ctx, tx, doomed,
			`SELECT artifact_id, format FROM artifacts ORDER BY created_at DESC LIMIT -1 OFFSET ?`,
			s.cfg.MaxCount); err != nil {
			return 0, err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM artifacts WHERE artifact_id IN (
			SELECT artifact_id FROM artifacts ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxCount); err != nil {
			return 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}

	for id, format := range doomed {
		if rerr := os.Remove(s.path(id, format)); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			s.log.Warn("artifact file removal failed", slog.String("artifact_id", id), slogError(rerr))
		}
	}
	return len(doomed), nil
}

func (s *DiskStore) collect(ctx context.Context, tx *sql.Tx, into map[string]string, query string, arg any) error {
	rows, err := tx.QueryContext(ctx, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, format string
		if err := rows.Scan(&id, &format); err != nil {
			return err
		}
		into[id] = format
	}
	return rows.Err()
}

func (s *DiskStore) lookup(ctx context.Context, id string) (Meta, error) {
	// Well-formed ids are store-minted uuids, but they arrive via the
	// request path; reject anything path-ish.
	if id == "" || id != filepath.Base(id) {
		return Meta{}, ErrNotFound
	}
	if s.db == nil {
		return s.probe(id)
	}
	var meta Meta
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT artifact_id, format, size_bytes, created_at FROM artifacts WHERE artifact_id = ?`, id).
		Scan(&meta.ID, &meta.Format, &meta.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, fmt.Errorf("lookup artifact: %w", err)
	}
	if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		meta.CreatedAt = ts
	}
	meta.ContentType = contentTypeFor(meta.Format)
	return meta, nil
}

// probe locates an unindexed artifact by trying the known extensions.
func (s *DiskStore) probe(id string) (Meta, error) {
	for _, format := range []string{"mp3", "wav"} {
		fi, err := os.Stat(s.path(id, format))
		if err != nil {
			continue
		}
		return Meta{
			ID:          id,
			Format:      format,
			ContentType: contentTypeFor(format),
			Size:        fi.Size(),
			CreatedAt:   fi.ModTime().UTC(),
		}, nil
	}
	return Meta{}, ErrNotFound
}

func (s *DiskStore) path(id, format string) string {
	return filepath.Join(s.dir, id+"."+format)
}
