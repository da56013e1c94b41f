// Package postgres holds the optional dataset manifest registry. The
// registry is bookkeeping only: analytics are always recomputed from the
// flat files on disk, never read back from the database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ignite/subscriber-analytics/internal/dataset"
)

// ErrNotFound is returned when a manifest id is not registered.
var ErrNotFound = errors.New("manifest not found")

// ManifestRepo persists dataset manifests for cross-restart bookkeeping.
type ManifestRepo struct {
	db *sql.DB
}

// NewManifestRepo wraps an open database handle.
func NewManifestRepo(db *sql.DB) *ManifestRepo {
	return &ManifestRepo{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the manifest table if it does not exist.
func (r *ManifestRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS dataset_manifests (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			source_filename TEXT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL,
			stats JSONB NOT NULL DEFAULT '{}'
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create dataset_manifests table: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a manifest row.
func (r *ManifestRepo) Upsert(ctx context.Context, m *dataset.Manifest) error {
	stats, err := json.Marshal(m.Stats)
	if err != nil {
		return fmt.Errorf("marshal manifest stats: %w", err)
	}

	query := `
		INSERT INTO dataset_manifests (id, label, source_filename, uploaded_at, stats)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			source_filename = EXCLUDED.source_filename,
			uploaded_at = EXCLUDED.uploaded_at,
			stats = EXCLUDED.stats
	`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.Label, m.SourceFilename, m.UploadedAt, stats); err != nil {
		return fmt.Errorf("upsert manifest %s: %w", m.ID, err)
	}
	return nil
}

// Get fetches one manifest by id.
func (r *ManifestRepo) Get(ctx context.Context, id string) (*dataset.Manifest, error) {
	query := `
		SELECT id, label, source_filename, uploaded_at, stats
		FROM dataset_manifests
		WHERE id = $1
	`
	m, err := scanManifest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest %s: %w", id, err)
	}
	return m, nil
}

// List returns every registered manifest, newest upload first.
func (r *ManifestRepo) List(ctx context.Context) ([]*dataset.Manifest, error) {
	query := `
		SELECT id, label, source_filename, uploaded_at, stats
		FROM dataset_manifests
		ORDER BY uploaded_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	defer rows.Close()

	var manifests []*dataset.Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		manifests = append(manifests, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	return manifests, nil
}

// Delete removes a manifest row. Deleting an unknown id is ErrNotFound.
func (r *ManifestRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dataset_manifests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete manifest %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete manifest %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifest(row rowScanner) (*dataset.Manifest, error) {
	var m dataset.Manifest
	var stats []byte
	if err := row.Scan(&m.ID, &m.Label, &m.SourceFilename, &m.UploadedAt, &stats); err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &m.Stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	return &m, nil
}
