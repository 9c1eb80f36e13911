package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/s3fs-fuse/docbridge/internal/storage/types"
)

// PostgresBackend implements types.Backend using PostgreSQL
type PostgresBackend struct {
	db     *sql.DB
	table  string // Table name for storing documents
	bucket string // "Bucket" name (namespace)
}

// NewPostgresBackend creates a new PostgreSQL backend
func NewPostgresBackend(connStr, table, bucket string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	backend := &PostgresBackend{
		db:     db,
		table:  table,
		bucket: bucket,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

// initSchema creates the necessary tables
func (p *PostgresBackend) initSchema() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			bucket VARCHAR(255) NOT NULL,
			path VARCHAR(4096) NOT NULL,
			data BYTEA,
			size BIGINT NOT NULL DEFAULT 0,
			content_type VARCHAR(255) NOT NULL DEFAULT '',
			mtime TIMESTAMP NOT NULL DEFAULT NOW(),
			metadata JSONB,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (bucket, path)
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_prefix ON %[1]s(path text_pattern_ops);
	`, p.table)

	_, err := p.db.Exec(query)
	return err
}

// Read reads document data
func (p *PostgresBackend) Read(ctx context.Context, path string) ([]byte, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE bucket = $1 AND path = $2", p.table)
	var data []byte
	err := p.db.QueryRowContext(ctx, query, p.bucket, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document not found: %s: %w", path, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Write writes document data
func (p *PostgresBackend) Write(ctx context.Context, path string, data []byte) error {
	return p.WriteWithMetadata(ctx, path, data, nil)
}

// WriteWithMetadata writes document data with metadata. The content-type and
// mtime entries are lifted into their own columns.
func (p *PostgresBackend) WriteWithMetadata(ctx context.Context, path string, data []byte, metadata map[string]string) error {
	contentType := metadata[types.MetaContentType]
	mtime := time.Now()
	if s, ok := metadata[types.MetaMtime]; ok {
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			mtime = time.Unix(unix, 0)
		}
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (bucket, path, data, size, content_type, mtime, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (bucket, path)
		DO UPDATE SET
			data = EXCLUDED.data,
			size = EXCLUDED.size,
			content_type = EXCLUDED.content_type,
			mtime = EXCLUDED.mtime,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`, p.table)

	if _, err := p.db.ExecContext(ctx, query, p.bucket, path, data, len(data), contentType, mtime, meta); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// List lists paths with the given prefix
func (p *PostgresBackend) List(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(`SELECT path FROM %s WHERE bucket = $1 AND path LIKE $2 ESCAPE '\' ORDER BY path`, p.table)
	rows, err := p.db.QueryContext(ctx, query, p.bucket, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// GetAttr gets document attributes
func (p *PostgresBackend) GetAttr(ctx context.Context, path string) (*types.Attr, error) {
	query := fmt.Sprintf("SELECT size, content_type, mtime FROM %s WHERE bucket = $1 AND path = $2", p.table)
	var attr types.Attr

	err := p.db.QueryRowContext(ctx, query, p.bucket, path).Scan(&attr.Size, &attr.ContentType, &attr.Mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document not found: %s: %w", path, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes: %w", err)
	}
	return &attr, nil
}

// Exists checks if a document exists
func (p *PostgresBackend) Exists(ctx context.Context, path string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE bucket = $1 AND path = $2 LIMIT 1", p.table)
	var exists int
	err := p.db.QueryRowContext(ctx, query, p.bucket, path).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the database connection
func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

// escapeLike quotes LIKE wildcards so document names containing % or _
// match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
