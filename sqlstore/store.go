// Package sqlstore keeps documents in a SQLite database through the pure Go
// modernc.org/sqlite driver. Each document is a row in documents plus one row
// per element in elements, ordered by position.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/logging"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// Store implements backend.Store on SQLite.
type Store struct {
	db       *sql.DB
	readOnly bool
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithReadOnly rejects every write with backend.ErrReadOnly.
func WithReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// WithLogger sets the logger used for writes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the clock used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the database at dbPath.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions serial.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logging.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS elements (
		document_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		parent_id TEXT,
		metadata TEXT,
		PRIMARY KEY (document_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_elements_id ON elements(document_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- backend.Store implementation ---

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListDocuments(ctx context.Context) ([]types.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.version, d.updated_at, COUNT(e.id)
		FROM documents d
		LEFT JOIN elements e ON e.document_id = d.id
		GROUP BY d.id
		ORDER BY d.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := []types.DocumentInfo{}
	for rows.Next() {
		var info types.DocumentInfo
		if err := rows.Scan(&info.ID, &info.Title, &info.Version, &info.UpdatedAt, &info.ElementCount); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *Store) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, version, updated_at FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Title, &doc.Version, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, content, parent_id, metadata
		FROM elements
		WHERE document_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc.Elements = []types.Element{}
	for rows.Next() {
		var (
			e        types.Element
			parentID sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Content, &parentID, &metadata); err != nil {
			return nil, err
		}
		e.ParentID = parentID.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
			}
		}
		doc.Elements = append(doc.Elements, e)
	}
	return &doc, rows.Err()
}

func (s *Store) CreateDocument(ctx context.Context, id, title string) (*types.Document, error) {
	if s.readOnly {
		return nil, backend.ErrReadOnly
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("invalid document id %q", id)
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, title, now)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrExists, id)
	}

	return &types.Document{
		ID:        id,
		Title:     title,
		Version:   1,
		UpdatedAt: now,
		Elements:  []types.Element{},
	}, nil
}

// SaveDocument replaces the element rows and bumps the version in one
// transaction. The version check is part of the UPDATE, so two writers
// holding the same version cannot both succeed.
func (s *Store) SaveDocument(ctx context.Context, doc *types.Document, expectedVersion int) (*types.Document, error) {
	if s.readOnly {
		return nil, backend.ErrReadOnly
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current int
	var title string
	err = tx.QueryRowContext(ctx, `SELECT version, title FROM documents WHERE id = ?`, doc.ID).Scan(&current, &title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, doc.ID)
	}
	if err != nil {
		return nil, err
	}
	if current != expectedVersion {
		return nil, fmt.Errorf("%w: %s is at version %d, expected %d",
			backend.ErrVersionConflict, doc.ID, current, expectedVersion)
	}

	if doc.Title != "" {
		title = doc.Title
	}
	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET title = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, title, now, doc.ID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrVersionConflict, doc.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE document_id = ?`, doc.ID); err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO elements (document_id, position, id, type, content, parent_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	elements := make([]types.Element, len(doc.Elements))
	for i, e := range doc.Elements {
		elements[i] = e.Clone()

		var parentID any
		if e.ParentID != "" {
			parentID = e.ParentID
		}
		var metadata any
		if len(e.Metadata) > 0 {
			data, err := json.Marshal(e.Metadata)
			if err != nil {
				return nil, fmt.Errorf("encode metadata of %s: %w", e.ID, err)
			}
			metadata = string(data)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, i, e.ID, string(e.Type), e.Content, parentID, metadata); err != nil {
			return nil, fmt.Errorf("insert element %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.logger.Debug("document written", "document_id", doc.ID, "version", expectedVersion+1, "elements", len(elements))

	return &types.Document{
		ID:        doc.ID,
		Title:     title,
		Version:   expectedVersion + 1,
		UpdatedAt: now,
		Elements:  elements,
	}, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if s.readOnly {
		return backend.ErrReadOnly
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE document_id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// SearchElements implements backend.Searcher with a case-insensitive
// substring match on every query term. Every match is scored before the
// limit is applied, so the best hits are returned rather than the first.
func (s *Store) SearchElements(ctx context.Context, query string, limit int) ([]backend.SearchHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var where []string
	var args []any
	for _, t := range terms {
		where = append(where, `instr(lower(content), ?) > 0`)
		args = append(args, t)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, id, type, content
		FROM elements
		WHERE `+strings.Join(where, " AND ")+`
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []backend.SearchHit
	for rows.Next() {
		var h backend.SearchHit
		if err := rows.Scan(&h.DocumentID, &h.ElementID, &h.Type, &h.Content); err != nil {
			return nil, err
		}
		lower := strings.ToLower(h.Content)
		for _, t := range terms {
			h.Score += strings.Count(lower, t)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	backend.SortByRelevance(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
