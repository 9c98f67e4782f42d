package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/docfold/docfold-agent/internal/docmodel"
)

// Store is the local SQLite-backed persistence layer for documents and edit
// sessions.
//
// Notes:
// - Document trees are stored as one JSON blob per document; the tree is
//   small (a user document) and is always loaded whole for an edit session.
// - WAL is enabled so session listings can read while an edit writes.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			revision INTEGER NOT NULL DEFAULT 0,
			tree_json TEXT NOT NULL,
			created_at_unix_ms INTEGER NOT NULL,
			updated_at_unix_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edit_sessions (
			session_id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			section_key TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			completed_steps INTEGER NOT NULL DEFAULT 0,
			total_steps INTEGER NOT NULL DEFAULT 0,
			intent_json TEXT NOT NULL DEFAULT '',
			steps_json TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at_unix_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edit_sessions_doc
			ON edit_sessions(doc_id, created_at_unix_ms DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func nowUnixMs() int64 { return time.Now().UnixMilli() }

// DocumentMeta is the listing view of a stored document.
type DocumentMeta struct {
	DocID           string `json:"doc_id"`
	Title           string `json:"title"`
	Revision        int64  `json:"revision"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64  `json:"updated_at_unix_ms"`
}

// SaveDocument inserts or updates a document tree.
func (s *Store) SaveDocument(ctx context.Context, doc *docmodel.Document) error {
	if doc == nil || strings.TrimSpace(doc.ID) == "" {
		return errors.New("missing document id")
	}
	tree, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	now := nowUnixMs()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, title, revision, tree_json, created_at_unix_ms, updated_at_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			title = excluded.title,
			revision = excluded.revision,
			tree_json = excluded.tree_json,
			updated_at_unix_ms = excluded.updated_at_unix_ms`,
		doc.ID, doc.Title, doc.Revision, string(tree), now, now)
	return err
}

// GetDocument loads a document tree. Returns (nil, nil) when absent.
func (s *Store) GetDocument(ctx context.Context, docID string) (*docmodel.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tree_json FROM documents WHERE doc_id = ?`, strings.TrimSpace(docID))
	var tree string
	if err := row.Scan(&tree); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var doc docmodel.Document
	if err := json.Unmarshal([]byte(tree), &doc); err != nil {
		return nil, fmt.Errorf("corrupt tree for %s: %w", docID, err)
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]DocumentMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, title, revision, created_at_unix_ms, updated_at_unix_ms
		FROM documents ORDER BY updated_at_unix_ms DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentMeta
	for rows.Next() {
		var m DocumentMeta
		if err := rows.Scan(&m.DocID, &m.Title, &m.Revision, &m.CreatedAtUnixMs, &m.UpdatedAtUnixMs); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// EditSession is one recorded RunSectionAIAction call.
type EditSession struct {
	SessionID       string `json:"session_id"`
	DocID           string `json:"doc_id"`
	SectionKey      string `json:"section_key"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	CompletedSteps  int    `json:"completed_steps"`
	TotalSteps      int    `json:"total_steps"`
	IntentJSON      string `json:"intent_json,omitempty"`
	StepsJSON       string `json:"steps_json,omitempty"`
	DurationMs      int64  `json:"duration_ms"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms"`
}

func (s *Store) InsertEditSession(ctx context.Context, es EditSession) error {
	if strings.TrimSpace(es.SessionID) == "" {
		return errors.New("missing session id")
	}
	if es.CreatedAtUnixMs == 0 {
		es.CreatedAtUnixMs = nowUnixMs()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edit_sessions
			(session_id, doc_id, section_key, success, error, completed_steps, total_steps, intent_json, steps_json, duration_ms, created_at_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		es.SessionID, es.DocID, es.SectionKey, boolToInt(es.Success), es.Error,
		es.CompletedSteps, es.TotalSteps, es.IntentJSON, es.StepsJSON, es.DurationMs, es.CreatedAtUnixMs)
	return err
}

// ListEditSessions returns the most recent sessions, optionally filtered by
// document. limit <= 0 means a default page of 50.
func (s *Store) ListEditSessions(ctx context.Context, docID string, limit int) ([]EditSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT session_id, doc_id, section_key, success, error, completed_steps, total_steps, intent_json, steps_json, duration_ms, created_at_unix_ms
		FROM edit_sessions`
	args := []any{}
	if strings.TrimSpace(docID) != "" {
		query += ` WHERE doc_id = ?`
		args = append(args, strings.TrimSpace(docID))
	}
	query += ` ORDER BY created_at_unix_ms DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EditSession
	for rows.Next() {
		var es EditSession
		var success int
		if err := rows.Scan(&es.SessionID, &es.DocID, &es.SectionKey, &success, &es.Error,
			&es.CompletedSteps, &es.TotalSteps, &es.IntentJSON, &es.StepsJSON, &es.DurationMs, &es.CreatedAtUnixMs); err != nil {
			return nil, err
		}
		es.Success = success != 0
		out = append(out, es)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
