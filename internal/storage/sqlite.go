package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

const notesSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL,
	message      TEXT NOT NULL,
	contact_info TEXT NOT NULL DEFAULT '',
	ip_address   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
`

// SQLite stores notes in a local SQLite database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(notesSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Insert implements NoteStore.
func (s *SQLite) Insert(ctx context.Context, n models.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO notes (id, name, email, message, contact_info, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Name, n.Email, n.Message, n.ContactInfo, n.IPAddress, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: insert note: %w", err)
	}
	return nil
}

// List implements NoteStore.
func (s *SQLite) List(ctx context.Context, limit, offset int) ([]models.Note, int, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count notes: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, email, message, contact_info, ip_address, created_at
		FROM notes ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Name, &n.Email, &n.Message, &n.ContactInfo, &n.IPAddress, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("storage: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// Close implements NoteStore.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
