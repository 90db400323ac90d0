// Package storage persists small JSON documents in SQLite, keyed by (kind, id).
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Store reads and writes raw documents. Every save bumps the document's
// revision. SQLite serializes writers, so Store holds no lock of its own.
type Store struct {
	db *sql.DB
}

// NewStore creates a document store on an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the body and revision of a document. A missing document
// yields a nil body and revision 0.
func (s *Store) Load(kind, id string) ([]byte, int64, error) {
	var (
		body     string
		revision int64
	)
	err := s.db.QueryRow(
		`SELECT body, revision FROM documents WHERE kind = ? AND id = ?`, kind, id,
	).Scan(&body, &revision)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, 0, nil
	case err != nil:
		return nil, 0, err
	}
	return []byte(body), revision, nil
}

// Save writes a document and returns its new revision.
func (s *Store) Save(kind, id string, body []byte) (int64, error) {
	var revision int64
	err := s.db.QueryRow(`
		INSERT INTO documents (kind, id, body, revision, saved_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			body = excluded.body,
			revision = revision + 1,
			saved_at = excluded.saved_at
		RETURNING revision
	`, kind, id, string(body), time.Now().UTC().Unix()).Scan(&revision)
	if err != nil {
		return 0, err
	}

	log.Debug().Str("kind", kind).Str("id", id).Int64("revision", revision).Msg("Saved document")
	return revision, nil
}

// Delete removes one document. Deleting a missing document is not an error.
func (s *Store) Delete(kind, id string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE kind = ? AND id = ?`, kind, id)
	return err
}

// Clear removes every document of a kind, or every document when kind is empty.
func (s *Store) Clear(kind string) error {
	if kind == "" {
		_, err := s.db.Exec(`DELETE FROM documents`)
		return err
	}
	_, err := s.db.Exec(`DELETE FROM documents WHERE kind = ?`, kind)
	return err
}
