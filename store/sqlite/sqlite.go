// Package sqlite is a session store backed by an embedded SQLite
// database. It needs no external service and handles concurrent reads
// better than the JSON file store when several tools share one session
// database.
package sqlite

import (
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	nick  TEXT PRIMARY KEY,
	token TEXT NOT NULL
);`

// Store persists nick -> token pairs in a sessions table.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open session database %s failed", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create sessions table failed")
	}
	return &Store{db: db}, nil
}

// Load returns the token stored for nick, or "" when absent.
func (s *Store) Load(nick string) (string, error) {
	if nick == "" {
		return "", nil
	}
	var token string
	err := s.db.QueryRow(`SELECT token FROM sessions WHERE nick = ?`, nick).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load session failed")
	}
	return token, nil
}

// Save stores token under nick; an empty token removes the entry.
func (s *Store) Save(nick, token string) error {
	if nick == "" {
		return nil
	}
	if token == "" {
		_, err := s.db.Exec(`DELETE FROM sessions WHERE nick = ?`, nick)
		return errors.Wrap(err, "delete session failed")
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (nick, token) VALUES (?, ?)
		 ON CONFLICT(nick) DO UPDATE SET token = excluded.token`,
		nick, token,
	)
	return errors.Wrap(err, "save session failed")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
