// Package store defines the persisted session-token contract.
//
// The server issues an opaque session token at login; the client keeps
// it keyed by nickname so a later process can resume instead of logging
// in fresh. Any durable keyed storage satisfies the interface; the
// subpackages provide a JSON file, an embedded SQLite database and an
// in-memory map.
package store

// Store maps nicknames to session tokens across process restarts.
type Store interface {
	// Load returns the token stored for nick, or "" when none exists.
	// A missing entry is not an error.
	Load(nick string) (string, error)

	// Save stores token under nick. An empty token removes the entry.
	Save(nick, token string) error
}
