// Package memory is an in-memory session store. Tokens do not survive
// the process; it exists for tests and for running with persistence
// deliberately disabled.
package memory

import "sync"

// Store keeps nick -> token pairs in a mutex-guarded map.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{tokens: make(map[string]string)}
}

// Load returns the token for nick, or "" when absent. Never errors.
func (s *Store) Load(nick string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[nick], nil
}

// Save stores token under nick; an empty token removes the entry.
func (s *Store) Save(nick, token string) error {
	if nick == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		delete(s.tokens, nick)
	} else {
		s.tokens[nick] = token
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
