// Package file is a JSON-file session store. The whole mapping is read,
// mutated and rewritten on every change, which is fine for the handful
// of entries a client accumulates. Writes go through a temp file and a
// rename so a crash mid-write cannot corrupt the store.
package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// DefaultPath is the conventional store location in the working
// directory, matching what earlier client builds used.
const DefaultPath = ".game_session.json"

// Store persists nick -> token pairs in one JSON object.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store at the given path. The file is created lazily on
// the first Save; a missing file reads as an empty store.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Load returns the stored token for nick, or "" when absent.
func (s *Store) Load(nick string) (string, error) {
	if nick == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return "", err
	}
	return all[nick], nil
}

// Save stores token under nick, or removes the entry when token is "".
func (s *Store) Save(nick, token string) error {
	if nick == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return err
	}
	if token == "" {
		delete(all, nick)
	} else {
		all[nick] = token
	}
	return s.saveAll(all)
}

func (s *Store) loadAll() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read session store %s failed", s.path)
	}

	all := map[string]string{}
	if err := json.Unmarshal(data, &all); err != nil {
		// an unreadable store is treated as empty rather than fatal,
		// the worst outcome is one extra fresh login
		return map[string]string{}, nil
	}
	return all, nil
}

func (s *Store) saveAll(all map[string]string) error {
	data, err := json.Marshal(all)
	if err != nil {
		return errors.Wrap(err, "encode session store failed")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "create temp session store failed")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write session store failed")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close session store failed")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replace session store %s failed", s.path)
	}
	return nil
}
