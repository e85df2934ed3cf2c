package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wapuda/virex/internal/domain"
)

// Load reads both snapshot files. A missing file is a fresh install, not an
// error. Unknown JSON fields are ignored and absent ones keep the schema
// defaults, so snapshots written by older builds load unchanged.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.usersPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read %s: %w", s.usersPath, err)
	default:
		if err := s.decodeUsers(raw); err != nil {
			return err
		}
	}

	raw, err = os.ReadFile(s.promoPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read %s: %w", s.promoPath, err)
	default:
		if err := json.Unmarshal(raw, &s.promos); err != nil {
			return fmt.Errorf("decode %s: %w", s.promoPath, err)
		}
	}

	s.log.Info().Int("users", len(s.users)).Int("promos", len(s.promos)).Msg("store loaded")
	return nil
}

func (s *Store) decodeUsers(raw []byte) error {
	var shells map[int64]json.RawMessage
	if err := json.Unmarshal(raw, &shells); err != nil {
		return fmt.Errorf("decode %s: %w", s.usersPath, err)
	}
	for id, blob := range shells {
		// Unmarshal on top of a defaulted record so fields absent from
		// the snapshot keep their defaults (text overlay in particular).
		u := domain.NewUserRecord(id)
		if err := json.Unmarshal(blob, u); err != nil {
			s.log.Error().Err(err).Int64("user_id", id).Msg("skipping corrupt user record")
			continue
		}
		u.UserID = id
		u.ApplyDefaults()
		s.users[id] = u
	}
	return nil
}

// Save writes both snapshots atomically (temp file then rename). The promo
// file is best effort: a failure there is logged but does not fail the save.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.usersPath, s.users); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	if err := writeAtomic(s.promoPath, s.promos); err != nil {
		s.log.Error().Err(err).Msg("save promo codes")
	}
	s.dirty = false
	return nil
}

// SaveIfDirty persists only when something changed since the last save.
func (s *Store) SaveIfDirty() error {
	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()
	if !dirty {
		return nil
	}
	return s.Save()
}

func writeAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Export serializes the user table for the /backup admin command.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.users, "", "  ")
}

// Import replaces the user table from an exported snapshot.
func (s *Store) Import(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := s.users
	s.users = make(map[int64]*domain.UserRecord)
	if err := s.decodeUsers(raw); err != nil {
		s.users = keep
		return err
	}
	s.dirty = true
	return nil
}
