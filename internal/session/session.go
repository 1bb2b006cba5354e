// Package session persists the signed-in identity on the local machine so a restart can
// resume without asking for credentials.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

var ErrNoSession = errors.New("no stored session")

var userKey = []byte("chat_user")

type Saved struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return OpenWith(dir, &pebble.Options{})
}

// OpenWith opens the store with explicit pebble options, e.g. an in-memory FS.
func OpenWith(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(saved Saved) error {
	b, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return s.db.Set(userKey, b, pebble.Sync)
}

func (s *Store) Load() (*Saved, error) {
	v, closer, err := s.db.Get(userKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var saved Saved
	if err := json.Unmarshal(v, &saved); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if saved.User == nil || saved.Token == "" {
		return nil, ErrNoSession
	}
	return &saved, nil
}

func (s *Store) Clear() error {
	return s.db.Delete(userKey, pebble.Sync)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
