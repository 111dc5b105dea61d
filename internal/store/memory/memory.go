package memory

import (
	"context"
	"sync"

	"github.com/henry1266/pharmacy-pos-sub005/internal/store"
)

type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

func New() *Store {
	return &Store{values: map[string]string{}}
}

// NewSeeded returns a store preloaded with the given entries.
func NewSeeded(entries map[string]string) *Store {
	s := New()
	for k, v := range entries {
		s.values[k] = v
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	if err := store.ValidateKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *Store) Set(_ context.Context, key string, value string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Close() error {
	return nil
}
