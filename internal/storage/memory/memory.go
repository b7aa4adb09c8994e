package memory

import (
	"context"
	"sync"
)

type Storage struct {
	mu    sync.Mutex
	items map[string]string
}

func New() *Storage {
	return &Storage{items: map[string]string{}}
}

func (s *Storage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.items[key]
	return value, ok, nil
}

func (s *Storage) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = value
	return nil
}

func (s *Storage) RemoveItems(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

func (s *Storage) RemoveItemsIf(_ context.Context, guardKey, guardValue string, keys ...string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.items[guardKey]; !ok || current != guardValue {
		return false, nil
	}
	delete(s.items, guardKey)
	for _, key := range keys {
		delete(s.items, key)
	}
	return true, nil
}

// Len은 저장된 항목 수 (테스트용)
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
