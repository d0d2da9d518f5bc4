package names

import "sync"

// Assert that InMemoryNames implements the Names interface
var _ Names = (*InMemoryNames)(nil)

type InMemoryNames struct {
	mu    sync.RWMutex
	store map[string]Record
}

func NewInMemoryNames() *InMemoryNames {
	return &InMemoryNames{
		store: make(map[string]Record),
	}
}

func (s *InMemoryNames) Get(name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.store[name]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (s *InMemoryNames) Put(name string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store[name] = record
	return nil
}

func (s *InMemoryNames) Delete(name string, expectedAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.store[name]
	if !ok {
		return ErrNotFound
	}
	if expectedAddress != "" && record.Address != expectedAddress {
		return ErrPreconditionFailed
	}

	delete(s.store, name)
	return nil
}
