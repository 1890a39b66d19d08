package storage

import "sync"

// mockStore implements Store with in-memory storage. Safe for concurrent
// use, since observers record from whatever goroutine finishes a task.
type mockStore struct {
	mu     sync.Mutex
	events []TaskEvent
	nextID int64
}

// NewMockStore returns an in-memory Store for tests and examples.
func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) Begin() (Store, error) {
	return m, nil
}

func (m *mockStore) Commit() error {
	return nil
}

func (m *mockStore) Rollback() error {
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

func (m *mockStore) SaveTaskEvent(e TaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.events = append(m.events, e)
	return nil
}

func (m *mockStore) ListTaskEvents(taskName string) ([]TaskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TaskEvent
	for _, e := range m.events {
		if e.TaskName == taskName {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) ListRecentTaskEvents(limit int) ([]TaskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]TaskEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}
