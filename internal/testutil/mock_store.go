// mock_store.go - Mock log store implementation for testing
package testutil

import (
	"context"
	"sync"

	"github.com/logbook/backend/internal/models"
	"github.com/logbook/backend/internal/storage"
)

// MockStore implements storage.Store in memory for testing
type MockStore struct {
	mu      sync.RWMutex
	entries []models.LogEntry

	// AppendErr and QueryErr, when set, are returned instead of touching entries
	AppendErr error
	QueryErr  error

	// AppendPanic makes Append panic with the given value
	AppendPanic any

	appendCalls int
	lastFilter  models.Filter
}

// NewMockStore creates a new mock store holding the given entries
func NewMockStore(entries ...models.LogEntry) *MockStore {
	return &MockStore{entries: append([]models.LogEntry{}, entries...)}
}

func (m *MockStore) Append(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	if m.AppendPanic != nil {
		panic(m.AppendPanic)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendCalls++
	if m.AppendErr != nil {
		return models.LogEntry{}, m.AppendErr
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *MockStore) Query(ctx context.Context, filter models.Filter) ([]models.LogEntry, error) {
	m.mu.Lock()
	m.lastFilter = filter
	m.mu.Unlock()

	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matcher := filter.Compile()
	result := make([]models.LogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if matcher.Match(e) {
			result = append(result, e)
		}
	}
	storage.SortNewestFirst(result)
	return result, nil
}

// Ensure MockStore implements storage.Store
var _ storage.Store = (*MockStore)(nil)

// Test Helper Methods

// Entries returns a copy of the stored entries in arrival order
func (m *MockStore) Entries() []models.LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.LogEntry{}, m.entries...)
}

// AppendCalls returns how many times Append reached the store
func (m *MockStore) AppendCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appendCalls
}

// LastFilter returns the filter passed to the most recent Query
func (m *MockStore) LastFilter() models.Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFilter
}

// SampleEntry returns a valid entry for the given level, resource and timestamp
func SampleEntry(level models.Level, resourceID, timestamp string) models.LogEntry {
	return models.LogEntry{
		Level:      level,
		Message:    "Failed to connect to database",
		ResourceID: resourceID,
		Timestamp:  timestamp,
		TraceID:    "abc-xyz-123",
		SpanID:     "span-456",
		Commit:     "5e5342f",
		Metadata:   map[string]any{"parentResourceId": "server-0987"},
	}
}
