package testing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aristath/marketdata/internal/domain"
)

// MockRecordStore is an in-memory implementation of domain.RecordStore for testing
type MockRecordStore struct {
	mu          sync.RWMutex
	series      map[string][]domain.Observation
	updatedAt   map[string]time.Time
	now         func() time.Time
	readErr     error
	writeErr    error
	upsertCalls int
}

// NewMockRecordStore creates a new mock record store
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{
		series:    make(map[string][]domain.Observation),
		updatedAt: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetClock sets the clock used to stamp writes
func (m *MockRecordStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetReadError sets the error returned by reads
func (m *MockRecordStore) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetWriteError sets the error returned by writes
func (m *MockRecordStore) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Seed stores observations as if written at updatedAt
func (m *MockRecordStore) Seed(category domain.AssetCategory, symbol string, observations []domain.Observation, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mockKey(category, symbol)
	m.series[key] = append([]domain.Observation(nil), observations...)
	m.updatedAt[key] = updatedAt
}

// UpsertCalls returns how many times Upsert succeeded
func (m *MockRecordStore) UpsertCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upsertCalls
}

// Series returns the stored observations for a symbol
func (m *MockRecordStore) Series(category domain.AssetCategory, symbol string) []domain.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Observation(nil), m.series[mockKey(category, symbol)]...)
}

// ReadLatest returns the latest record or nil
func (m *MockRecordStore) ReadLatest(ctx context.Context, category domain.AssetCategory, symbol string) (*domain.PersistedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.latestLocked(category, symbol), nil
}

// ReadLatestMany returns the latest record per known symbol
func (m *MockRecordStore) ReadLatestMany(ctx context.Context, category domain.AssetCategory, symbols []string) (map[string]*domain.PersistedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	records := make(map[string]*domain.PersistedRecord)
	for _, symbol := range symbols {
		if record := m.latestLocked(category, symbol); record != nil {
			records[symbol] = record
		}
	}
	return records, nil
}

// Upsert merges observations by date
func (m *MockRecordStore) Upsert(ctx context.Context, category domain.AssetCategory, symbol string, observations []domain.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}

	key := mockKey(category, symbol)
	byDate := make(map[string]domain.Observation)
	for _, o := range m.series[key] {
		byDate[o.Date] = o
	}
	for _, o := range observations {
		byDate[o.Date] = o
	}
	merged := make([]domain.Observation, 0, len(byDate))
	for _, o := range byDate {
		merged = append(merged, o)
	}
	domain.SortObservations(merged)

	m.series[key] = merged
	m.updatedAt[key] = m.now()
	m.upsertCalls++
	return nil
}

func (m *MockRecordStore) latestLocked(category domain.AssetCategory, symbol string) *domain.PersistedRecord {
	key := mockKey(category, symbol)
	latest, ok := domain.LatestObservation(m.series[key])
	if !ok {
		return nil
	}
	return &domain.PersistedRecord{
		Category:  category,
		Symbol:    strings.ToUpper(symbol),
		Namespace: string(category),
		Value:     latest,
		AsOf:      latest.Time(),
		UpdatedAt: m.updatedAt[key],
	}
}

func mockKey(category domain.AssetCategory, symbol string) string {
	return string(category) + ":" + strings.ToUpper(symbol)
}
