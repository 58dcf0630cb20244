package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore is an in-memory implementation of driven.ConnectionStore.
type ConnectionStore struct {
	mu      sync.RWMutex
	records map[string]domain.ConnectionRecord
	now     func() time.Time
}

// NewConnectionStore creates a new in-memory connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{
		records: make(map[string]domain.ConnectionRecord),
		now:     time.Now,
	}
}

// Save stores or replaces the record for the record's identity.
func (s *ConnectionStore) Save(_ context.Context, record domain.ConnectionRecord) error {
	record.Identity = domain.NormalizeIdentity(record.Identity)
	if record.Identity == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if existing, ok := s.records[record.Identity]; ok {
		if record.ID == "" {
			record.ID = existing.ID
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = existing.CreatedAt
		}
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.records[record.Identity] = record
	return nil
}

// GetByIdentity retrieves the record for an identity.
func (s *ConnectionStore) GetByIdentity(_ context.Context, identity string) (*domain.ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[domain.NormalizeIdentity(identity)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// MarkDisconnected clears the connection for an identity.
func (s *ConnectionStore) MarkDisconnected(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizeIdentity(identity)
	record, ok := s.records[key]
	if !ok {
		return nil
	}
	record.Connected = false
	record.AccessToken = ""
	record.UpdatedAt = s.now().UTC()
	s.records[key] = record
	return nil
}

// List returns all records ordered by identity.
func (s *ConnectionStore) List(_ context.Context) ([]domain.ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ConnectionRecord, 0, len(s.records))
	for _, record := range s.records {
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Identity < result[j].Identity
	})
	return result, nil
}
