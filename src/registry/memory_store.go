package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolioexecutor/src/model"
)

// MemoryStore is a Store kept in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]model.BlockedAsset
	nextID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]model.BlockedAsset)}
}

func (s *MemoryStore) Upsert(_ context.Context, asset *model.BlockedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[asset.Symbol]
	if !ok {
		s.nextID++
		row = model.BlockedAsset{ID: s.nextID, Symbol: asset.Symbol, CreatedAt: asset.BlockedAt}
	}
	row.Reason = asset.Reason
	row.BlockedAt = asset.BlockedAt
	row.ExpiresAt = asset.ExpiresAt
	row.UpdatedAt = asset.BlockedAt
	s.rows[asset.Symbol] = row

	asset.ID = row.ID
	return nil
}

func (s *MemoryStore) ListActive(_ context.Context, now time.Time) ([]model.BlockedAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.BlockedAsset, 0, len(s.rows))
	for _, row := range s.rows {
		if row.IsActive(now) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for symbol, row := range s.rows {
		if !row.IsActive(now) {
			delete(s.rows, symbol)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
