package store

import (
	"context"
	"sync"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	ledgers    map[string]*model.LedgerSnapshot
	watchlists map[string][]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers:    make(map[string]*model.LedgerSnapshot),
		watchlists: make(map[string][]string),
	}
}

func (s *MemoryStore) SaveLedger(_ context.Context, userID string, snap *model.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.ledgers[userID] = copySnapshot(snap)
	return nil
}

func (s *MemoryStore) LoadLedger(_ context.Context, userID string) (*model.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.ledgers[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snap), nil
}

func (s *MemoryStore) SaveWatchlist(_ context.Context, userID string, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]string, len(symbols))
	copy(list, symbols)
	s.watchlists[userID] = list
	return nil
}

func (s *MemoryStore) LoadWatchlist(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.watchlists[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

func copySnapshot(snap *model.LedgerSnapshot) *model.LedgerSnapshot {
	out := &model.LedgerSnapshot{
		CashBalance: snap.CashBalance,
		Positions:   make([]model.Position, len(snap.Positions)),
		Trades:      make([]model.Trade, len(snap.Trades)),
	}
	copy(out.Positions, snap.Positions)
	copy(out.Trades, snap.Trades)
	return out
}
