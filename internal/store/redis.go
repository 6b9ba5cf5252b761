package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and refresh the cache; reads check Redis
// first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) SaveLedger(ctx context.Context, userID string, snap *model.LedgerSnapshot) error {
	if err := s.primary.SaveLedger(ctx, userID, snap); err != nil {
		return err
	}
	s.cacheJSON(ctx, ledgerKey(userID), snap)
	return nil
}

func (s *CachedStore) SaveWatchlist(ctx context.Context, userID string, symbols []string) error {
	if err := s.primary.SaveWatchlist(ctx, userID, symbols); err != nil {
		return err
	}
	s.cacheJSON(ctx, watchlistKey(userID), symbols)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadLedger(ctx context.Context, userID string) (*model.LedgerSnapshot, error) {
	data, err := s.rdb.Get(ctx, ledgerKey(userID)).Bytes()
	if err == nil {
		var snap model.LedgerSnapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	snap, err := s.primary.LoadLedger(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, ledgerKey(userID), snap)
	return snap, nil
}

func (s *CachedStore) LoadWatchlist(ctx context.Context, userID string) ([]string, error) {
	data, err := s.rdb.Get(ctx, watchlistKey(userID)).Bytes()
	if err == nil {
		var symbols []string
		if json.Unmarshal(data, &symbols) == nil {
			return symbols, nil
		}
	}

	symbols, err := s.primary.LoadWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, watchlistKey(userID), symbols)
	return symbols, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func ledgerKey(uid string) string    { return fmt.Sprintf("ledger:%s", uid) }
func watchlistKey(uid string) string { return fmt.Sprintf("watchlist:%s", uid) }
