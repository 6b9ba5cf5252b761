// Package store defines the persistence interface for paper-trading
// accounts and watchlists. Implementations include PostgreSQL, SQLite,
// Redis (read-through cache wrapper), and in-memory (for testing).
//
// Persistence is last-write-wins: every save replaces the user's previous
// snapshot wholesale. The ledger engine never blocks on a save.
package store

import (
	"context"
	"errors"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// ErrNotFound is returned when no record exists for the requested user.
var ErrNotFound = errors.New("store: not found")

// Store persists per-user ledger snapshots and watchlists.
type Store interface {
	// SaveLedger replaces the user's persisted ledger snapshot.
	SaveLedger(ctx context.Context, userID string, snap *model.LedgerSnapshot) error

	// LoadLedger returns the user's persisted ledger snapshot, or
	// ErrNotFound if the user has never saved one.
	LoadLedger(ctx context.Context, userID string) (*model.LedgerSnapshot, error)

	// SaveWatchlist replaces the user's watchlist symbols.
	SaveWatchlist(ctx context.Context, userID string, symbols []string) error

	// LoadWatchlist returns the user's watchlist, or ErrNotFound.
	LoadWatchlist(ctx context.Context, userID string) ([]string, error)
}
