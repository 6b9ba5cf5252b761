package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_LedgerRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	snap := testSnapshot()

	if err := s.SaveLedger(ctx, "user1", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.LoadLedger(ctx, "user1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want, _ := json.Marshal(snap)
	got, _ := json.Marshal(loaded)
	if string(want) != string(got) {
		t.Errorf("round-trip mismatch:\nwant %s\ngot  %s", want, got)
	}
}

func TestSQLiteStore_SaveIsLastWriteWins(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := testSnapshot()
	if err := s.SaveLedger(ctx, "user1", first); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := testSnapshot()
	second.Positions = nil
	second.Trades = nil
	if err := s.SaveLedger(ctx, "user1", second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := s.LoadLedger(ctx, "user1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Positions) != 0 || len(loaded.Trades) != 0 {
		t.Errorf("second save must replace the first wholesale: %+v", loaded)
	}
}

func TestSQLiteStore_LoadLedgerNotFound(t *testing.T) {
	s := newTestSQLite(t)
	if _, err := s.LoadLedger(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_WatchlistRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.SaveWatchlist(ctx, "user1", []string{"AAPL", "BTC"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveWatchlist(ctx, "user1", []string{"NVDA"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	list, err := s.LoadWatchlist(ctx, "user1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 1 || list[0] != "NVDA" {
		t.Errorf("unexpected watchlist: %v", list)
	}
}
