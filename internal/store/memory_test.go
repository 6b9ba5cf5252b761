package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

func testSnapshot() *model.LedgerSnapshot {
	return &model.LedgerSnapshot{
		CashBalance: decimal.NewFromInt(97700),
		Positions: []model.Position{
			{
				Symbol:               "AAPL",
				Shares:               decimal.NewFromInt(15),
				AvgPrice:             decimal.RequireFromString("153.3333333333333333"),
				CurrentPrice:         decimal.NewFromInt(160),
				TotalValue:           decimal.NewFromInt(2400),
				UnrealizedPnL:        decimal.RequireFromString("100.0000000000000005"),
				UnrealizedPnLPercent: decimal.RequireFromString("4.35"),
			},
		},
		Trades: []model.Trade{
			{
				ID:        "01J8ZB7S5D4N4J2Z1R0X9WQK7B",
				Symbol:    "AAPL",
				Side:      model.SideBuy,
				Shares:    decimal.NewFromInt(15),
				Price:     decimal.NewFromInt(150),
				Total:     decimal.NewFromInt(2250),
				Timestamp: time.Date(2025, 3, 14, 15, 9, 26, 535897000, time.UTC),
				Status:    model.StatusFilled,
			},
		},
	}
}

func TestMemoryStore_LedgerRoundTrip(t *testing.T) {
	s := NewMemoryStore()
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

func TestMemoryStore_LoadLedgerNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.LoadLedger(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_SaveCopiesSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	snap := testSnapshot()

	if err := s.SaveLedger(ctx, "user1", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Mutating the caller's snapshot must not leak into the store.
	snap.Positions[0].Symbol = "HACKED"

	loaded, _ := s.LoadLedger(ctx, "user1")
	if loaded.Positions[0].Symbol != "AAPL" {
		t.Error("store must hold its own copy of the snapshot")
	}
}

func TestMemoryStore_WatchlistRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.LoadWatchlist(ctx, "user1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SaveWatchlist(ctx, "user1", []string{"AAPL", "TSLA", "BTC"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	list, err := s.LoadWatchlist(ctx, "user1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 3 || list[0] != "AAPL" || list[2] != "BTC" {
		t.Errorf("unexpected watchlist: %v", list)
	}
}
