package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// SQLiteStore implements Store on a local SQLite file via the cgo-free
// modernc driver. Decimals are stored as TEXT to keep exact precision;
// timestamps as RFC 3339 text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" && path != ":memory:" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS accounts (
  user_id      TEXT PRIMARY KEY,
  cash_balance TEXT NOT NULL,
  updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
  user_id            TEXT NOT NULL,
  symbol             TEXT NOT NULL,
  shares             TEXT NOT NULL,
  avg_price          TEXT NOT NULL,
  current_price      TEXT NOT NULL,
  total_value        TEXT NOT NULL,
  unrealized_pnl     TEXT NOT NULL,
  unrealized_pnl_pct TEXT NOT NULL,
  PRIMARY KEY (user_id, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
  id        TEXT PRIMARY KEY,
  user_id   TEXT NOT NULL,
  symbol    TEXT NOT NULL,
  side      TEXT NOT NULL,
  shares    TEXT NOT NULL,
  price     TEXT NOT NULL,
  total     TEXT NOT NULL,
  timestamp TEXT NOT NULL,
  status    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id);

CREATE TABLE IF NOT EXISTS watchlists (
  user_id TEXT PRIMARY KEY,
  symbols TEXT NOT NULL
);`)
	return err
}

func (s *SQLiteStore) SaveLedger(ctx context.Context, userID string, snap *model.LedgerSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, cash_balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET cash_balance = excluded.cash_balance, updated_at = excluded.updated_at`,
		userID, snap.CashBalance.String(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM positions WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, p := range snap.Positions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO positions (user_id, symbol, shares, avg_price, current_price, total_value, unrealized_pnl, unrealized_pnl_pct)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, p.Symbol,
			p.Shares.String(), p.AvgPrice.String(), p.CurrentPrice.String(),
			p.TotalValue.String(), p.UnrealizedPnL.String(), p.UnrealizedPnLPercent.String(),
		)
		if err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM trades WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, t := range snap.Trades {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO trades (id, user_id, symbol, side, shares, price, total, timestamp, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, userID, t.Symbol, t.Side,
			t.Shares.String(), t.Price.String(), t.Total.String(),
			t.Timestamp.UTC().Format(time.RFC3339Nano), t.Status,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadLedger(ctx context.Context, userID string) (*model.LedgerSnapshot, error) {
	var cashStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT cash_balance FROM accounts WHERE user_id = ?`, userID).
		Scan(&cashStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", userID, err)
	}

	snap := &model.LedgerSnapshot{}
	snap.CashBalance, _ = decimal.NewFromString(cashStr)

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, shares, avg_price, current_price, total_value, unrealized_pnl, unrealized_pnl_pct
		 FROM positions WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Position
		var sharesS, avgS, curS, valS, pnlS, pctS string
		if err := rows.Scan(&p.Symbol, &sharesS, &avgS, &curS, &valS, &pnlS, &pctS); err != nil {
			return nil, err
		}
		p.Shares, _ = decimal.NewFromString(sharesS)
		p.AvgPrice, _ = decimal.NewFromString(avgS)
		p.CurrentPrice, _ = decimal.NewFromString(curS)
		p.TotalValue, _ = decimal.NewFromString(valS)
		p.UnrealizedPnL, _ = decimal.NewFromString(pnlS)
		p.UnrealizedPnLPercent, _ = decimal.NewFromString(pctS)
		snap.Positions = append(snap.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tradeRows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, side, shares, price, total, timestamp, status
		 FROM trades WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer tradeRows.Close()

	for tradeRows.Next() {
		var t model.Trade
		var sharesS, priceS, totalS, tsS string
		if err := tradeRows.Scan(&t.ID, &t.Symbol, &t.Side, &sharesS, &priceS, &totalS, &tsS, &t.Status); err != nil {
			return nil, err
		}
		t.Shares, _ = decimal.NewFromString(sharesS)
		t.Price, _ = decimal.NewFromString(priceS)
		t.Total, _ = decimal.NewFromString(totalS)
		t.Timestamp, _ = time.Parse(time.RFC3339Nano, tsS)
		snap.Trades = append(snap.Trades, t)
	}
	return snap, tradeRows.Err()
}

func (s *SQLiteStore) SaveWatchlist(ctx context.Context, userID string, symbols []string) error {
	data, err := json.Marshal(symbols)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO watchlists (user_id, symbols) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET symbols = excluded.symbols`,
		userID, string(data),
	)
	return err
}

func (s *SQLiteStore) LoadWatchlist(ctx context.Context, userID string) ([]string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT symbols FROM watchlists WHERE user_id = ?`, userID).
		Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load watchlist %s: %w", userID, err)
	}

	var symbols []string
	if err := json.Unmarshal([]byte(data), &symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}
