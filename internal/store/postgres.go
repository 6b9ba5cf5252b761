package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS accounts (
  user_id      TEXT PRIMARY KEY,
  cash_balance NUMERIC NOT NULL,
  updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
  user_id            TEXT NOT NULL,
  symbol             TEXT NOT NULL,
  shares             NUMERIC NOT NULL,
  avg_price          NUMERIC NOT NULL,
  current_price      NUMERIC NOT NULL,
  total_value        NUMERIC NOT NULL,
  unrealized_pnl     NUMERIC NOT NULL,
  unrealized_pnl_pct NUMERIC NOT NULL,
  PRIMARY KEY (user_id, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
  id        TEXT PRIMARY KEY,
  user_id   TEXT NOT NULL,
  symbol    TEXT NOT NULL,
  side      TEXT NOT NULL,
  shares    NUMERIC NOT NULL,
  price     NUMERIC NOT NULL,
  total     NUMERIC NOT NULL,
  timestamp TIMESTAMPTZ NOT NULL,
  status    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id);

CREATE TABLE IF NOT EXISTS watchlists (
  user_id TEXT PRIMARY KEY,
  symbols TEXT[] NOT NULL
);`)
	return err
}

// SaveLedger replaces the user's snapshot in one transaction
// (last-write-wins).
func (s *PostgresStore) SaveLedger(ctx context.Context, userID string, snap *model.LedgerSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (user_id, cash_balance, updated_at)
		 VALUES ($1, $2::NUMERIC, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET cash_balance = EXCLUDED.cash_balance, updated_at = EXCLUDED.updated_at`,
		userID, snap.CashBalance.String(), time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM positions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, p := range snap.Positions {
		_, err = tx.Exec(ctx,
			`INSERT INTO positions (user_id, symbol, shares, avg_price, current_price, total_value, unrealized_pnl, unrealized_pnl_pct)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC)`,
			userID, p.Symbol,
			p.Shares.String(), p.AvgPrice.String(), p.CurrentPrice.String(),
			p.TotalValue.String(), p.UnrealizedPnL.String(), p.UnrealizedPnLPercent.String(),
		)
		if err != nil {
			return err
		}
	}

	if _, err = tx.Exec(ctx, `DELETE FROM trades WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, t := range snap.Trades {
		_, err = tx.Exec(ctx,
			`INSERT INTO trades (id, user_id, symbol, side, shares, price, total, timestamp, status)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
			t.ID, userID, t.Symbol, t.Side,
			t.Shares.String(), t.Price.String(), t.Total.String(),
			t.Timestamp, t.Status,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) LoadLedger(ctx context.Context, userID string) (*model.LedgerSnapshot, error) {
	var cashStr string
	err := s.pool.QueryRow(ctx,
		`SELECT cash_balance::TEXT FROM accounts WHERE user_id = $1`, userID).
		Scan(&cashStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", userID, err)
	}

	snap := &model.LedgerSnapshot{}
	snap.CashBalance, _ = decimal.NewFromString(cashStr)

	rows, err := s.pool.Query(ctx,
		`SELECT symbol, shares::TEXT, avg_price::TEXT, current_price::TEXT,
		        total_value::TEXT, unrealized_pnl::TEXT, unrealized_pnl_pct::TEXT
		 FROM positions WHERE user_id = $1 ORDER BY symbol`, userID)
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

	// ULIDs sort lexicographically in creation order, so id DESC is
	// newest first.
	tradeRows, err := s.pool.Query(ctx,
		`SELECT id, symbol, side, shares::TEXT, price::TEXT, total::TEXT, timestamp, status
		 FROM trades WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer tradeRows.Close()

	for tradeRows.Next() {
		var t model.Trade
		var sharesS, priceS, totalS string
		if err := tradeRows.Scan(&t.ID, &t.Symbol, &t.Side, &sharesS, &priceS, &totalS, &t.Timestamp, &t.Status); err != nil {
			return nil, err
		}
		t.Shares, _ = decimal.NewFromString(sharesS)
		t.Price, _ = decimal.NewFromString(priceS)
		t.Total, _ = decimal.NewFromString(totalS)
		snap.Trades = append(snap.Trades, t)
	}
	return snap, tradeRows.Err()
}

func (s *PostgresStore) SaveWatchlist(ctx context.Context, userID string, symbols []string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO watchlists (user_id, symbols) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET symbols = EXCLUDED.symbols`,
		userID, symbols,
	)
	return err
}

func (s *PostgresStore) LoadWatchlist(ctx context.Context, userID string) ([]string, error) {
	var symbols []string
	err := s.pool.QueryRow(ctx,
		`SELECT symbols FROM watchlists WHERE user_id = $1`, userID).
		Scan(&symbols)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load watchlist %s: %w", userID, err)
	}
	return symbols, nil
}
