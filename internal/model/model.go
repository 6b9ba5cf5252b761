// Package model defines the core domain types shared across the dashboard
// backend. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade statuses.
const (
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

// Trade is an immutable record of an executed order. Once created with
// status "filled", only Status may change (filled → cancelled); the
// share/price/total fields are never touched again.
type Trade struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"` // "buy" or "sell"
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"` // shares * price
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status"`
}

// Position is an aggregated holding of one symbol: quantity plus
// volume-weighted average cost basis. A position with zero shares is
// removed from the ledger, never kept at zero.
type Position struct {
	Symbol               string          `json:"symbol"`
	Shares               decimal.Decimal `json:"shares"`
	AvgPrice             decimal.Decimal `json:"avgPrice"`
	CurrentPrice         decimal.Decimal `json:"currentPrice"`
	TotalValue           decimal.Decimal `json:"totalValue"`           // shares * currentPrice
	UnrealizedPnL        decimal.Decimal `json:"unrealizedPnL"`        // (currentPrice - avgPrice) * shares
	UnrealizedPnLPercent decimal.Decimal `json:"unrealizedPnLPercent"` // vs. avg cost, in %
}

// LedgerSnapshot is the persisted form of one paper-trading account:
// cash balance, open positions, and trade history (newest first).
// Field names and decimal values round-trip exactly across save/load.
type LedgerSnapshot struct {
	CashBalance decimal.Decimal `json:"cashBalance"`
	Positions   []Position      `json:"positions"`
	Trades      []Trade         `json:"trades"`
}

// Candle is one OHLCV bar keyed by Unix seconds, the time format the
// charting frontend expects.
type Candle struct {
	Time   int64           `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Quote is the latest price snapshot for one symbol.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Volume        decimal.Decimal `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ChartData bundles a quote with its candle series, the payload for the
// symbol search endpoints.
type ChartData struct {
	Quote
	MarketCap decimal.Decimal `json:"marketCap,omitempty"`
	Candles   []Candle        `json:"chartData"`
}

// Analysis is a trading recommendation for one symbol, produced either by
// the statistical analyzer or by an upstream language model.
type Analysis struct {
	Symbol         string `json:"symbol"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"` // "BUY", "SELL", or "HOLD"
	Rationale      string `json:"rationale"`
	Confidence     int    `json:"confidence"` // 0-100
	Source         string `json:"source"`     // "technical", "openai", "stub"
}

// ScreenerRequest holds optional quote filters; nil bounds are not applied.
type ScreenerRequest struct {
	MinPrice         *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice         *decimal.Decimal `json:"maxPrice,omitempty"`
	MinChangePercent *decimal.Decimal `json:"minChangePercent,omitempty"`
	MaxChangePercent *decimal.Decimal `json:"maxChangePercent,omitempty"`
	MinVolume        *decimal.Decimal `json:"minVolume,omitempty"`
}

// ScreenerResult is the filtered quote set plus the size of the set it
// was drawn from.
type ScreenerResult struct {
	Matches []Quote `json:"matches"`
	Scanned int     `json:"scanned"`
}

// NewsArticle is one item in the dashboard news feed.
type NewsArticle struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}
