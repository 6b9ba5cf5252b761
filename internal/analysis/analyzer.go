// Package analysis produces trading recommendations for dashboard symbols.
// The technical analyzer is fully deterministic; the OpenAI analyzer
// proxies an upstream language model and falls back to the technical one.
package analysis

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// Recommendation values.
const (
	RecommendBuy  = "BUY"
	RecommendSell = "SELL"
	RecommendHold = "HOLD"
)

// Request carries the market series to analyze.
type Request struct {
	Symbol        string          `json:"symbol"`
	AssetType     string          `json:"type"` // "stock" or "crypto"
	Candles       []model.Candle  `json:"chartData"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// Analyzer turns a market series into a recommendation.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*model.Analysis, error)
}

// TechnicalAnalyzer is the statistical implementation: SMA-20 trend plus
// RSI-14 extremes. Same inputs always yield the same output.
type TechnicalAnalyzer struct {
	SMAPeriod int
	RSIPeriod int
}

// NewTechnicalAnalyzer creates the analyzer with the standard 20/14 periods.
func NewTechnicalAnalyzer() *TechnicalAnalyzer {
	return &TechnicalAnalyzer{SMAPeriod: 20, RSIPeriod: 14}
}

// Analyze computes the recommendation. RSI extremes dominate; otherwise
// the price-versus-SMA trend decides, and a flat read holds.
func (a *TechnicalAnalyzer) Analyze(_ context.Context, req Request) (*model.Analysis, error) {
	if len(req.Candles) == 0 {
		return nil, fmt.Errorf("analysis: no candle data for %s", req.Symbol)
	}

	prices := closes(req.Candles)
	smaVal := sma(prices, a.SMAPeriod)
	rsiVal := rsi(prices, a.RSIPeriod)
	price := prices[len(prices)-1]

	var recommendation, rationale string
	var confidence int

	switch {
	case rsiVal >= 70:
		recommendation = RecommendSell
		rationale = fmt.Sprintf("RSI at %.1f signals overbought conditions.", rsiVal)
		confidence = 60 + int(rsiVal-70)
	case rsiVal <= 30:
		recommendation = RecommendBuy
		rationale = fmt.Sprintf("RSI at %.1f signals oversold conditions.", rsiVal)
		confidence = 60 + int(30-rsiVal)
	case smaVal > 0 && price > smaVal*1.01:
		recommendation = RecommendBuy
		rationale = fmt.Sprintf("Price is trading %.1f%% above the %d-day average.",
			(price/smaVal-1)*100, a.SMAPeriod)
		confidence = 65
	case smaVal > 0 && price < smaVal*0.99:
		recommendation = RecommendSell
		rationale = fmt.Sprintf("Price is trading %.1f%% below the %d-day average.",
			(1-price/smaVal)*100, a.SMAPeriod)
		confidence = 65
	default:
		recommendation = RecommendHold
		rationale = "Price is tracking its moving average with no RSI extreme."
		confidence = 55
	}
	if confidence > 95 {
		confidence = 95
	}

	trend := "flat"
	if smaVal > 0 {
		if price > smaVal {
			trend = "above"
		} else if price < smaVal {
			trend = "below"
		}
	}

	return &model.Analysis{
		Symbol:         req.Symbol,
		Summary:        fmt.Sprintf("%s trades at %.2f, %s its %d-day SMA of %.2f with RSI %.1f.", req.Symbol, price, trend, a.SMAPeriod, smaVal, rsiVal),
		Recommendation: recommendation,
		Rationale:      rationale,
		Confidence:     confidence,
		Source:         "technical",
	}, nil
}

// StubAnalyzer returns a fixed analysis; for tests and wiring checks.
type StubAnalyzer struct {
	Result model.Analysis
	Err    error
}

func (s *StubAnalyzer) Analyze(_ context.Context, req Request) (*model.Analysis, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := s.Result
	out.Symbol = req.Symbol
	return &out, nil
}
