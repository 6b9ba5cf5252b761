package analysis

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// series builds a candle list from close prices, one bar per day.
func series(closes ...float64) []model.Candle {
	candles := make([]model.Candle, len(closes))
	for i, c := range closes {
		candles[i] = model.Candle{
			Time:  1700000000 + int64(i)*86400,
			Open:  decimal.NewFromFloat(c),
			High:  decimal.NewFromFloat(c),
			Low:   decimal.NewFromFloat(c),
			Close: decimal.NewFromFloat(c),
		}
	}
	return candles
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func falling(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - float64(i)*step
	}
	return out
}

func TestTechnicalAnalyzer_Deterministic(t *testing.T) {
	a := NewTechnicalAnalyzer()
	req := Request{Symbol: "AAPL", Candles: series(rising(30, 100, 1)...)}

	first, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	second, _ := a.Analyze(context.Background(), req)

	if *first != *second {
		t.Errorf("same input must yield same output:\n%+v\n%+v", first, second)
	}
	if first.Source != "technical" {
		t.Errorf("expected source technical, got %s", first.Source)
	}
}

func TestTechnicalAnalyzer_OverboughtSells(t *testing.T) {
	a := NewTechnicalAnalyzer()
	// 30 straight up-days: RSI pegs at 100.
	req := Request{Symbol: "NVDA", Candles: series(rising(30, 100, 2)...)}

	result, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Recommendation != RecommendSell {
		t.Errorf("expected SELL on overbought series, got %s", result.Recommendation)
	}
	if result.Confidence < 60 || result.Confidence > 95 {
		t.Errorf("confidence out of range: %d", result.Confidence)
	}
}

func TestTechnicalAnalyzer_OversoldBuys(t *testing.T) {
	a := NewTechnicalAnalyzer()
	req := Request{Symbol: "TSLA", Candles: series(falling(30, 200, 2)...)}

	result, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Recommendation != RecommendBuy {
		t.Errorf("expected BUY on oversold series, got %s", result.Recommendation)
	}
}

func TestTechnicalAnalyzer_FlatHolds(t *testing.T) {
	a := NewTechnicalAnalyzer()
	// Alternating ±1 around 100: RSI near 50, price near SMA.
	closes := make([]float64, 30)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}
	req := Request{Symbol: "KO", Candles: series(closes...)}

	result, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Recommendation != RecommendHold {
		t.Errorf("expected HOLD on flat series, got %s", result.Recommendation)
	}
}

func TestTechnicalAnalyzer_EmptySeries(t *testing.T) {
	a := NewTechnicalAnalyzer()
	if _, err := a.Analyze(context.Background(), Request{Symbol: "AAPL"}); err == nil {
		t.Fatal("expected error on empty candle series")
	}
}

func TestRSI_ShortSeriesIsNeutral(t *testing.T) {
	if got := rsi([]float64{1, 2, 3}, 14); got != 50 {
		t.Errorf("expected neutral RSI 50, got %v", got)
	}
}

func TestSMA_ShortSeriesAveragesAll(t *testing.T) {
	if got := sma([]float64{100, 200}, 20); got != 150 {
		t.Errorf("expected 150, got %v", got)
	}
}
