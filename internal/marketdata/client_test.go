package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const yahooChartBody = `{
  "chart": {
    "result": [{
      "timestamp": [1700000000, 1700086400, 1700172800],
      "indicators": {
        "quote": [{
          "open":   [148.0, 150.5, null],
          "high":   [151.0, 153.0, 0],
          "low":    [147.0, 149.0, 0],
          "close":  [150.0, 152.5, null],
          "volume": [1000000, 1200000, 0]
        }]
      }
    }]
  }
}`

func newStockTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.URL, "", 5*time.Second)
}

func TestStockChart_ParsesAndFiltersCandles(t *testing.T) {
	c := newStockTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/AAPL") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, yahooChartBody)
	})

	data, err := c.StockChart(context.Background(), "aapl", "30d", "1d")
	if err != nil {
		t.Fatalf("StockChart: %v", err)
	}

	// Third bar has null open/close and must be filtered out.
	if len(data.Candles) != 2 {
		t.Fatalf("expected 2 valid candles, got %d", len(data.Candles))
	}
	if data.Symbol != "AAPL" {
		t.Errorf("expected upper-cased symbol, got %q", data.Symbol)
	}
	if !data.Price.Equal(decimal.NewFromFloat(152.5)) {
		t.Errorf("expected price 152.5, got %s", data.Price)
	}
	if !data.Change.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("expected change 2.5, got %s", data.Change)
	}
	// 2.5 / 150 * 100 ≈ 1.67%
	if !data.ChangePercent.Round(2).Equal(decimal.NewFromFloat(1.67)) {
		t.Errorf("expected changePercent ≈ 1.67, got %s", data.ChangePercent)
	}
}

func TestStockChart_NotFound(t *testing.T) {
	c := newStockTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.StockChart(context.Background(), "NOPE", "30d", "1d")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestStockChart_EmptyResult(t *testing.T) {
	c := newStockTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[]}}`)
	})

	_, err := c.StockChart(context.Background(), "NOPE", "30d", "1d")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestPopularQuotes_SkipsFailures(t *testing.T) {
	c := newStockTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "BAD") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, yahooChartBody)
	})

	quotes := c.PopularQuotes(context.Background(), []string{"AAPL", "BAD", "TSLA"})
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes with the failing symbol skipped, got %d", len(quotes))
	}
}

func TestCryptoChart_ApproximatesOHLC(t *testing.T) {
	c := newStockTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/search"):
			fmt.Fprint(w, `{"coins":[{"id":"bitcoin","name":"Bitcoin"}]}`)
		case strings.HasPrefix(r.URL.Path, "/coins/bitcoin/market_chart"):
			fmt.Fprint(w, `{
				"prices":        [[1700000000000, 40000], [1700086400000, 42000]],
				"market_caps":   [[1700000000000, 800000000], [1700086400000, 840000000]],
				"total_volumes": [[1700000000000, 5000000], [1700086400000, 6000000]]
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	data, err := c.CryptoChart(context.Background(), "btc")
	if err != nil {
		t.Fatalf("CryptoChart: %v", err)
	}
	if data.Name != "Bitcoin" {
		t.Errorf("expected name Bitcoin, got %q", data.Name)
	}
	if len(data.Candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(data.Candles))
	}

	second := data.Candles[1]
	if second.Time != 1700086400 {
		t.Errorf("expected ms→seconds conversion, got %d", second.Time)
	}
	// Open of bar N is close of bar N-1.
	if !second.Open.Equal(decimal.NewFromInt(40000)) {
		t.Errorf("expected open 40000, got %s", second.Open)
	}
	// High = max(open, close) * 1.02
	if !second.High.Equal(decimal.NewFromFloat(42840)) {
		t.Errorf("expected high 42840, got %s", second.High)
	}
	if !data.MarketCap.Equal(decimal.NewFromInt(840000000)) {
		t.Errorf("expected marketCap 840000000, got %s", data.MarketCap)
	}
	if !data.Price.Equal(decimal.NewFromInt(42000)) {
		t.Errorf("expected price 42000, got %s", data.Price)
	}
}

func TestCryptoChart_NoCoins(t *testing.T) {
	c := newStockTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"coins":[]}`)
	})

	_, err := c.CryptoChart(context.Background(), "nope")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}
