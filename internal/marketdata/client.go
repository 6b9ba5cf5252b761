// Package marketdata fetches quotes and candle series from upstream
// providers (Yahoo Finance chart API for stocks, CoinGecko for crypto)
// and normalizes them for the dashboard. Provider API keys stay
// server-side; clients only ever see the normalized payloads.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/metrics"
	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// ErrSymbolNotFound is returned when the upstream provider has no data
// for the requested symbol.
var ErrSymbolNotFound = errors.New("marketdata: symbol not found")

// Client talks to the upstream market-data providers.
type Client struct {
	httpClient    *http.Client
	stocksBaseURL string
	cryptoBaseURL string
	cryptoAPIKey  string
}

// NewClient creates a provider client. Base URLs are injected so tests can
// point at a local server.
func NewClient(stocksBaseURL, cryptoBaseURL, cryptoAPIKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		stocksBaseURL: stocksBaseURL,
		cryptoBaseURL: cryptoBaseURL,
		cryptoAPIKey:  cryptoAPIKey,
	}
}

// --- Yahoo Finance chart API ---

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// StockChart fetches a candle series plus derived quote for one stock
// symbol. Range and interval use Yahoo notation ("30d"/"1d").
func (c *Client) StockChart(ctx context.Context, symbol, rng, interval string) (*model.ChartData, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		c.stocksBaseURL, url.PathEscape(symbol), url.QueryEscape(interval), url.QueryEscape(rng))

	var resp yahooChartResponse
	if err := c.getJSON(ctx, "yahoo", u, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrSymbolNotFound
	}

	result := resp.Chart.Result[0]
	quotes := result.Indicators.Quote[0]

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		candle := model.Candle{
			Time:   ts,
			Open:   floatAt(quotes.Open, i),
			High:   floatAt(quotes.High, i),
			Low:    floatAt(quotes.Low, i),
			Close:  floatAt(quotes.Close, i),
			Volume: floatAt(quotes.Volume, i),
		}
		// Drop bars with missing prices; they break the chart renderer.
		if candle.Open.IsPositive() && candle.Close.IsPositive() {
			candles = append(candles, candle)
		}
	}
	if len(candles) == 0 {
		return nil, ErrSymbolNotFound
	}

	data := &model.ChartData{
		Quote:   quoteFromCandles(symbol, symbol, candles),
		Candles: candles,
	}
	return data, nil
}

// StockQuote fetches just the latest price snapshot for one stock symbol.
func (c *Client) StockQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	data, err := c.StockChart(ctx, symbol, "2d", "1d")
	if err != nil {
		return nil, err
	}
	quote := data.Quote
	return &quote, nil
}

// PopularQuotes fetches quotes for the configured popular symbols.
// Individual symbol failures are skipped, matching the dashboard's
// best-effort overview behavior.
func (c *Client) PopularQuotes(ctx context.Context, symbols []string) []model.Quote {
	quotes := make([]model.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := c.StockQuote(ctx, symbol)
		if err != nil {
			continue
		}
		quotes = append(quotes, *quote)
	}
	return quotes
}

// --- CoinGecko ---

type geckoSearchResponse struct {
	Coins []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"coins"`
}

type geckoMarketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// CryptoChart resolves a crypto symbol to a CoinGecko coin and fetches its
// 30-day daily series. CoinGecko returns close prices only, so OHLC is
// approximated from consecutive closes the way the dashboard always has.
func (c *Client) CryptoChart(ctx context.Context, symbol string) (*model.ChartData, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	searchURL := fmt.Sprintf("%s/search?query=%s", c.cryptoBaseURL, url.QueryEscape(strings.ToLower(symbol)))

	var search geckoSearchResponse
	if err := c.getJSON(ctx, "coingecko", searchURL, c.geckoHeaders(), &search); err != nil {
		return nil, err
	}
	if len(search.Coins) == 0 {
		return nil, ErrSymbolNotFound
	}
	coin := search.Coins[0]

	chartURL := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=30&interval=daily",
		c.cryptoBaseURL, url.PathEscape(coin.ID))

	var chart geckoMarketChartResponse
	if err := c.getJSON(ctx, "coingecko", chartURL, c.geckoHeaders(), &chart); err != nil {
		return nil, err
	}
	if len(chart.Prices) == 0 {
		return nil, ErrSymbolNotFound
	}

	hiFactor := decimal.NewFromFloat(1.02)
	loFactor := decimal.NewFromFloat(0.98)

	candles := make([]model.Candle, 0, len(chart.Prices))
	for i, point := range chart.Prices {
		closePrice := decimal.NewFromFloat(point[1])
		openPrice := closePrice
		if i > 0 {
			openPrice = decimal.NewFromFloat(chart.Prices[i-1][1])
		}
		high := decimal.Max(openPrice, closePrice).Mul(hiFactor)
		low := decimal.Min(openPrice, closePrice).Mul(loFactor)

		volume := decimal.Zero
		if i < len(chart.TotalVolumes) {
			volume = decimal.NewFromFloat(chart.TotalVolumes[i][1])
		}

		candles = append(candles, model.Candle{
			Time:   int64(point[0]) / 1000, // ms → Unix seconds
			Open:   openPrice,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	data := &model.ChartData{
		Quote:   quoteFromCandles(symbol, coin.Name, candles),
		Candles: candles,
	}
	if n := len(chart.MarketCaps); n > 0 {
		data.MarketCap = decimal.NewFromFloat(chart.MarketCaps[n-1][1])
	}
	return data, nil
}

func (c *Client) geckoHeaders() http.Header {
	if c.cryptoAPIKey == "" {
		return nil
	}
	h := http.Header{}
	h.Set("x-cg-demo-api-key", c.cryptoAPIKey)
	return h
}

// --- Helpers ---

func (c *Client) getJSON(ctx context.Context, provider, rawURL string, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		return fmt.Errorf("marketdata: %s request: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		metrics.UpstreamRequests.WithLabelValues(provider, "not_found").Inc()
		return ErrSymbolNotFound
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		return fmt.Errorf("marketdata: %s returned status %d", provider, resp.StatusCode)
	}

	metrics.UpstreamRequests.WithLabelValues(provider, "ok").Inc()
	return json.NewDecoder(resp.Body).Decode(out)
}

func floatAt(values []*float64, i int) decimal.Decimal {
	if i >= len(values) || values[i] == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*values[i])
}

// quoteFromCandles derives the latest quote from a candle series: price is
// the last close, change is measured against the previous close.
func quoteFromCandles(symbol, name string, candles []model.Candle) model.Quote {
	quote := model.Quote{
		Symbol:    symbol,
		Name:      name,
		Timestamp: time.Now().UTC(),
	}
	if len(candles) == 0 {
		return quote
	}

	last := candles[len(candles)-1]
	quote.Price = last.Close
	quote.Volume = last.Volume

	prev := last.Close
	if len(candles) > 1 {
		prev = candles[len(candles)-2].Close
	}
	quote.Change = last.Close.Sub(prev)
	if prev.IsPositive() {
		quote.ChangePercent = quote.Change.Div(prev).Mul(decimal.NewFromInt(100))
	}
	return quote
}
