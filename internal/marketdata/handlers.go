package marketdata

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers exposes the market-data proxy over HTTP.
type Handlers struct {
	client  *Client
	popular []string
}

// NewHandlers creates the HTTP handler set for the given client and
// popular-symbol list.
func NewHandlers(client *Client, popular []string) *Handlers {
	return &Handlers{client: client, popular: popular}
}

// Routes mounts the market-data endpoints on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/stocks/popular", h.PopularStocks)
	r.Get("/stocks/{symbol}", h.SearchStock)
	r.Get("/stocks/{symbol}/quote", h.StockQuote)
	r.Get("/crypto/{symbol}", h.SearchCrypto)
}

// SearchStock handles GET /stocks/{symbol}: full candle series + quote.
func (h *Handlers) SearchStock(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	data, err := h.client.StockChart(r.Context(), symbol, "30d", "1d")
	if err != nil {
		h.writeUpstreamError(w, symbol, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// StockQuote handles GET /stocks/{symbol}/quote: latest price only.
func (h *Handlers) StockQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := h.client.StockQuote(r.Context(), symbol)
	if err != nil {
		h.writeUpstreamError(w, symbol, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// PopularStocks handles GET /stocks/popular: best-effort quotes for the
// configured overview symbols.
func (h *Handlers) PopularStocks(w http.ResponseWriter, r *http.Request) {
	quotes := h.client.PopularQuotes(r.Context(), h.popular)
	writeJSON(w, http.StatusOK, quotes)
}

// SearchCrypto handles GET /crypto/{symbol}.
func (h *Handlers) SearchCrypto(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	data, err := h.client.CryptoChart(r.Context(), symbol)
	if err != nil {
		h.writeUpstreamError(w, symbol, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

func (h *Handlers) writeUpstreamError(w http.ResponseWriter, symbol string, err error) {
	if errors.Is(err, ErrSymbolNotFound) {
		writeError(w, "symbol not found: "+symbol, http.StatusNotFound)
		return
	}
	slog.Error("upstream market data fetch failed", "symbol", symbol, "err", err)
	writeError(w, "failed to fetch market data", http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
