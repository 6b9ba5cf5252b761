// Package screener filters quote sets by price, daily change, and volume.
package screener

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// QuoteSource supplies the universe of quotes to screen. The market-data
// client's popular-quote fetch satisfies it.
type QuoteSource interface {
	PopularQuotes(ctx context.Context) ([]model.Quote, error)
}

// QuoteSourceFunc adapts a plain function to QuoteSource.
type QuoteSourceFunc func(ctx context.Context) ([]model.Quote, error)

func (f QuoteSourceFunc) PopularQuotes(ctx context.Context) ([]model.Quote, error) {
	return f(ctx)
}

// Filter applies the request bounds to the quote set. Nil bounds pass
// everything; a quote must satisfy every set bound to match.
func Filter(quotes []model.Quote, req model.ScreenerRequest) model.ScreenerResult {
	matches := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if req.MinPrice != nil && q.Price.LessThan(*req.MinPrice) {
			continue
		}
		if req.MaxPrice != nil && q.Price.GreaterThan(*req.MaxPrice) {
			continue
		}
		if req.MinChangePercent != nil && q.ChangePercent.LessThan(*req.MinChangePercent) {
			continue
		}
		if req.MaxChangePercent != nil && q.ChangePercent.GreaterThan(*req.MaxChangePercent) {
			continue
		}
		if req.MinVolume != nil && q.Volume.LessThan(*req.MinVolume) {
			continue
		}
		matches = append(matches, q)
	}
	return model.ScreenerResult{Matches: matches, Scanned: len(quotes)}
}

// Handler runs the screen over a quote source.
type Handler struct {
	source QuoteSource
}

func NewHandler(source QuoteSource) *Handler {
	return &Handler{source: source}
}

// Screen handles POST /screener: decode the bounds, fetch the quote
// universe, return the filtered set.
func (h *Handler) Screen(w http.ResponseWriter, r *http.Request) {
	var req model.ScreenerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	quotes, err := h.source.PopularQuotes(r.Context())
	if err != nil {
		slog.Error("screener quote fetch failed", "err", err)
		writeError(w, "quote source unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Filter(quotes, req))
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
