package news

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler serves GET /news?symbol=.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, "symbol query parameter is required", http.StatusBadRequest)
		return
	}

	articles, err := h.client.Fetch(r.Context(), symbol)
	if err != nil {
		slog.Error("news fetch failed", "symbol", symbol, "err", err)
		writeError(w, "news feed unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(articles)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
