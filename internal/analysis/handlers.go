package analysis

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler exposes POST /analyze.
type Handler struct {
	analyzer Analyzer
}

// NewHandler wraps an analyzer for HTTP use.
func NewHandler(analyzer Analyzer) *Handler {
	return &Handler{analyzer: analyzer}
}

// Analyze handles POST /analyze with a Request body.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), req)
	if err != nil {
		slog.Error("analysis failed", "symbol", req.Symbol, "err", err)
		writeError(w, "analysis failed", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
