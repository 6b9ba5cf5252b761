// Package paper provides the HTTP surface of the paper-trading engine:
// order execution, cancellation, portfolio and history queries, account
// reset, and watchlists, per user.
//
// All monetary values use shopspring/decimal — never float64 for money.
package paper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/ledger"
	"github.com/cryptocandle/dashboard-engine/internal/metrics"
	"github.com/cryptocandle/dashboard-engine/internal/model"
	"github.com/cryptocandle/dashboard-engine/internal/store"
	"github.com/cryptocandle/dashboard-engine/internal/ws"
)

// saveTimeout bounds the background persistence write after a mutation.
const saveTimeout = 5 * time.Second

// Service owns the per-user account registry. Accounts are loaded from the
// store on first touch and kept in memory; the store is written back
// asynchronously after every mutation, so a slow database never blocks an
// order.
type Service struct {
	store          store.Store
	initialBalance decimal.Decimal
	wsHub          *ws.Hub // optional; nil disables broadcasts

	mu       sync.Mutex
	accounts map[string]*ledger.Account

	saveMu sync.Mutex // serializes background saves
}

// NewService creates the trade service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, initialBalance decimal.Decimal, hub *ws.Hub) *Service {
	return &Service{
		store:          st,
		initialBalance: initialBalance,
		wsHub:          hub,
		accounts:       make(map[string]*ledger.Account),
	}
}

// Routes mounts the paper-trading endpoints.
func (s *Service) Routes(r chi.Router) {
	r.Post("/trade", s.ExecuteTrade)
	r.Post("/trades/{userID}/{tradeID}/cancel", s.CancelTrade)
	r.Get("/trades/{userID}", s.GetTrades)
	r.Get("/portfolio/{userID}", s.GetPortfolio)
	r.Put("/portfolio/{userID}/prices", s.MarkPrices)
	r.Post("/accounts/{userID}/reset", s.ResetAccount)
	r.Get("/watchlist/{userID}", s.GetWatchlist)
	r.Put("/watchlist/{userID}", s.PutWatchlist)
}

// account returns the in-memory account for userID, loading its snapshot
// from the store on first touch. A user with no saved state starts fresh
// with the configured initial balance.
func (s *Service) account(ctx context.Context, userID string) *ledger.Account {
	s.mu.Lock()
	if acct, ok := s.accounts[userID]; ok {
		s.mu.Unlock()
		return acct
	}
	s.mu.Unlock()

	acct := ledger.NewAccount(s.initialBalance)
	snap, err := s.store.LoadLedger(ctx, userID)
	switch {
	case err == nil:
		acct.Restore(snap)
	case errors.Is(err, store.ErrNotFound):
		// New user, fresh account.
	default:
		slog.Error("ledger load failed, starting fresh", "user", userID, "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[userID]; ok {
		return existing // lost the race, use the winner
	}
	s.accounts[userID] = acct
	return acct
}

// persist writes the account state in the background. Failures are logged,
// never surfaced to the request that triggered them. Saves are serialized
// and the snapshot is taken at write time, so the last write always carries
// the newest state even when goroutines are scheduled out of order.
func (s *Service) persist(userID string, acct *ledger.Account) {
	go func() {
		s.saveMu.Lock()
		defer s.saveMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.store.SaveLedger(ctx, userID, acct.Snapshot()); err != nil {
			slog.Error("ledger save failed", "user", userID, "err", err)
		}
	}()
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	UserID string          `json:"user_id"`
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"` // "buy" or "sell"
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

// Portfolio is the JSON body returned from GET /portfolio/{userID}.
type Portfolio struct {
	UserID              string           `json:"user_id"`
	CashBalance         decimal.Decimal  `json:"cashBalance"`
	Positions           []model.Position `json:"positions"`
	TotalPortfolioValue decimal.Decimal  `json:"totalPortfolioValue"`
	TotalUnrealizedPnL  decimal.Decimal  `json:"totalUnrealizedPnL"`
}

// --- HTTP Handlers ---

// ExecuteTrade handles POST /trade.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	acct := s.account(r.Context(), req.UserID)

	start := time.Now()
	trade, err := acct.ExecuteTrade(ledger.Order{
		Symbol: req.Symbol,
		Side:   req.Side,
		Shares: req.Shares,
		Price:  req.Price,
	})
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			metrics.TradeRejections.WithLabelValues(verr.Code).Inc()
			writeValidationError(w, verr)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.TradesTotal.WithLabelValues(trade.Side).Inc()
	metrics.TradeLatency.WithLabelValues(trade.Side).Observe(time.Since(start).Seconds())

	s.persist(req.UserID, acct)

	slog.Info("trade executed",
		"trade_id", trade.ID,
		"user", req.UserID,
		"symbol", trade.Symbol,
		"side", trade.Side,
		"shares", trade.Shares.String(),
		"price", trade.Price.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(ws.Message{
			Type:        "trade_executed",
			UserID:      req.UserID,
			Symbol:      trade.Symbol,
			Side:        trade.Side,
			Shares:      trade.Shares.String(),
			Price:       trade.Price.String(),
			CashBalance: acct.CashBalance().String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(trade)
}

// CancelTrade handles POST /trades/{userID}/{tradeID}/cancel. Cancellation
// only annotates the record; balances and positions keep the trade's
// effects.
func (s *Service) CancelTrade(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	tradeID := chi.URLParam(r, "tradeID")

	acct := s.account(r.Context(), userID)
	if err := acct.CancelTrade(tradeID); err != nil {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}

	s.persist(userID, acct)
	slog.Info("trade cancelled", "trade_id", tradeID, "user", userID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled", "trade_id": tradeID})
}

// GetTrades handles GET /trades/{userID}. Newest first.
func (s *Service) GetTrades(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	trades := s.account(r.Context(), userID).Trades()
	if trades == nil {
		trades = []model.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// GetPortfolio handles GET /portfolio/{userID}.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	acct := s.account(r.Context(), userID)

	positions := acct.Positions()
	if positions == nil {
		positions = []model.Position{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Portfolio{
		UserID:              userID,
		CashBalance:         acct.CashBalance(),
		Positions:           positions,
		TotalPortfolioValue: acct.TotalPortfolioValue(),
		TotalUnrealizedPnL:  acct.TotalUnrealizedPnL(),
	})
}

// MarkPrices handles PUT /portfolio/{userID}/prices with a symbol→price
// map. Unknown symbols are ignored; the refreshed portfolio is returned.
func (s *Service) MarkPrices(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var prices map[string]decimal.Decimal
	if err := json.NewDecoder(r.Body).Decode(&prices); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acct := s.account(r.Context(), userID)
	acct.MarkPrices(prices)
	s.persist(userID, acct)

	if s.wsHub != nil {
		for symbol, price := range prices {
			s.wsHub.Broadcast(ws.Message{
				Type:   "price_update",
				UserID: userID,
				Symbol: symbol,
				Price:  price.String(),
			})
		}
	}

	s.GetPortfolio(w, r)
}

// ResetAccount handles POST /accounts/{userID}/reset: wipe positions and
// history, restore the initial cash balance.
func (s *Service) ResetAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	acct := s.account(r.Context(), userID)
	acct.Reset()
	s.persist(userID, acct)

	slog.Info("account reset", "user", userID)

	if s.wsHub != nil {
		s.wsHub.Broadcast(ws.Message{
			Type:        "account_reset",
			UserID:      userID,
			CashBalance: acct.CashBalance().String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":       "reset",
		"cash_balance": acct.CashBalance().String(),
	})
}

// GetWatchlist handles GET /watchlist/{userID}. A user without a saved
// watchlist gets an empty list, not a 404.
func (s *Service) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	symbols, err := s.store.LoadWatchlist(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, "failed to load watchlist", http.StatusInternalServerError)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"symbols": symbols})
}

// PutWatchlist handles PUT /watchlist/{userID}: replace the whole list.
func (s *Service) PutWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var body struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.store.SaveWatchlist(r.Context(), userID, body.Symbols); err != nil {
		slog.Error("watchlist save failed", "user", userID, "err", err)
		writeError(w, "failed to save watchlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"symbols": body.Symbols})
}

// writeValidationError maps a rejected order to 422 with the failure code.
func writeValidationError(w http.ResponseWriter, verr *ledger.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]string{
		"error": verr.Reason,
		"code":  verr.Code,
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
