// Package ledger implements the paper-trading account engine: cash balance,
// open positions with volume-weighted average cost, and an immutable trade
// history. All arithmetic uses shopspring/decimal — never float64 for money.
package ledger

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/model"
)

// Order is a buy or sell request against one account.
type Order struct {
	Symbol string
	Side   string // model.SideBuy or model.SideSell
	Shares decimal.Decimal
	Price  decimal.Decimal
}

// Account is the aggregate root for one simulated trading account.
// ExecuteTrade is a compound check-then-act sequence, so all state is
// guarded by a single mutex per account; two concurrent buys must not both
// pass the funds check before either applies its debit.
type Account struct {
	mu             sync.Mutex
	initialBalance decimal.Decimal
	cash           decimal.Decimal
	positions      map[string]*model.Position
	trades         []model.Trade // newest first
}

// NewAccount creates an account holding the given initial cash balance.
func NewAccount(initialBalance decimal.Decimal) *Account {
	return &Account{
		initialBalance: initialBalance,
		cash:           initialBalance,
		positions:      make(map[string]*model.Position),
	}
}

// ExecuteTrade validates and applies a buy or sell order. Validation runs
// in a fixed order (symbol, quantity/price, funds, shares); the first
// failing check rejects the order with a *ValidationError and no mutation.
// On success the trade record is prepended to the history with status
// "filled" and a copy of it is returned.
func (a *Account) ExecuteTrade(order Order) (*model.Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	symbol := strings.ToUpper(strings.TrimSpace(order.Symbol))
	if symbol == "" {
		return nil, rejectf(CodeInvalidSymbol, "symbol must be a non-empty string")
	}
	if order.Side != model.SideBuy && order.Side != model.SideSell {
		return nil, rejectf(CodeInvalidSymbol, "side must be %q or %q", model.SideBuy, model.SideSell)
	}
	if !order.Shares.IsPositive() || !order.Price.IsPositive() {
		return nil, rejectf(CodeInvalidQuantity, "shares and price must be positive")
	}

	total := order.Shares.Mul(order.Price)

	switch order.Side {
	case model.SideBuy:
		if total.GreaterThan(a.cash) {
			return nil, rejectf(CodeInsufficientFunds,
				"order total %s exceeds cash balance %s", total, a.cash)
		}
		a.cash = a.cash.Sub(total)
		a.applyBuy(symbol, order.Shares, order.Price, total)

	case model.SideSell:
		pos, ok := a.positions[symbol]
		if !ok || pos.Shares.LessThan(order.Shares) {
			return nil, rejectf(CodeInsufficientShares,
				"no position in %s with at least %s shares", symbol, order.Shares)
		}
		a.cash = a.cash.Add(total)
		a.applySell(pos, order.Shares)
	}

	trade := model.Trade{
		ID:        ulid.Make().String(),
		Symbol:    symbol,
		Side:      order.Side,
		Shares:    order.Shares,
		Price:     order.Price,
		Total:     total,
		Timestamp: time.Now().UTC(),
		Status:    model.StatusFilled,
	}
	a.trades = append([]model.Trade{trade}, a.trades...)

	return &trade, nil
}

// applyBuy creates the position on first buy or blends the average cost on
// subsequent buys. The blend must use the pre-trade share count:
//
//	avg' = (oldShares*oldAvg + shares*price) / (oldShares + shares)
//
// with no intermediate rounding.
func (a *Account) applyBuy(symbol string, shares, price, total decimal.Decimal) {
	pos, ok := a.positions[symbol]
	if !ok {
		pos = &model.Position{
			Symbol:       symbol,
			Shares:       shares,
			AvgPrice:     price,
			CurrentPrice: price,
		}
		a.positions[symbol] = pos
	} else {
		oldCost := pos.Shares.Mul(pos.AvgPrice)
		newShares := pos.Shares.Add(shares)
		pos.AvgPrice = oldCost.Add(total).Div(newShares)
		pos.Shares = newShares
	}
	refreshDerived(pos)
}

// applySell reduces the position; selling down to exactly zero shares
// removes it entirely. AvgPrice is unchanged by a sell.
func (a *Account) applySell(pos *model.Position, shares decimal.Decimal) {
	pos.Shares = pos.Shares.Sub(shares)
	if pos.Shares.IsZero() {
		delete(a.positions, pos.Symbol)
		return
	}
	refreshDerived(pos)
}

// CancelTrade flips a filled trade's status to cancelled. This is
// annotation-only: the trade's balance and position effects are not
// reversed. Cancelling an already-cancelled trade is a no-op.
func (a *Account) CancelTrade(tradeID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.trades {
		if a.trades[i].ID != tradeID {
			continue
		}
		if a.trades[i].Status == model.StatusFilled {
			a.trades[i].Status = model.StatusCancelled
		}
		return nil
	}
	return ErrTradeNotFound
}

// Reset discards all positions and trade history and restores the cash
// balance to the configured initial value. Always succeeds.
func (a *Account) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cash = a.initialBalance
	a.positions = make(map[string]*model.Position)
	a.trades = nil
}

// MarkPrice refreshes the latest known market price for one symbol and
// recomputes the position's derived value and P&L fields. Unknown symbols
// and negative prices are ignored; the engine never fetches prices itself.
func (a *Account) MarkPrice(symbol string, price decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markPriceLocked(symbol, price)
}

// MarkPrices applies a batch of price refreshes under one lock.
func (a *Account) MarkPrices(prices map[string]decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for symbol, price := range prices {
		a.markPriceLocked(symbol, price)
	}
}

func (a *Account) markPriceLocked(symbol string, price decimal.Decimal) {
	if price.IsNegative() {
		return
	}
	pos, ok := a.positions[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	refreshDerived(pos)
}

// CashBalance returns the current cash balance.
func (a *Account) CashBalance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Positions returns copies of all open positions, sorted by symbol.
func (a *Account) Positions() []model.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionsLocked()
}

// Trades returns a copy of the trade history, newest first.
func (a *Account) Trades() []model.Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	trades := make([]model.Trade, len(a.trades))
	copy(trades, a.trades)
	return trades
}

// TotalPortfolioValue returns cash plus the mark-to-market value of all
// positions. Meaningful only after MarkPrice refreshes from a price feed.
func (a *Account) TotalPortfolioValue() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.cash
	for _, pos := range a.positions {
		total = total.Add(pos.TotalValue)
	}
	return total
}

// TotalUnrealizedPnL returns the summed paper gain/loss across all open
// positions against their average cost.
func (a *Account) TotalUnrealizedPnL() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := decimal.Zero
	for _, pos := range a.positions {
		total = total.Add(pos.UnrealizedPnL)
	}
	return total
}

// Snapshot returns the persistable form of the account. The returned value
// shares no memory with the account.
func (a *Account) Snapshot() *model.LedgerSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	trades := make([]model.Trade, len(a.trades))
	copy(trades, a.trades)

	return &model.LedgerSnapshot{
		CashBalance: a.cash,
		Positions:   a.positionsLocked(),
		Trades:      trades,
	}
}

// Restore replaces the account state with a previously saved snapshot.
// Positions with zero shares are dropped rather than restored.
func (a *Account) Restore(snap *model.LedgerSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cash = snap.CashBalance
	a.positions = make(map[string]*model.Position, len(snap.Positions))
	for _, p := range snap.Positions {
		if p.Shares.IsZero() {
			continue
		}
		pos := p
		a.positions[pos.Symbol] = &pos
	}
	a.trades = make([]model.Trade, len(snap.Trades))
	copy(a.trades, snap.Trades)
}

func (a *Account) positionsLocked() []model.Position {
	positions := make([]model.Position, 0, len(a.positions))
	for _, pos := range a.positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

// refreshDerived recomputes totalValue, unrealizedPnL, and
// unrealizedPnLPercent from the position's shares, avg cost, and latest
// marked price.
func refreshDerived(pos *model.Position) {
	pos.TotalValue = pos.Shares.Mul(pos.CurrentPrice)
	pos.UnrealizedPnL = pos.CurrentPrice.Sub(pos.AvgPrice).Mul(pos.Shares)
	if pos.AvgPrice.IsPositive() {
		pos.UnrealizedPnLPercent = pos.CurrentPrice.Sub(pos.AvgPrice).
			Div(pos.AvgPrice).Mul(decimal.NewFromInt(100))
	} else {
		pos.UnrealizedPnLPercent = decimal.Zero
	}
}
