package ledger

import (
	"errors"
	"fmt"
)

// ErrTradeNotFound is returned by CancelTrade when no trade with the given
// ID exists in the account's history.
var ErrTradeNotFound = errors.New("ledger: trade not found")

// Validation failure codes. Checks run in this order and the first failure
// aborts the order with no mutation.
const (
	CodeInvalidSymbol      = "InvalidSymbol"
	CodeInvalidQuantity    = "InvalidQuantity"
	CodeInsufficientFunds  = "InsufficientFunds"
	CodeInsufficientShares = "InsufficientShares"
)

// ValidationError describes why an order was rejected. A rejected order
// leaves the account exactly as it was.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: %s: %s", e.Code, e.Reason)
}

func rejectf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
