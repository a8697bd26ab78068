package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUserRejected       = errors.New("user rejected wallet request")
	ErrUnsupportedWallet  = errors.New("no wallet provider available")
	ErrWrongNetwork       = errors.New("wrong network")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrQuoteUnavailable   = errors.New("quote unavailable")
	ErrSwapFailed         = errors.New("swap failed")
	ErrBridgeTimeout      = errors.New("bridge settlement timed out")
	ErrProxyNotConfigured = errors.New("proxy wallet not configured")
	ErrNoResponse         = errors.New("no response from exchange")
	ErrTransient          = errors.New("transient network error")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSigningFailed      = errors.New("signing failed")
	ErrCheckpointStale    = errors.New("checkpoint stale")
)

// OrderRejectedError carries the exchange's rejection reason verbatim so
// callers can surface it to the user unmodified.
type OrderRejectedError struct {
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

// AsOrderRejected reports whether err wraps an OrderRejectedError and
// returns it when it does.
func AsOrderRejected(err error) (*OrderRejectedError, bool) {
	var oe *OrderRejectedError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
