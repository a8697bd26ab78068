// Package settle waits for bridged funds to land on the destination chain.
// Stargate emits no callback usable from here, so arrival is detected by
// polling the recipient's USDC balance until it grows by roughly the
// expected amount.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/erc20"
)

// Poller checks a token balance on the destination chain at a fixed
// interval until the expected funds arrive or attempts are exhausted.
type Poller struct {
	caller      erc20.Caller
	token       common.Address
	interval    time.Duration
	maxAttempts int
	tolerance   float64 // fraction of the expected amount that counts as arrived
	logger      *slog.Logger
}

// NewPoller builds a Poller for the given token on the destination chain.
func NewPoller(caller erc20.Caller, token string, interval time.Duration, maxAttempts int, tolerance float64, logger *slog.Logger) *Poller {
	return &Poller{
		caller:      caller,
		token:       common.HexToAddress(token),
		interval:    interval,
		maxAttempts: maxAttempts,
		tolerance:   tolerance,
		logger:      logger.With(slog.String("component", "settle")),
	}
}

// Baseline reads the recipient's current balance, taken before the bridge
// transfer so later growth can be attributed to it.
func (p *Poller) Baseline(ctx context.Context, recipient common.Address) (*big.Int, error) {
	return erc20.BalanceOf(ctx, p.caller, p.token, recipient)
}

// OnAttempt reports one completed poll so the caller can surface progress
// while the bridge is in flight. It runs on the polling goroutine.
type OnAttempt func(attempt int, elapsed time.Duration)

// Await polls recipient's balance until it exceeds baseline by at least
// tolerance * expectedUSDC, returning the received amount in token units.
// It checks immediately, then once per interval, invoking onAttempt (when
// non-nil) after every poll. Exhausting all attempts returns
// domain.ErrBridgeTimeout; the caller decides whether to retry or
// checkpoint and park the workflow.
func (p *Poller) Await(ctx context.Context, recipient common.Address, baseline *big.Int, expectedUSDC float64, onAttempt OnAttempt) (*big.Int, error) {
	if expectedUSDC <= 0 {
		return nil, fmt.Errorf("settle: expected amount must be positive: %w", domain.ErrInvalidAmount)
	}
	threshold := usdcUnits(expectedUSDC * p.tolerance)
	started := time.Now()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		balance, err := erc20.BalanceOf(ctx, p.caller, p.token, recipient)
		if onAttempt != nil {
			onAttempt(attempt, time.Since(started))
		}
		if err != nil {
			p.logger.Warn("balance poll failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		} else {
			received := new(big.Int).Sub(balance, baseline)
			if received.Cmp(threshold) >= 0 {
				p.logger.Info("bridged funds arrived",
					slog.Int("attempt", attempt),
					slog.String("received", received.String()))
				return received, nil
			}
			p.logger.Debug("funds not yet arrived",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", p.maxAttempts),
				slog.String("received", received.String()),
				slog.String("threshold", threshold.String()))
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("settle: await: %w", ctx.Err())
		case <-time.After(p.interval):
		}
	}

	return nil, fmt.Errorf("settle: funds not observed after %d attempts: %w",
		p.maxAttempts, domain.ErrBridgeTimeout)
}

// usdcUnits converts a USDC amount to 6-decimal token units, rounding down.
func usdcUnits(amount float64) *big.Int {
	units := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e6))
	n, _ := units.Int(nil)
	return n
}
