package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parivision/bridgebet/internal/domain"
)

// ChainWatcher polls the wallet's reported chain id and reacts to changes.
// Wallet bridges do not reliably push chainChanged events over JSON-RPC, so
// polling is the portable option.
type ChainWatcher struct {
	provider Provider
	interval time.Duration
	logger   *slog.Logger

	// OnChange, when set before Watch starts, is invoked after each
	// published chain change. It runs on the watcher goroutine and must not
	// block.
	OnChange func(chainID int64)
}

// NewChainWatcher builds a watcher polling at the given interval. An
// interval of zero defaults to two seconds.
func NewChainWatcher(provider Provider, interval time.Duration, logger *slog.Logger) *ChainWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ChainWatcher{
		provider: provider,
		interval: interval,
		logger:   logger.With(slog.String("component", "chain_watcher")),
	}
}

// WaitForChain blocks until the wallet reports chainID or ctx is cancelled.
// It checks immediately, then on every tick. Transient RPC errors are logged
// and retried.
func (w *ChainWatcher) WaitForChain(ctx context.Context, chainID int64) error {
	check := func() (bool, error) {
		current, err := w.provider.ChainID(ctx)
		if err != nil {
			return false, err
		}
		return current == chainID, nil
	}

	if ok, err := check(); err == nil && ok {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wallet: waiting for chain %d: %w", chainID, ctx.Err())
		case <-ticker.C:
			ok, err := check()
			if err != nil {
				w.logger.Warn("chain id poll failed", slog.String("error", err.Error()))
				continue
			}
			if ok {
				w.logger.Info("wallet reached target network", slog.Int64("chain_id", chainID))
				return nil
			}
		}
	}
}

// Watch polls the wallet until ctx is cancelled and publishes a signal on
// every chain change. The first observed chain id is also published so
// subscribers learn the initial state.
func (w *ChainWatcher) Watch(ctx context.Context, bus domain.SignalBus) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := w.provider.ChainID(ctx)
			if err != nil {
				continue
			}
			if current != last {
				w.logger.Info("wallet network changed",
					slog.Int64("from", last),
					slog.Int64("to", current))
				bus.Publish(ctx, domain.Signal{
					Channel: "wallet.chain_changed",
					Payload: map[string]any{"chainId": current},
					At:      time.Now(),
				})
				if w.OnChange != nil {
					w.OnChange(current)
				}
				last = current
			}
		}
	}
}
