// Package workflow orchestrates the full bridge-and-bet sequence: quote the
// stake, swap BNB to USDT on BSC, bridge it to the user's Polygon proxy
// wallet as USDC, wait for settlement, then sign and submit the exchange
// order. The bridge step writes a durable checkpoint, so a wallet restart or
// network switch in the middle resumes instead of losing funds in flight.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/parivision/bridgebet/internal/bridge"
	"github.com/parivision/bridgebet/internal/config"
	"github.com/parivision/bridgebet/internal/dex"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/notify"
	"github.com/parivision/bridgebet/internal/order"
	"github.com/parivision/bridgebet/internal/platform/polymarket"
	"github.com/parivision/bridgebet/internal/price"
	"github.com/parivision/bridgebet/internal/proxywallet"
	"github.com/parivision/bridgebet/internal/settle"
	"github.com/parivision/bridgebet/internal/wallet"
)

// weiPerBNB converts BNB display amounts to wei.
var weiPerBNB = new(big.Float).SetFloat64(1e18)

// Exchange is the order-submission surface the engine needs from the CLOB
// client.
type Exchange interface {
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
	GetMidpoint(ctx context.Context, tokenID string) (float64, error)
	PostOrder(ctx context.Context, signed domain.SignedOrder, creds *domain.APICredentials) (domain.OrderResult, error)
}

var _ Exchange = (*polymarket.ClobClient)(nil)

// Engine drives one bet at a time through the workflow. All transitions are
// logged and published on the signal bus for the UI.
type Engine struct {
	cfg         config.WorkflowConfig
	provider    wallet.Provider
	watcher     *wallet.ChainWatcher
	dex         *dex.Router
	bridge      *bridge.Router
	settle      *settle.Poller
	oracle      *price.Oracle
	resolver    *proxywallet.Resolver
	builder     *order.Builder
	signer      *order.Signer
	exchange    Exchange
	checkpoints domain.CheckpointStore
	creds       domain.CredentialStore
	bus         domain.SignalBus
	notifier    *notify.Notifier
	source      domain.ChainSpec
	destination domain.ChainSpec
	logger      *slog.Logger

	mu     sync.Mutex
	active bool // one workflow at a time
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Provider    wallet.Provider
	Watcher     *wallet.ChainWatcher
	Dex         *dex.Router
	Bridge      *bridge.Router
	Settle      *settle.Poller
	Oracle      *price.Oracle
	Resolver    *proxywallet.Resolver
	Builder     *order.Builder
	Signer      *order.Signer
	Exchange    Exchange
	Checkpoints domain.CheckpointStore
	Creds       domain.CredentialStore
	Bus         domain.SignalBus
	Notifier    *notify.Notifier
	Source      domain.ChainSpec
	Destination domain.ChainSpec
}

// NewEngine builds an Engine from its dependencies.
func NewEngine(cfg config.WorkflowConfig, deps Deps, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		provider:    deps.Provider,
		watcher:     deps.Watcher,
		dex:         deps.Dex,
		bridge:      deps.Bridge,
		settle:      deps.Settle,
		oracle:      deps.Oracle,
		resolver:    deps.Resolver,
		builder:     deps.Builder,
		signer:      deps.Signer,
		exchange:    deps.Exchange,
		checkpoints: deps.Checkpoints,
		creds:       deps.Creds,
		bus:         deps.Bus,
		notifier:    deps.Notifier,
		source:      deps.Source,
		destination: deps.Destination,
		logger:      logger.With(slog.String("component", "workflow")),
	}
}

// Quote estimates the USDC that req.AmountBNB would deliver to the proxy,
// without touching the chain state. The DEX quote is authoritative; the
// oracle price only seeds the fee estimate shown alongside.
func (e *Engine) Quote(ctx context.Context, amountBNB float64) (domain.Quote, error) {
	if amountBNB <= 0 {
		return domain.Quote{}, fmt.Errorf("workflow: stake must be positive: %w", domain.ErrInvalidAmount)
	}

	wei := bnbToWei(amountBNB)
	outWei, err := e.dex.QuoteOut(ctx, wei)
	if err != nil {
		return domain.Quote{}, err
	}
	usdt := weiToFloat(outWei, 18)
	expected := dex.ApplySlippage(usdt, e.cfg.SwapSlippageBps)

	refPrice, _ := e.oracle.Price()
	return domain.Quote{
		InputAmount:  amountBNB,
		InputAsset:   "BNB",
		OutputAmount: expected,
		OutputAsset:  "USDC",
		FeeEstimate:  amountBNB*refPrice - expected,
	}, nil
}

// PlaceBet runs the workflow from a fresh request through order submission.
// It returns once the order is accepted or the workflow fails; a process
// restart in between is handled by Resume.
func (e *Engine) PlaceBet(ctx context.Context, req domain.BetRequest) (domain.OrderResult, error) {
	if !e.begin() {
		return domain.OrderResult{}, fmt.Errorf("workflow: another bet is already in flight")
	}
	defer e.end()

	runID := uuid.NewString()
	logger := e.logger.With(slog.String("run_id", runID), slog.String("market", req.MarketSlug))

	// Reject a bad stake before touching the wallet or either chain.
	if req.AmountBNB <= 0 {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug,
			fmt.Errorf("workflow: stake must be positive: %w", domain.ErrInvalidAmount))
	}

	from, err := e.provider.Address(ctx)
	if err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, fmt.Errorf("workflow: wallet address: %w", err))
	}

	// The swap and bridge legs need the wallet on the source chain.
	if err := e.ensureChain(ctx, e.source); err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, err)
	}

	// Resolve the destination proxy before moving any funds; bridging to an
	// unknown recipient is the one mistake this workflow must never make.
	proxy, err := e.resolver.Resolve(ctx, from.Hex())
	if err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, err)
	}

	wei := bnbToWei(req.AmountBNB)
	quotedOut, err := e.dex.QuoteOut(ctx, wei)
	if err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, err)
	}
	// The guaranteed minimum is what the rest of the workflow counts on.
	minOut := dex.MinOut(quotedOut, e.cfg.SwapSlippageBps)
	expectedUSD := dex.ApplySlippage(weiToFloat(quotedOut, 18), e.cfg.SwapSlippageBps)
	e.publishState(ctx, domain.StateQuoted, req.MarketSlug, runID)
	logger.Info("stake quoted",
		slog.Float64("amount_bnb", req.AmountBNB),
		slog.Float64("expected_usdc", expectedUSD))

	// Swap BNB -> USDT.
	if _, err := e.dex.Swap(ctx, e.provider, from, wei, minOut, from); err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, fmt.Errorf("%w: %v", domain.ErrSwapFailed, err))
	}
	e.publishState(ctx, domain.StateSourceSwapped, req.MarketSlug, runID)

	// Capture the proxy's balance before bridging so settlement can detect
	// the increase.
	baseline, err := e.settle.Baseline(ctx, common.HexToAddress(proxy))
	if err != nil {
		logger.Warn("baseline read failed, assuming zero", slog.String("error", err.Error()))
		baseline = big.NewInt(0)
	}

	// Bridge USDT -> USDC to the proxy. The swap's minimum output is what we
	// can rely on having.
	bridgeAmount := minOut
	if _, err := e.bridge.EnsureAllowance(ctx, e.provider, from, bridgeAmount); err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, err)
	}
	fee, err := e.bridge.QuoteFee(ctx, common.HexToAddress(proxy))
	if err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, err)
	}
	txHash, err := e.bridge.Send(ctx, e.provider, from, bridgeAmount, e.bridge.MinAmount(bridgeAmount), fee, common.HexToAddress(proxy))
	if err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, err)
	}

	bet := domain.PendingBet{
		MarketSlug:           req.MarketSlug,
		MarketQuestion:       req.MarketQuestion,
		TokenID:              req.TokenID,
		OutcomeLabel:         req.OutcomeLabel,
		ReferencePrice:       req.OutcomePrice,
		ExpectedStableAmount: expectedUSD,
		DestinationProxy:     proxy,
		BridgeTxHash:         txHash.Hex(),
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().UnixMilli(),
	}
	// The checkpoint must be durable before we invite the user to switch
	// networks; the process may not survive the switch.
	if err := e.checkpoints.Save(ctx, bet); err != nil {
		return domain.OrderResult{}, e.fail(ctx, logger, req.MarketSlug, fmt.Errorf("workflow: save checkpoint: %w", err))
	}
	e.publishState(ctx, domain.StateSourceBridged, req.MarketSlug, runID)
	e.notify(ctx, notify.Event{
		Kind:         notify.EventBridgeInitiated,
		Market:       req.MarketSlug,
		Detail:       fmt.Sprintf("bridging %.2f USDC to %s", expectedUSD, proxy),
		BridgeTxHash: txHash.Hex(),
	})
	logger.Info("bridge submitted, checkpoint saved", slog.String("tx_hash", txHash.Hex()))

	return e.complete(ctx, logger, bet, baseline, runID)
}

// Resume picks up a checkpointed bet after a restart. A missing checkpoint
// is a no-op; a stale one is discarded. Calling Resume while a workflow is
// already active is also a no-op, so the startup hook and a reconnect hook
// can both call it safely.
func (e *Engine) Resume(ctx context.Context) (domain.OrderResult, error) {
	if !e.begin() {
		return domain.OrderResult{}, nil
	}
	defer e.end()

	bet, err := e.checkpoints.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OrderResult{}, nil
		}
		return domain.OrderResult{}, fmt.Errorf("workflow: load checkpoint: %w", err)
	}

	runID := uuid.NewString()
	logger := e.logger.With(slog.String("run_id", runID), slog.String("market", bet.MarketSlug))

	if bet.Stale(time.Now(), e.cfg.StalenessWindow.Duration) {
		logger.Warn("discarding stale checkpoint",
			slog.Duration("age", bet.Age(time.Now())),
			slog.Duration("window", e.cfg.StalenessWindow.Duration))
		if err := e.checkpoints.Delete(ctx); err != nil {
			return domain.OrderResult{}, fmt.Errorf("workflow: delete stale checkpoint: %w", err)
		}
		e.notify(ctx, notify.Event{
			Kind:         notify.EventCheckpointDiscarded,
			Market:       bet.MarketSlug,
			Detail:       fmt.Sprintf("checkpoint older than %s", e.cfg.StalenessWindow.Duration),
			BridgeTxHash: bet.BridgeTxHash,
		})
		return domain.OrderResult{}, fmt.Errorf("workflow: %w", domain.ErrCheckpointStale)
	}

	logger.Info("resuming pending bet",
		slog.String("state", string(bet.State)),
		slog.Duration("age", bet.Age(time.Now())))

	// After a restart the pre-bridge baseline is gone; judge arrival by the
	// proxy's absolute balance instead.
	return e.complete(ctx, logger, bet, big.NewInt(0), runID)
}

// HasPending reports whether a resumable checkpoint exists, without
// starting anything.
func (e *Engine) HasPending(ctx context.Context) (bool, error) {
	_, err := e.checkpoints.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ----- Internal helpers -----

// complete drives a checkpointed bet from the network switch through order
// submission. It is shared by the fresh and resumed paths.
func (e *Engine) complete(ctx context.Context, logger *slog.Logger, bet domain.PendingBet, baseline *big.Int, runID string) (domain.OrderResult, error) {
	// The exchange order is signed and settled on the destination chain.
	e.publishState(ctx, domain.StateAwaitingNetworkSwitch, bet.MarketSlug, runID)
	if err := e.ensureChain(ctx, e.destination); err != nil {
		// The checkpoint stays; the next Resume retries from here.
		return domain.OrderResult{}, fmt.Errorf("workflow: destination switch: %w", err)
	}

	e.publishState(ctx, domain.StateAwaitingSettlement, bet.MarketSlug, runID)
	onAttempt := func(attempt int, elapsed time.Duration) {
		e.publishProgress(ctx, bet.MarketSlug, runID, attempt, elapsed)
	}
	received, err := e.settle.Await(ctx, common.HexToAddress(bet.DestinationProxy), baseline, bet.ExpectedStableAmount, onAttempt)
	if err != nil {
		if errors.Is(err, domain.ErrBridgeTimeout) {
			// Funds may still arrive; keep the checkpoint for a later Resume.
			logger.Warn("settlement window exhausted, keeping checkpoint")
			return domain.OrderResult{}, err
		}
		return domain.OrderResult{}, e.failResumable(ctx, logger, bet, err)
	}
	e.publishState(ctx, domain.StateSettled, bet.MarketSlug, runID)
	logger.Info("funds settled", slog.String("received_units", received.String()))

	from, err := e.provider.Address(ctx)
	if err != nil {
		return domain.OrderResult{}, e.failResumable(ctx, logger, bet, fmt.Errorf("workflow: wallet address: %w", err))
	}

	// Price the order off the live book, then the midpoint, then the
	// reference price captured when the user picked the outcome.
	execPrice := bet.ReferencePrice
	if book, err := e.exchange.GetOrderBook(ctx, bet.TokenID); err == nil {
		execPrice = book.BestPrice(domain.OrderSideBuy)
	} else if mid, midErr := e.exchange.GetMidpoint(ctx, bet.TokenID); midErr == nil {
		execPrice = mid
	} else {
		logger.Warn("order book unavailable, using reference price",
			slog.String("error", err.Error()))
	}

	o, err := e.builder.Build(bet.TokenID, domain.OrderSideBuy, execPrice, bet.ExpectedStableAmount, bet.DestinationProxy, from.Hex())
	if err != nil {
		return domain.OrderResult{}, e.failResumable(ctx, logger, bet, err)
	}

	signed, err := e.signer.Sign(ctx, e.provider, o)
	if err != nil {
		if errors.Is(err, domain.ErrUserRejected) {
			// Funds are on the proxy and the checkpoint is still valid; the
			// user may approve on the next attempt.
			logger.Warn("user declined order signature, keeping checkpoint")
			return domain.OrderResult{}, err
		}
		return domain.OrderResult{}, e.failResumable(ctx, logger, bet, err)
	}
	e.publishState(ctx, domain.StateOrderSigned, bet.MarketSlug, runID)

	var creds *domain.APICredentials
	if e.creds != nil {
		if c, err := e.creds.Get(ctx, from.Hex()); err == nil {
			creds = &c
		}
	}

	result, err := e.exchange.PostOrder(ctx, signed, creds)
	if err != nil {
		if rejected, ok := domain.AsOrderRejected(err); ok {
			// A resume rebuilds the order with a fresh salt and nonce, so the
			// rejected signature costs nothing; the checkpoint stays.
			logger.Error("order rejected by exchange", slog.String("reason", rejected.Reason))
			return result, e.failResumable(ctx, logger, bet, err)
		}
		// Submission may have failed before reaching the exchange; keep the
		// checkpoint so the signed state can be retried.
		logger.Warn("order submission failed, keeping checkpoint", slog.String("error", err.Error()))
		return domain.OrderResult{}, err
	}

	// Submission success is the single point that consumes the checkpoint.
	if err := e.checkpoints.Delete(ctx); err != nil {
		logger.Error("checkpoint cleanup failed", slog.String("error", err.Error()))
	}
	e.publishState(ctx, domain.StateOrderSubmitted, bet.MarketSlug, runID)
	e.notify(ctx, notify.Event{
		Kind:   notify.EventBetPlaced,
		Market: bet.MarketSlug,
		Detail: fmt.Sprintf("%s at %.2f for %.2f USDC, potential payout %.2f USDC (order %s)",
			bet.OutcomeLabel, execPrice, bet.ExpectedStableAmount,
			domain.Payout(bet.ExpectedStableAmount, execPrice), result.OrderID),
		BridgeTxHash: bet.BridgeTxHash,
	})
	logger.Info("order submitted",
		slog.String("order_id", result.OrderID),
		slog.String("status", result.Status))
	return result, nil
}

// ensureChain switches the wallet to spec's network unless it is already
// there, then waits for the wallet to report the new chain.
func (e *Engine) ensureChain(ctx context.Context, spec domain.ChainSpec) error {
	current, err := e.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("workflow: read chain id: %w", err)
	}
	if current == spec.ID {
		return nil
	}
	if err := e.provider.SwitchChain(ctx, spec); err != nil {
		return err
	}
	return e.watcher.WaitForChain(ctx, spec.ID)
}

// fail marks a failure before any checkpoint was written. Nothing durable
// exists yet, so there is nothing to preserve; the error is published,
// notified and returned for the caller to propagate.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, market string, err error) error {
	e.publishState(ctx, domain.StateFailed, market, "")
	e.notify(ctx, notify.Event{
		Kind:   notify.EventWorkflowFailed,
		Market: market,
		Detail: err.Error(),
	})
	logger.Error("workflow failed", slog.String("error", err.Error()))
	return err
}

// failResumable marks a failure after the bridge leg. The funds are already
// on their way to the proxy, so the checkpoint is never consumed here; only
// a successful submission (or a staleness discard) clears it. The bridge tx
// hash rides along so the failure can be traced on-chain.
func (e *Engine) failResumable(ctx context.Context, logger *slog.Logger, bet domain.PendingBet, err error) error {
	e.publishState(ctx, domain.StateFailed, bet.MarketSlug, "")
	e.notify(ctx, notify.Event{
		Kind:         notify.EventWorkflowFailed,
		Market:       bet.MarketSlug,
		Detail:       err.Error(),
		BridgeTxHash: bet.BridgeTxHash,
		Resumable:    true,
	})
	logger.Error("workflow failed, checkpoint kept",
		slog.String("bridge_tx", bet.BridgeTxHash),
		slog.String("error", err.Error()))
	return err
}

func (e *Engine) publishState(ctx context.Context, state domain.WorkflowState, market, runID string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, domain.Signal{
		Channel: "workflow.state",
		Payload: map[string]any{
			"state":  string(state),
			"market": market,
			"runId":  runID,
		},
		At: time.Now(),
	})
}

// publishProgress surfaces one settlement poll so the UI can show that the
// bridge is still being watched.
func (e *Engine) publishProgress(ctx context.Context, market, runID string, attempt int, elapsed time.Duration) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, domain.Signal{
		Channel: "workflow.settle_progress",
		Payload: map[string]any{
			"market":         market,
			"runId":          runID,
			"attempt":        attempt,
			"maxAttempts":    e.cfg.SettleMaxAttempts,
			"elapsedSeconds": int64(elapsed.Seconds()),
		},
		At: time.Now(),
	})
}

func (e *Engine) notify(ctx context.Context, ev notify.Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return false
	}
	e.active = true
	return true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
}

func bnbToWei(amount float64) *big.Int {
	wei := new(big.Float).Mul(new(big.Float).SetFloat64(amount), weiPerBNB)
	n, _ := wei.Int(nil)
	return n
}

func weiToFloat(n *big.Int, decimals int) float64 {
	f := new(big.Float).SetInt(n)
	scale := new(big.Float).SetFloat64(1)
	for i := 0; i < decimals; i++ {
		scale.Mul(scale, big.NewFloat(10))
	}
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}
