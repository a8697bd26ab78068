package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parivision/bridgebet/internal/bridge"
	"github.com/parivision/bridgebet/internal/config"
	"github.com/parivision/bridgebet/internal/crypto"
	"github.com/parivision/bridgebet/internal/dex"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/order"
	"github.com/parivision/bridgebet/internal/price"
	"github.com/parivision/bridgebet/internal/proxywallet"
	"github.com/parivision/bridgebet/internal/server"
	"github.com/parivision/bridgebet/internal/server/handler"
	"github.com/parivision/bridgebet/internal/server/ws"
	"github.com/parivision/bridgebet/internal/settle"
	"github.com/parivision/bridgebet/internal/wallet"
	"github.com/parivision/bridgebet/internal/workflow"
)

// chainWatchInterval is how often the wallet's reported chain is polled.
const chainWatchInterval = 2 * time.Second

// ServerMode serves market data, configuration and the WebSocket feed
// without a wallet connection. Betting endpoints are not registered.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(ws.Config{Mode: a.cfg.Mode, StartedAt: time.Now().UTC()}, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	a.startHTTPServer(ctx, g, server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(deps.Gamma, a.cfg.Server.MarketLimit, a.logger),
		Orders:  handler.NewOrderHandler(deps.Clob, deps.Credentials, a.logger),
		Config:  handler.NewConfigHandler(*a.cfg, a.logger),
	}, hub)

	return g.Wait()
}

// FullMode runs everything: the HTTP API, the WebSocket hub, the price
// oracle, the wallet chain watcher, and the bridge-and-bet workflow. On
// startup it attempts to resume a checkpointed bet.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(ws.Config{Mode: a.cfg.Mode, StartedAt: time.Now().UTC()}, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Wallet bridge.
	provider, err := wallet.Dial(ctx, a.cfg.Wallet.ProviderURL, a.logger)
	if err != nil {
		return err
	}
	watcher := wallet.NewChainWatcher(provider, chainWatchInterval, a.logger)

	// Price oracle.
	oracle := price.NewOracle(a.cfg.Price, deps.PriceCache, a.logger)
	g.Go(func() error {
		err := oracle.Run(ctx, hub)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	engine := a.buildEngine(deps, provider, watcher, oracle, hub)

	// When the wallet lands on the destination chain and a checkpoint is
	// waiting, pick it up. Resume is a no-op while a workflow is active, so
	// this cannot collide with an in-flight bet's own network switch.
	watcher.OnChange = func(chainID int64) {
		if chainID != a.cfg.Polygon.ChainID {
			return
		}
		go func() {
			has, err := engine.HasPending(ctx)
			if err != nil || !has {
				return
			}
			if _, err := engine.Resume(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WarnContext(ctx, "chain-change resume did not complete",
					slog.String("error", err.Error()),
				)
			}
		}()
	}
	g.Go(func() error {
		watcher.Watch(ctx, hub)
		return nil
	})

	// Resume a checkpointed bet left over from a previous run. Failures are
	// logged, not fatal: the checkpoint survives for a manual resume.
	g.Go(func() error {
		if _, err := engine.Resume(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WarnContext(ctx, "startup resume did not complete",
				slog.String("error", err.Error()),
			)
		}
		return nil
	})

	a.startHTTPServer(ctx, g, server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(deps.Gamma, a.cfg.Server.MarketLimit, a.logger),
		Bets:    handler.NewBetHandler(engine, deps.Checkpoints, a.logger),
		Orders:  handler.NewOrderHandler(deps.Clob, deps.Credentials, a.logger),
		Proxies: handler.NewProxyHandler(a.newResolver(deps), a.logger),
		Config:  handler.NewConfigHandler(*a.cfg, a.logger),
	}, hub)

	return g.Wait()
}

// ----- Internal helpers -----

func (a *App) newResolver(deps *Dependencies) *proxywallet.Resolver {
	return proxywallet.NewResolver(
		deps.Proxies,
		deps.Clob,
		deps.DestinationChain,
		a.cfg.Polygon.ProxyFactory,
		a.logger,
	)
}

// buildEngine assembles the workflow engine from the wired dependencies.
func (a *App) buildEngine(deps *Dependencies, provider wallet.Provider, watcher *wallet.ChainWatcher, oracle *price.Oracle, hub *ws.Hub) *workflow.Engine {
	cfg := a.cfg

	dexRouter := dex.NewRouter(
		deps.SourceChain,
		cfg.BSC.DexRouter,
		cfg.BSC.WrappedNative,
		cfg.BSC.Stable,
		cfg.Workflow.SwapDeadline.Duration,
		a.logger,
	)
	bridgeRouter := bridge.NewRouter(
		deps.SourceChain,
		cfg.BSC.BridgeRouter,
		cfg.BSC.Stable,
		cfg.Bridge,
		a.logger,
	)
	poller := settle.NewPoller(
		deps.DestinationChain,
		cfg.Polygon.Stable,
		cfg.Workflow.SettleInterval.Duration,
		cfg.Workflow.SettleMaxAttempts,
		cfg.Workflow.SettleTolerance,
		a.logger,
	)
	exchangeDomain := crypto.DefaultExchangeDomain(int64(cfg.Polymarket.ChainID), cfg.Polygon.CTFExchange)

	return workflow.NewEngine(cfg.Workflow, workflow.Deps{
		Provider:    provider,
		Watcher:     watcher,
		Dex:         dexRouter,
		Bridge:      bridgeRouter,
		Settle:      poller,
		Oracle:      oracle,
		Resolver:    a.newResolver(deps),
		Builder:     order.NewBuilder(),
		Signer:      order.NewSigner(exchangeDomain, a.logger),
		Exchange:    deps.Clob,
		Checkpoints: deps.Checkpoints,
		Creds:       deps.Credentials,
		Bus:         hub,
		Notifier:    deps.Notifier,
		Source:      chainSpec(cfg.BSC),
		Destination: chainSpec(cfg.Polygon),
	}, a.logger)
}

// startHTTPServer launches the API server and ties its shutdown to ctx.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, handlers server.Handlers, hub *ws.Hub) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func chainSpec(c config.ChainConfig) domain.ChainSpec {
	return domain.ChainSpec{
		ID:             c.ChainID,
		Name:           c.Name,
		CurrencyName:   c.Currency,
		CurrencySymbol: c.Currency,
		RPCURL:         c.RPC,
		ExplorerURL:    c.Explorer,
	}
}
