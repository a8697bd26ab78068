package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/parivision/bridgebet/internal/config"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/notify"
	"github.com/parivision/bridgebet/internal/platform/polymarket"
	"github.com/parivision/bridgebet/internal/price"
	"github.com/parivision/bridgebet/internal/store/file"
	"github.com/parivision/bridgebet/internal/store/redis"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Durable state
	Checkpoints domain.CheckpointStore
	Proxies     domain.ProxyStore
	Credentials domain.CredentialStore
	PriceCache  price.Cache // nil without redis

	// Exchange clients
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient

	// Chain clients (read-only JSON-RPC, not the wallet)
	SourceChain      *ethclient.Client
	DestinationChain *ethclient.Client

	// Notifications
	Notifier *notify.Notifier
}

// needsChains reports whether the mode talks to the chains at all. Server
// mode only serves market data and never dials an RPC endpoint.
func needsChains(mode string) bool {
	return mode == "full"
}

// Wire constructs the concrete dependency implementations from the given
// configuration and returns them with a cleanup function to be called on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Durable state: Redis when enabled, a local file otherwise ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Checkpoints = redis.NewCheckpointStore(redisClient)
		deps.Proxies = redis.NewProxyStore(redisClient)
		deps.Credentials = redis.NewCredentialStore(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient)
	} else {
		deps.Checkpoints = file.NewCheckpointStore(cfg.Workflow.CheckpointPath)
		registry := file.NewRegistry(filepath.Join(filepath.Dir(cfg.Workflow.CheckpointPath), "registry.json"))
		deps.Proxies = registry
		deps.Credentials = file.CredentialView{Registry: registry}
	}

	// --- Exchange clients ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost)

	// --- Chain RPC clients ---
	if needsChains(cfg.Mode) {
		src, err := ethclient.DialContext(ctx, cfg.BSC.RPC)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: dial %s rpc: %w", cfg.BSC.Name, err)
		}
		closers = append(closers, src.Close)
		deps.SourceChain = src

		dst, err := ethclient.DialContext(ctx, cfg.Polygon.RPC)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: dial %s rpc: %w", cfg.Polygon.Name, err)
		}
		closers = append(closers, dst.Close)
		deps.DestinationChain = dst
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
