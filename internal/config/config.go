// Package config defines the top-level configuration for the bridge-and-bet
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PARIVISION_* environment
// variables.
type Config struct {
	BSC        ChainConfig      `toml:"bsc"`
	Polygon    ChainConfig      `toml:"polygon"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Bridge     BridgeConfig     `toml:"bridge"`
	Price      PriceConfig      `toml:"price"`
	Workflow   WorkflowConfig   `toml:"workflow"`
	Wallet     WalletConfig     `toml:"wallet"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ChainConfig holds the parameters of one EVM network, including every
// pre-deployed contract the workflow touches on it. Addresses are plain
// hex strings; they are operational config, not secrets.
type ChainConfig struct {
	ChainID       int64  `toml:"chain_id"`
	Name          string `toml:"name"`
	RPC           string `toml:"rpc"`
	Currency      string `toml:"currency"`
	Explorer      string `toml:"explorer"`
	DexRouter     string `toml:"dex_router"`     // PancakeSwap router (BSC)
	WrappedNative string `toml:"wrapped_native"` // WBNB (BSC)
	Stable        string `toml:"stable"`         // USDT on BSC, USDC on Polygon
	BridgeRouter  string `toml:"bridge_router"`  // Stargate router
	CTFExchange   string `toml:"ctf_exchange"`   // Polygon only
	ProxyFactory  string `toml:"proxy_factory"`  // Polygon only
}

// PolymarketConfig holds exchange API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	ChainID   int    `toml:"chain_id"`
}

// BridgeConfig holds Stargate routing parameters and slippage bounds.
type BridgeConfig struct {
	DstChainID  uint16 `toml:"dst_chain_id"` // Stargate chain id, not EVM id
	SrcPoolID   int64  `toml:"src_pool_id"`
	DstPoolID   int64  `toml:"dst_pool_id"`
	SlippageBps int64  `toml:"slippage_bps"`
}

// PriceConfig holds the reference price oracle parameters.
type PriceConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	FallbackUSD     float64  `toml:"fallback_usd"` // seed value before first fetch
	CoinGeckoURL    string   `toml:"coingecko_url"`
	BinanceURL      string   `toml:"binance_url"`
	CoinCapURL      string   `toml:"coincap_url"`
}

// WorkflowConfig bounds the orchestration state machine.
type WorkflowConfig struct {
	SwapSlippageBps   int64    `toml:"swap_slippage_bps"`
	SwapDeadline      duration `toml:"swap_deadline"`
	StalenessWindow   duration `toml:"staleness_window"`
	SettleInterval    duration `toml:"settle_interval"`
	SettleMaxAttempts int      `toml:"settle_max_attempts"`
	SettleTolerance   float64  `toml:"settle_tolerance"`
	CheckpointPath    string   `toml:"checkpoint_path"` // file fallback when redis is disabled
}

// WalletConfig points at the external wallet provider bridge. The service
// never holds keys; every signature and transaction goes through this
// JSON-RPC endpoint.
type WalletConfig struct {
	ProviderURL string `toml:"provider_url"`
}

// RedisConfig holds Redis connection parameters. When Enabled is false the
// checkpoint falls back to file storage and caches are kept in memory.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	MarketLimit int      `toml:"market_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with mainnet values. These match
// config.example.toml.
func Defaults() Config {
	return Config{
		BSC: ChainConfig{
			ChainID:       56,
			Name:          "BSC Mainnet",
			RPC:           "https://bsc-dataseed.binance.org",
			Currency:      "BNB",
			Explorer:      "https://bscscan.com",
			DexRouter:     "0x10ED43C718714eb63d5aA57B78B54704E256024E",
			WrappedNative: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
			Stable:        "0x55d398326f99059fF775485246999027B3197955",
			BridgeRouter:  "0x4a364f8c717cAAD9A442737Eb7b8A55cc6cf18D8",
		},
		Polygon: ChainConfig{
			ChainID:      137,
			Name:         "Polygon Mainnet",
			RPC:          "https://polygon-rpc.com",
			Currency:     "MATIC",
			Explorer:     "https://polygonscan.com",
			Stable:       "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
			BridgeRouter: "0x45A01E4e04F14f7A4a6702c74187c5F6222033cd",
			CTFExchange:  "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
			ProxyFactory: "0x91E9382983B5CD5F2F46e19B0EF93A3C816F0D39",
		},
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			ChainID:   137,
		},
		Bridge: BridgeConfig{
			DstChainID:  109, // Stargate id for Polygon
			SrcPoolID:   2,   // USDT pool on BSC
			DstPoolID:   1,   // USDC pool on Polygon
			SlippageBps: 200,
		},
		Price: PriceConfig{
			RefreshInterval: duration{30 * time.Second},
			FallbackUSD:     600,
			CoinGeckoURL:    "https://api.coingecko.com/api/v3/simple/price?ids=binancecoin&vs_currencies=usd",
			BinanceURL:      "https://api.binance.com/api/v3/ticker/price?symbol=BNBUSDT",
			CoinCapURL:      "https://api.coincap.io/v2/assets/binance-coin",
		},
		Workflow: WorkflowConfig{
			SwapSlippageBps:   200,
			SwapDeadline:      duration{10 * time.Minute},
			StalenessWindow:   duration{10 * time.Minute},
			SettleInterval:    duration{30 * time.Second},
			SettleMaxAttempts: 20,
			SettleTolerance:   0.9,
			CheckpointPath:    "data/pending_bet.json",
		},
		Wallet: WalletConfig{
			ProviderURL: "ws://localhost:8546",
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Port:        3000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MarketLimit: 150,
		},
		Notify: NotifyConfig{
			Events: []string{"bridge_initiated", "bet_placed", "workflow_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true, // markets + order proxy only, no wallet workflow
	"full":   true, // server plus the bridge-and-bet engine
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chains
	for _, chain := range []struct {
		name string
		cfg  *ChainConfig
	}{{"bsc", &c.BSC}, {"polygon", &c.Polygon}} {
		if chain.cfg.ChainID <= 0 {
			errs = append(errs, chain.name+": chain_id must be positive")
		}
		if chain.cfg.RPC == "" {
			errs = append(errs, chain.name+": rpc must not be empty")
		}
		if chain.cfg.Stable == "" {
			errs = append(errs, chain.name+": stable token address must not be empty")
		}
	}
	if c.BSC.DexRouter == "" {
		errs = append(errs, "bsc: dex_router must not be empty")
	}
	if c.BSC.WrappedNative == "" {
		errs = append(errs, "bsc: wrapped_native must not be empty")
	}
	if c.BSC.BridgeRouter == "" {
		errs = append(errs, "bsc: bridge_router must not be empty")
	}
	if c.Polygon.CTFExchange == "" {
		errs = append(errs, "polygon: ctf_exchange must not be empty")
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}

	// Bridge
	if c.Bridge.DstChainID == 0 {
		errs = append(errs, "bridge: dst_chain_id must be set")
	}
	if c.Bridge.SlippageBps < 0 || c.Bridge.SlippageBps > 10000 {
		errs = append(errs, fmt.Sprintf("bridge: slippage_bps must be 0-10000, got %d", c.Bridge.SlippageBps))
	}

	// Workflow
	if c.Workflow.SwapSlippageBps < 0 || c.Workflow.SwapSlippageBps > 10000 {
		errs = append(errs, fmt.Sprintf("workflow: swap_slippage_bps must be 0-10000, got %d", c.Workflow.SwapSlippageBps))
	}
	if c.Workflow.StalenessWindow.Duration <= 0 {
		errs = append(errs, "workflow: staleness_window must be > 0")
	}
	if c.Workflow.SettleMaxAttempts < 1 {
		errs = append(errs, "workflow: settle_max_attempts must be >= 1")
	}
	if c.Workflow.SettleTolerance <= 0 || c.Workflow.SettleTolerance > 1 {
		errs = append(errs, "workflow: settle_tolerance must be in (0, 1]")
	}
	if !c.Redis.Enabled && c.Workflow.CheckpointPath == "" {
		errs = append(errs, "workflow: checkpoint_path is required when redis is disabled")
	}

	// Wallet — required for the full mode, which drives transactions.
	if strings.ToLower(c.Mode) == "full" && c.Wallet.ProviderURL == "" {
		errs = append(errs, "wallet: provider_url is required for mode full")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
