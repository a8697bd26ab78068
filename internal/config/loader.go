package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PARIVISION_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PARIVISION_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── BSC ──
	setInt64(&cfg.BSC.ChainID, "PARIVISION_BSC_CHAIN_ID")
	setStr(&cfg.BSC.RPC, "PARIVISION_BSC_RPC")
	setStr(&cfg.BSC.DexRouter, "PARIVISION_BSC_DEX_ROUTER")
	setStr(&cfg.BSC.WrappedNative, "PARIVISION_BSC_WRAPPED_NATIVE")
	setStr(&cfg.BSC.Stable, "PARIVISION_BSC_STABLE")
	setStr(&cfg.BSC.BridgeRouter, "PARIVISION_BSC_BRIDGE_ROUTER")

	// ── Polygon ──
	setInt64(&cfg.Polygon.ChainID, "PARIVISION_POLYGON_CHAIN_ID")
	setStr(&cfg.Polygon.RPC, "PARIVISION_POLYGON_RPC")
	setStr(&cfg.Polygon.Stable, "PARIVISION_POLYGON_STABLE")
	setStr(&cfg.Polygon.BridgeRouter, "PARIVISION_POLYGON_BRIDGE_ROUTER")
	setStr(&cfg.Polygon.CTFExchange, "PARIVISION_POLYGON_CTF_EXCHANGE")
	setStr(&cfg.Polygon.ProxyFactory, "PARIVISION_POLYGON_PROXY_FACTORY")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "PARIVISION_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "PARIVISION_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.ChainID, "PARIVISION_POLYMARKET_CHAIN_ID")

	// ── Bridge ──
	setInt64(&cfg.Bridge.SrcPoolID, "PARIVISION_BRIDGE_SRC_POOL_ID")
	setInt64(&cfg.Bridge.DstPoolID, "PARIVISION_BRIDGE_DST_POOL_ID")
	setInt64(&cfg.Bridge.SlippageBps, "PARIVISION_BRIDGE_SLIPPAGE_BPS")

	// ── Price ──
	setDuration(&cfg.Price.RefreshInterval, "PARIVISION_PRICE_REFRESH_INTERVAL")
	setFloat64(&cfg.Price.FallbackUSD, "PARIVISION_PRICE_FALLBACK_USD")

	// ── Workflow ──
	setInt64(&cfg.Workflow.SwapSlippageBps, "PARIVISION_WORKFLOW_SWAP_SLIPPAGE_BPS")
	setDuration(&cfg.Workflow.SwapDeadline, "PARIVISION_WORKFLOW_SWAP_DEADLINE")
	setDuration(&cfg.Workflow.StalenessWindow, "PARIVISION_WORKFLOW_STALENESS_WINDOW")
	setDuration(&cfg.Workflow.SettleInterval, "PARIVISION_WORKFLOW_SETTLE_INTERVAL")
	setInt(&cfg.Workflow.SettleMaxAttempts, "PARIVISION_WORKFLOW_SETTLE_MAX_ATTEMPTS")
	setFloat64(&cfg.Workflow.SettleTolerance, "PARIVISION_WORKFLOW_SETTLE_TOLERANCE")
	setStr(&cfg.Workflow.CheckpointPath, "PARIVISION_WORKFLOW_CHECKPOINT_PATH")

	// ── Wallet ──
	setStr(&cfg.Wallet.ProviderURL, "PARIVISION_WALLET_PROVIDER_URL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PARIVISION_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PARIVISION_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PARIVISION_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PARIVISION_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PARIVISION_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PARIVISION_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PARIVISION_REDIS_TLS_ENABLED")

	// ── Server ──
	setInt(&cfg.Server.Port, "PARIVISION_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PARIVISION_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.MarketLimit, "PARIVISION_SERVER_MARKET_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PARIVISION_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PARIVISION_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PARIVISION_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PARIVISION_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PARIVISION_MODE")
	setStr(&cfg.LogLevel, "PARIVISION_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
