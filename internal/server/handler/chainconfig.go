package handler

import (
	"log/slog"
	"net/http"

	"github.com/parivision/bridgebet/internal/config"
)

// ConfigHandler exposes the chain and contract configuration the wallet UI
// needs to render network prompts and explorer links.
type ConfigHandler struct {
	cfg    config.Config
	logger *slog.Logger
}

// NewConfigHandler creates a ConfigHandler.
func NewConfigHandler(cfg config.Config, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, logger: logger}
}

// GetConfig returns the public chain configuration.
// GET /api/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"bsc":     chainView(h.cfg.BSC),
		"polygon": chainView(h.cfg.Polygon),
		"polymarket": map[string]any{
			"chainId":     h.cfg.Polymarket.ChainID,
			"ctfExchange": h.cfg.Polygon.CTFExchange,
		},
	})
}

func chainView(c config.ChainConfig) map[string]any {
	return map[string]any{
		"chainId":       c.ChainID,
		"name":          c.Name,
		"rpc":           c.RPC,
		"currency":      c.Currency,
		"explorer":      c.Explorer,
		"dexRouter":     c.DexRouter,
		"wrappedNative": c.WrappedNative,
		"stable":        c.Stable,
		"bridgeRouter":  c.BridgeRouter,
	}
}
