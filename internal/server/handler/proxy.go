package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parivision/bridgebet/internal/domain"
)

// ProxyService resolves and manages exchange proxy wallets.
type ProxyService interface {
	Resolve(ctx context.Context, userAddress string) (string, error)
	SetManual(ctx context.Context, userAddress, proxyAddress string) error
	Forget(ctx context.Context, userAddress string) error
}

// ProxyHandler serves proxy wallet resolution endpoints.
type ProxyHandler struct {
	proxies ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(proxies ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{proxies: proxies, logger: logger}
}

// GetProxy resolves the exchange proxy wallet for a user address.
// GET /api/proxy-wallet/{address}
func (h *ProxyHandler) GetProxy(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	proxy, err := h.proxies.Resolve(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrProxyNotConfigured) {
			writeError(w, http.StatusNotFound, "proxy wallet not configured")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: proxy resolution failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to resolve proxy wallet")
		return
	}

	writeData(w, http.StatusOK, map[string]string{"proxyWallet": proxy})
}

// setProxyRequest is the JSON body for PUT /api/proxy-wallet/{address}.
type setProxyRequest struct {
	ProxyWallet string `json:"proxyWallet"`
}

// SetProxy records a user-supplied proxy wallet after verifying it is a
// deployed contract.
// PUT /api/proxy-wallet/{address}
func (h *ProxyHandler) SetProxy(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	var req setProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProxyWallet == "" {
		writeError(w, http.StatusBadRequest, "proxyWallet is required")
		return
	}

	if err := h.proxies.SetManual(r.Context(), address, req.ProxyWallet); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeData(w, http.StatusOK, map[string]string{"proxyWallet": req.ProxyWallet})
}

// ForgetProxy drops the cached proxy for a user address, forcing the next
// resolution to go back to the exchange.
// DELETE /api/proxy-wallet/{address}
func (h *ProxyHandler) ForgetProxy(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	if err := h.proxies.Forget(r.Context(), address); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: forget proxy failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to forget proxy wallet")
		return
	}

	writeData(w, http.StatusOK, nil)
}
