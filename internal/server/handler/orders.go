package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parivision/bridgebet/internal/domain"
)

// UserOrderService fetches a user's open orders from the exchange.
type UserOrderService interface {
	GetUserOrders(ctx context.Context, address string, creds *domain.APICredentials) (json.RawMessage, error)
}

// OrderHandler serves the user order listing endpoint.
type OrderHandler struct {
	orders UserOrderService
	creds  domain.CredentialStore // optional
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler. creds may be nil, in which case
// requests go out unauthenticated.
func NewOrderHandler(orders UserOrderService, creds domain.CredentialStore, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, creds: creds, logger: logger}
}

// ListUserOrders returns the exchange's open orders for a maker address,
// passed through verbatim.
// GET /api/user-orders/{address}
func (h *OrderHandler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	var creds *domain.APICredentials
	if h.creds != nil {
		if c, err := h.creds.Get(r.Context(), address); err == nil {
			creds = &c
		}
	}

	orders, err := h.orders.GetUserOrders(r.Context(), address, creds)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "exchange credentials missing or expired")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list user orders failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch orders")
		return
	}

	writeData(w, http.StatusOK, orders)
}
