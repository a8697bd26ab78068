package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parivision/bridgebet/internal/domain"
)

// MarketService defines what the market handler needs from the Gamma
// client. It is declared locally so the handler package does not depend on
// the concrete platform client.
type MarketService interface {
	GetEvents(ctx context.Context, limit int) ([]domain.Event, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error)
}

// MarketHandler serves market browsing endpoints.
type MarketHandler struct {
	markets MarketService
	limit   int // default page size for the event list
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, limit int, logger *slog.Logger) *MarketHandler {
	if limit <= 0 {
		limit = 100
	}
	return &MarketHandler{
		markets: markets,
		limit:   limit,
		logger:  logger,
	}
}

// ListEvents returns active markets grouped into events, sorted by volume.
// GET /api/markets?limit=100
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, h.limit, 500)

	events, err := h.markets.GetEvents(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch markets")
		return
	}

	writeData(w, http.StatusOK, events)
}

// GetMarket returns a single market by its ID, falling back to a slug
// lookup when the ID is unknown.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		market, err = h.markets.GetMarketBySlug(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch market")
		return
	}

	writeData(w, http.StatusOK, market)
}
