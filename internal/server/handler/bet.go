package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parivision/bridgebet/internal/domain"
)

// BetService is the workflow surface the bet handler drives.
type BetService interface {
	Quote(ctx context.Context, amountBNB float64) (domain.Quote, error)
	PlaceBet(ctx context.Context, req domain.BetRequest) (domain.OrderResult, error)
	Resume(ctx context.Context) (domain.OrderResult, error)
	HasPending(ctx context.Context) (bool, error)
}

// BetHandler serves the bet placement and resume endpoints.
type BetHandler struct {
	bets        BetService
	checkpoints domain.CheckpointStore
	logger      *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, checkpoints domain.CheckpointStore, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:        bets,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// placeOrderRequest is the JSON body for POST /api/place-order.
type placeOrderRequest struct {
	MarketSlug     string  `json:"marketSlug"`
	MarketQuestion string  `json:"marketQuestion"`
	TokenID        string  `json:"tokenId"`
	Outcome        string  `json:"outcome"`
	Price          float64 `json:"price"`
	AmountBNB      float64 `json:"amountBnb"`
}

// PlaceOrder runs the full bridge-and-bet workflow for the requested
// outcome. The request blocks until the order is submitted or the workflow
// parks on its checkpoint.
// POST /api/place-order
func (h *BetHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TokenID == "" || req.MarketSlug == "" {
		writeError(w, http.StatusBadRequest, "marketSlug and tokenId are required")
		return
	}
	if req.AmountBNB <= 0 {
		writeError(w, http.StatusBadRequest, "amountBnb must be positive")
		return
	}

	result, err := h.bets.PlaceBet(r.Context(), domain.BetRequest{
		MarketSlug:     req.MarketSlug,
		MarketQuestion: req.MarketQuestion,
		TokenID:        req.TokenID,
		OutcomeLabel:   req.Outcome,
		OutcomePrice:   req.Price,
		AmountBNB:      req.AmountBNB,
		Side:           domain.OrderSideBuy,
	})
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"orderId": result.OrderID,
		"status":  result.Status,
	})
}

// quoteRequest is the JSON body for POST /api/quote.
type quoteRequest struct {
	AmountBNB float64 `json:"amountBnb"`
}

// Quote estimates the USDC a stake would deliver, without moving funds.
// POST /api/quote
func (h *BetHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.bets.Quote(r.Context(), req.AmountBNB)
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"inputAmount":  quote.InputAmount,
		"inputAsset":   quote.InputAsset,
		"outputAmount": quote.OutputAmount,
		"outputAsset":  quote.OutputAsset,
		"feeEstimate":  quote.FeeEstimate,
	})
}

// PendingBet returns the current checkpoint, if any, so the UI can offer a
// resume prompt after a reload.
// GET /api/pending-bet
func (h *BetHandler) PendingBet(w http.ResponseWriter, r *http.Request) {
	bet, err := h.checkpoints.Load(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		writeData(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load checkpoint failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load pending bet")
		return
	}
	writeData(w, http.StatusOK, bet)
}

// Resume completes a checkpointed bet.
// POST /api/resume
func (h *BetHandler) Resume(w http.ResponseWriter, r *http.Request) {
	result, err := h.bets.Resume(r.Context())
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}
	if result.OrderID == "" {
		// Nothing to resume.
		writeData(w, http.StatusOK, nil)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"orderId": result.OrderID,
		"status":  result.Status,
	})
}

// writeWorkflowError maps workflow errors to HTTP statuses, surfacing
// exchange rejection reasons verbatim.
func (h *BetHandler) writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	if rejected, ok := domain.AsOrderRejected(err); ok {
		writeError(w, http.StatusUnprocessableEntity, rejected.Reason)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUserRejected):
		writeError(w, http.StatusConflict, "wallet request rejected by user")
	case errors.Is(err, domain.ErrProxyNotConfigured):
		writeError(w, http.StatusPreconditionFailed, "proxy wallet not configured")
	case errors.Is(err, domain.ErrCheckpointStale):
		writeError(w, http.StatusGone, "pending bet expired and was discarded")
	case errors.Is(err, domain.ErrBridgeTimeout):
		writeError(w, http.StatusAccepted, "bridge settlement still pending, retry resume later")
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient funds")
	default:
		h.logger.ErrorContext(r.Context(), "handler: workflow failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
