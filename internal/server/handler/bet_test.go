package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parivision/bridgebet/internal/domain"
)

func TestPlaceOrder_Success(t *testing.T) {
	svc := &stubBetService{
		result: domain.OrderResult{Success: true, OrderID: "ord-1", Status: "matched"},
	}
	h := NewBetHandler(svc, &stubCheckpoints{}, discardLogger())

	body := `{"marketSlug":"will-it-rain","tokenId":"101","outcome":"Yes","price":0.4,"amountBnb":0.1}`
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, httptest.NewRequest(http.MethodPost, "/api/place-order", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data.OrderID != "ord-1" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if svc.req.OutcomeLabel != "Yes" || svc.req.AmountBNB != 0.1 {
		t.Fatalf("request not passed through: %+v", svc.req)
	}
}

func TestPlaceOrder_ValidatesBody(t *testing.T) {
	h := NewBetHandler(&stubBetService{}, &stubCheckpoints{}, discardLogger())

	cases := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"missing token", `{"marketSlug":"x","amountBnb":1}`},
		{"zero amount", `{"marketSlug":"x","tokenId":"1","amountBnb":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.PlaceOrder(rec, httptest.NewRequest(http.MethodPost, "/api/place-order", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
}

func TestPlaceOrder_RejectionReasonPassedThrough(t *testing.T) {
	svc := &stubBetService{err: &domain.OrderRejectedError{Reason: "Order expired"}}
	h := NewBetHandler(svc, &stubCheckpoints{}, discardLogger())

	body := `{"marketSlug":"will-it-rain","tokenId":"101","amountBnb":0.1}`
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, httptest.NewRequest(http.MethodPost, "/api/place-order", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "Order expired" {
		t.Fatalf("error = %q, want exchange reason verbatim", resp.Error)
	}
}

func TestPendingBet_EmptyAndPresent(t *testing.T) {
	cp := &stubCheckpoints{}
	h := NewBetHandler(&stubBetService{}, cp, discardLogger())

	rec := httptest.NewRecorder()
	h.PendingBet(rec, httptest.NewRequest(http.MethodGet, "/api/pending-bet", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":null`) {
		t.Fatalf("expected null data, got %s", rec.Body.String())
	}

	cp.bet = &domain.PendingBet{MarketSlug: "will-it-rain", State: domain.StateSourceBridged}
	rec = httptest.NewRecorder()
	h.PendingBet(rec, httptest.NewRequest(http.MethodGet, "/api/pending-bet", nil))
	if !strings.Contains(rec.Body.String(), `"marketSlug":"will-it-rain"`) {
		t.Fatalf("expected checkpoint in response, got %s", rec.Body.String())
	}
}

// ----- Test fixtures -----

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBetService struct {
	req    domain.BetRequest
	result domain.OrderResult
	err    error
}

func (s *stubBetService) Quote(ctx context.Context, amountBNB float64) (domain.Quote, error) {
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	return domain.Quote{InputAmount: amountBNB, InputAsset: "BNB", OutputAsset: "USDC"}, nil
}

func (s *stubBetService) PlaceBet(ctx context.Context, req domain.BetRequest) (domain.OrderResult, error) {
	s.req = req
	if s.err != nil {
		return domain.OrderResult{}, s.err
	}
	return s.result, nil
}

func (s *stubBetService) Resume(ctx context.Context) (domain.OrderResult, error) {
	return s.result, s.err
}

func (s *stubBetService) HasPending(ctx context.Context) (bool, error) {
	return false, nil
}

type stubCheckpoints struct {
	bet *domain.PendingBet
}

func (s *stubCheckpoints) Save(ctx context.Context, bet domain.PendingBet) error {
	s.bet = &bet
	return nil
}

func (s *stubCheckpoints) Load(ctx context.Context) (domain.PendingBet, error) {
	if s.bet == nil {
		return domain.PendingBet{}, domain.ErrNotFound
	}
	return *s.bet, nil
}

func (s *stubCheckpoints) Delete(ctx context.Context) error {
	s.bet = nil
	return nil
}
