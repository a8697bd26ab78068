package domain

import (
	"testing"
	"time"
)

func TestPayout(t *testing.T) {
	// 0.1 BNB at $600 is a $60 stake; at price 0.40 it pays 150.
	stake := 0.1 * 600
	if got := Payout(stake, 0.40); got != 150 {
		t.Fatalf("Payout(60, 0.40) = %f, want 150", got)
	}
	if got := Payout(60, 0); got != 0 {
		t.Fatalf("Payout with zero price = %f, want 0", got)
	}
	if got := Payout(60, -0.2); got != 0 {
		t.Fatalf("Payout with negative price = %f, want 0", got)
	}
}

func TestPendingBetStale(t *testing.T) {
	now := time.Now()
	window := 10 * time.Minute

	fresh := PendingBet{CreatedAt: now.Add(-9 * time.Minute).UnixMilli()}
	if fresh.Stale(now, window) {
		t.Error("nine-minute-old checkpoint must not be stale")
	}

	old := PendingBet{CreatedAt: now.Add(-11 * time.Minute).UnixMilli()}
	if !old.Stale(now, window) {
		t.Error("eleven-minute-old checkpoint must be stale")
	}
}

func TestWorkflowStateTerminal(t *testing.T) {
	for _, s := range []WorkflowState{StateStart, StateQuoted, StateSourceBridged, StateAwaitingSettlement, StateOrderSigned} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
	for _, s := range []WorkflowState{StateOrderSubmitted, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestOrderBookBestPrice(t *testing.T) {
	book := OrderBook{
		Bids: []BookLevel{{Price: 0.45, Size: 10}},
		Asks: []BookLevel{{Price: 0.55, Size: 5}},
	}
	if got := book.BestPrice(OrderSideBuy); got != 0.55 {
		t.Errorf("buy price = %f, want best ask", got)
	}
	if got := book.BestPrice(OrderSideSell); got != 0.45 {
		t.Errorf("sell price = %f, want best bid", got)
	}

	empty := OrderBook{}
	if got := empty.BestPrice(OrderSideBuy); got != 0.5 {
		t.Errorf("empty book buy price = %f, want 0.5 default", got)
	}
	if got := empty.BestPrice(OrderSideSell); got != 0.5 {
		t.Errorf("empty book sell price = %f, want 0.5 default", got)
	}
}

func TestOrderSideUint8(t *testing.T) {
	if OrderSideBuy.Uint8() != 0 || OrderSideSell.Uint8() != 1 {
		t.Fatal("side enum values must match the exchange encoding")
	}
}
