package settle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/domain"
)

// scriptedBalance returns a fixed sequence of balanceOf results, repeating
// the last one once exhausted.
type scriptedBalance struct {
	balances []int64 // in USDC units (6 decimals)
	calls    int
}

func (s *scriptedBalance) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	i := s.calls
	if i >= len(s.balances) {
		i = len(s.balances) - 1
	}
	s.calls++
	return common.LeftPadBytes(big.NewInt(s.balances[i]).Bytes(), 32), nil
}

func testPoller(caller *scriptedBalance, maxAttempts int) *Poller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPoller(caller, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		time.Millisecond, maxAttempts, 0.9, logger)
}

func TestAwait_StopsWhenFundsArrive(t *testing.T) {
	// Balance stays flat for six polls, then jumps by 59 USDC on the
	// seventh. Expected 60 USDC at 0.9 tolerance means 54 USDC suffices.
	balances := []int64{5_000_000, 5_000_000, 5_000_000, 5_000_000, 5_000_000, 5_000_000, 64_000_000}
	caller := &scriptedBalance{balances: balances}
	p := testPoller(caller, 20)

	received, err := p.Await(context.Background(), common.Address{}, big.NewInt(5_000_000), 60, nil)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if received.Int64() != 59_000_000 {
		t.Fatalf("received = %d, want 59000000", received.Int64())
	}
	if caller.calls != 7 {
		t.Fatalf("polled %d times, want exactly 7", caller.calls)
	}
}

func TestAwait_BelowThresholdTimesOut(t *testing.T) {
	// 50 USDC received never reaches the 54 USDC threshold.
	caller := &scriptedBalance{balances: []int64{55_000_000}}
	p := testPoller(caller, 5)

	_, err := p.Await(context.Background(), common.Address{}, big.NewInt(5_000_000), 60, nil)
	if !errors.Is(err, domain.ErrBridgeTimeout) {
		t.Fatalf("expected ErrBridgeTimeout, got %v", err)
	}
	if caller.calls != 5 {
		t.Fatalf("polled %d times, want all 5 attempts", caller.calls)
	}
}

func TestAwait_ReportsEveryAttempt(t *testing.T) {
	// Arrives on the third poll; the callback must have seen all three.
	caller := &scriptedBalance{balances: []int64{0, 0, 60_000_000}}
	p := testPoller(caller, 10)

	var attempts []int
	var lastElapsed time.Duration
	onAttempt := func(attempt int, elapsed time.Duration) {
		attempts = append(attempts, attempt)
		lastElapsed = elapsed
	}

	if _, err := p.Await(context.Background(), common.Address{}, big.NewInt(0), 60, onAttempt); err != nil {
		t.Fatalf("await: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("callback ran %d times, want 3", len(attempts))
	}
	for i, a := range attempts {
		if a != i+1 {
			t.Fatalf("attempts = %v, want 1..3 in order", attempts)
		}
	}
	if lastElapsed < 0 {
		t.Fatalf("elapsed = %v, want non-negative", lastElapsed)
	}
}

func TestAwait_RejectsNonPositiveExpected(t *testing.T) {
	p := testPoller(&scriptedBalance{balances: []int64{0}}, 3)
	_, err := p.Await(context.Background(), common.Address{}, big.NewInt(0), 0, nil)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAwait_ContextCancelled(t *testing.T) {
	caller := &scriptedBalance{balances: []int64{0}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPoller(caller, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		time.Hour, 20, 0.9, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Await(ctx, common.Address{}, big.NewInt(0), 60, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
