package dex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/domain"
)

// fakeCaller answers getAmountsOut with a fixed rate of out units per in
// unit, mimicking a constant-price pool.
type fakeCaller struct {
	rate  int64
	calls int
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	method := routerABI.Methods["getAmountsOut"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	amountIn := args[0].(*big.Int)
	out := new(big.Int).Mul(amountIn, big.NewInt(f.rate))
	return method.Outputs.Pack([]*big.Int{amountIn, out})
}

func testRouter(caller *fakeCaller) *Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(caller,
		"0x10ED43C718714eb63d5aA57B78B54704E256024E",
		"0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		"0x55d398326f99059fF775485246999027B3197955",
		10*time.Minute, logger)
}

func TestQuoteOut_RejectsNonPositiveAmount(t *testing.T) {
	r := testRouter(&fakeCaller{rate: 600})
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		_, err := r.QuoteOut(context.Background(), amount)
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestQuoteOut_Monotonic(t *testing.T) {
	caller := &fakeCaller{rate: 600}
	r := testRouter(caller)

	small, err := r.QuoteOut(context.Background(), big.NewInt(1e15))
	if err != nil {
		t.Fatalf("quote small: %v", err)
	}
	large, err := r.QuoteOut(context.Background(), big.NewInt(2e15))
	if err != nil {
		t.Fatalf("quote large: %v", err)
	}
	if large.Cmp(small) <= 0 {
		t.Fatalf("larger input must quote larger output: %s <= %s", large, small)
	}
}

func TestMinOut(t *testing.T) {
	// 2% slippage on 59.8 USDT (18 decimals) leaves 58.604.
	expected := new(big.Int).Mul(big.NewInt(598), big.NewInt(1e17)) // 59.8e18
	got := MinOut(expected, 200)
	want := new(big.Int).Mul(big.NewInt(58604), big.NewInt(1e15)) // 58.604e18
	if got.Cmp(want) != 0 {
		t.Fatalf("MinOut = %s, want %s", got, want)
	}

	// Zero slippage is the identity.
	if MinOut(expected, 0).Cmp(expected) != 0 {
		t.Error("MinOut with 0 bps must return the input")
	}
}

func TestApplySlippage(t *testing.T) {
	got := ApplySlippage(59.8, 200)
	if math.Abs(got-58.604) > 1e-9 {
		t.Fatalf("ApplySlippage(59.8, 200) = %f, want 58.604", got)
	}
}

func TestSwapCalldataShape(t *testing.T) {
	// The packed swap selector must match swapExactETHForTokens.
	method, ok := routerABI.Methods["swapExactETHForTokens"]
	if !ok {
		t.Fatal("router abi missing swapExactETHForTokens")
	}
	data, err := routerABI.Pack("swapExactETHForTokens",
		big.NewInt(1),
		[]common.Address{{}, {}},
		common.Address{},
		big.NewInt(1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != string(method.ID) {
		t.Fatal("calldata selector mismatch")
	}
}
