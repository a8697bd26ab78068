// Package dex wraps the PancakeSwap V2 router for the BNB to USDT leg of the
// workflow. Quotes are read-only contract calls; swaps are built here and
// signed by the user's wallet.
package dex

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/erc20"
	"github.com/parivision/bridgebet/internal/wallet"
)

const routerABIJSON = `[
	{"name":"getAmountsOut","type":"function","stateMutability":"view",
	 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
	 "outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactETHForTokens","type":"function","stateMutability":"payable",
	 "inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},
	           {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var routerABI abi.ABI

func init() {
	var err error
	routerABI, err = abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic("dex: parse router abi: " + err.Error())
	}
}

// Router quotes and executes native-to-token swaps on a UniswapV2-style DEX.
type Router struct {
	caller   erc20.Caller
	router   common.Address
	wrapped  common.Address // WBNB, first hop of every native swap
	stable   common.Address // USDT
	deadline time.Duration
	logger   *slog.Logger
}

// NewRouter builds a Router. caller must be bound to the source chain RPC.
func NewRouter(caller erc20.Caller, router, wrapped, stable string, deadline time.Duration, logger *slog.Logger) *Router {
	return &Router{
		caller:   caller,
		router:   common.HexToAddress(router),
		wrapped:  common.HexToAddress(wrapped),
		stable:   common.HexToAddress(stable),
		deadline: deadline,
		logger:   logger.With(slog.String("component", "dex")),
	}
}

// QuoteOut returns the expected USDT output (18 decimals on BSC) for
// swapping amountIn wei of BNB along the WBNB->USDT path.
func (r *Router) QuoteOut(ctx context.Context, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("dex: amountIn must be positive: %w", domain.ErrInvalidAmount)
	}

	path := []common.Address{r.wrapped, r.stable}
	data, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("dex: pack getAmountsOut: %w", err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("dex: getAmountsOut: %w: %v", domain.ErrQuoteUnavailable, err)
	}

	vals, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("dex: unpack getAmountsOut: %w", err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("dex: unexpected getAmountsOut shape: %w", domain.ErrQuoteUnavailable)
	}
	return amounts[len(amounts)-1], nil
}

// Swap submits a swapExactETHForTokens transaction through the wallet,
// sending amountIn wei of BNB and requiring at least minOut USDT to
// recipient. Returns the transaction hash.
func (r *Router) Swap(ctx context.Context, provider wallet.Provider, from common.Address, amountIn, minOut *big.Int, recipient common.Address) (common.Hash, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("dex: amountIn must be positive: %w", domain.ErrInvalidAmount)
	}
	if minOut == nil || minOut.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("dex: minOut must be positive: %w", domain.ErrInvalidAmount)
	}

	deadline := big.NewInt(time.Now().Add(r.deadline).Unix())
	path := []common.Address{r.wrapped, r.stable}
	data, err := routerABI.Pack("swapExactETHForTokens", minOut, path, recipient, deadline)
	if err != nil {
		return common.Hash{}, fmt.Errorf("dex: pack swap: %w", err)
	}

	hash, err := provider.SendTransaction(ctx, wallet.TxRequest{
		From:  from,
		To:    r.router,
		Value: amountIn,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("dex: swap: %w", err)
	}

	r.logger.Info("swap submitted",
		slog.String("tx_hash", hash.Hex()),
		slog.String("amount_in_wei", amountIn.String()),
		slog.String("min_out", minOut.String()))
	return hash, nil
}

// MinOut applies a slippage tolerance in basis points to an expected output:
// expected * (10000 - bps) / 10000, rounded down.
func MinOut(expected *big.Int, slippageBps int64) *big.Int {
	n := new(big.Int).Mul(expected, big.NewInt(10000-slippageBps))
	return n.Div(n, big.NewInt(10000))
}

// ApplySlippage is the float counterpart of MinOut, used on display-level
// USD amounts.
func ApplySlippage(amount float64, slippageBps int64) float64 {
	return amount * float64(10000-slippageBps) / 10000
}
