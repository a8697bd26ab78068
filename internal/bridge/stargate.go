// Package bridge moves the swapped stablecoin across chains through the
// Stargate router: USDT on BSC in, USDC on Polygon out, delivered straight
// to the user's exchange proxy wallet.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/config"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/erc20"
	"github.com/parivision/bridgebet/internal/wallet"
)

// functionTypeSwap is the Stargate function type for a token swap, used when
// quoting the LayerZero message fee.
const functionTypeSwap = 1

const stargateABIJSON = `[
	{"name":"quoteLayerZeroFee","type":"function","stateMutability":"view",
	 "inputs":[
	   {"name":"_dstChainId","type":"uint16"},
	   {"name":"_functionType","type":"uint8"},
	   {"name":"_toAddress","type":"bytes"},
	   {"name":"_transferAndCallPayload","type":"bytes"},
	   {"name":"_lzTxParams","type":"tuple","components":[
	     {"name":"dstGasForCall","type":"uint256"},
	     {"name":"dstNativeAmount","type":"uint256"},
	     {"name":"dstNativeAddr","type":"bytes"}]}],
	 "outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},
	{"name":"swap","type":"function","stateMutability":"payable",
	 "inputs":[
	   {"name":"_dstChainId","type":"uint16"},
	   {"name":"_srcPoolId","type":"uint256"},
	   {"name":"_dstPoolId","type":"uint256"},
	   {"name":"_refundAddress","type":"address"},
	   {"name":"_amountLD","type":"uint256"},
	   {"name":"_minAmountLD","type":"uint256"},
	   {"name":"_lzTxParams","type":"tuple","components":[
	     {"name":"dstGasForCall","type":"uint256"},
	     {"name":"dstNativeAmount","type":"uint256"},
	     {"name":"dstNativeAddr","type":"bytes"}]},
	   {"name":"_to","type":"bytes"},
	   {"name":"_payload","type":"bytes"}],
	 "outputs":[]}
]`

var stargateABI abi.ABI

func init() {
	var err error
	stargateABI, err = abi.JSON(strings.NewReader(stargateABIJSON))
	if err != nil {
		panic("bridge: parse stargate abi: " + err.Error())
	}
}

// lzTxParams mirrors Stargate's lzTxObj. All zeros means no extra gas or
// airdrop on the destination chain.
type lzTxParams struct {
	DstGasForCall   *big.Int
	DstNativeAmount *big.Int
	DstNativeAddr   []byte
}

func zeroLzTxParams() lzTxParams {
	return lzTxParams{
		DstGasForCall:   big.NewInt(0),
		DstNativeAmount: big.NewInt(0),
		DstNativeAddr:   []byte{0x00},
	}
}

// Router wraps the Stargate router on the source chain.
type Router struct {
	caller erc20.Caller
	router common.Address
	token  common.Address // USDT on BSC
	cfg    config.BridgeConfig
	logger *slog.Logger
}

// NewRouter builds a Router bound to the source chain.
func NewRouter(caller erc20.Caller, router, token string, cfg config.BridgeConfig, logger *slog.Logger) *Router {
	return &Router{
		caller: caller,
		router: common.HexToAddress(router),
		token:  common.HexToAddress(token),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "bridge")),
	}
}

// QuoteFee returns the native-token fee (in wei) the router charges for the
// LayerZero message to recipient on the destination chain.
func (r *Router) QuoteFee(ctx context.Context, recipient common.Address) (*big.Int, error) {
	data, err := stargateABI.Pack("quoteLayerZeroFee",
		r.cfg.DstChainID,
		uint8(functionTypeSwap),
		recipient.Bytes(),
		[]byte{},
		zeroLzTxParams(),
	)
	if err != nil {
		return nil, fmt.Errorf("bridge: pack quoteLayerZeroFee: %w", err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: quoteLayerZeroFee: %w: %v", domain.ErrQuoteUnavailable, err)
	}
	vals, err := stargateABI.Unpack("quoteLayerZeroFee", out)
	if err != nil {
		return nil, fmt.Errorf("bridge: unpack quoteLayerZeroFee: %w", err)
	}
	fee, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("bridge: unexpected fee type %T", vals[0])
	}
	return fee, nil
}

// EnsureAllowance checks the router's USDT allowance for owner and, when it
// is below amount, submits an approve through the wallet. It returns the
// approval transaction hash, or the zero hash when no approval was needed.
func (r *Router) EnsureAllowance(ctx context.Context, provider wallet.Provider, owner common.Address, amount *big.Int) (common.Hash, error) {
	allowance, err := erc20.Allowance(ctx, r.caller, r.token, owner, r.router)
	if err != nil {
		return common.Hash{}, err
	}
	if allowance.Cmp(amount) >= 0 {
		return common.Hash{}, nil
	}

	data, err := erc20.ApproveCalldata(r.router, amount)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := provider.SendTransaction(ctx, wallet.TxRequest{
		From: owner,
		To:   r.token,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("bridge: approve: %w", err)
	}
	r.logger.Info("token approval submitted",
		slog.String("tx_hash", hash.Hex()),
		slog.String("amount", amount.String()))
	return hash, nil
}

// Send bridges amount of the source stablecoin to recipient on the
// destination chain. minAmount bounds pool slippage; fee is the native fee
// from QuoteFee and rides along as transaction value. Refunds for unused fee
// go back to owner.
func (r *Router) Send(ctx context.Context, provider wallet.Provider, owner common.Address, amount, minAmount, fee *big.Int, recipient common.Address) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("bridge: amount must be positive: %w", domain.ErrInvalidAmount)
	}

	data, err := stargateABI.Pack("swap",
		r.cfg.DstChainID,
		big.NewInt(r.cfg.SrcPoolID),
		big.NewInt(r.cfg.DstPoolID),
		owner, // refund address
		amount,
		minAmount,
		zeroLzTxParams(),
		recipient.Bytes(),
		[]byte{},
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("bridge: pack swap: %w", err)
	}

	hash, err := provider.SendTransaction(ctx, wallet.TxRequest{
		From:  owner,
		To:    r.router,
		Value: fee,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("bridge: swap: %w", err)
	}

	r.logger.Info("bridge transfer submitted",
		slog.String("tx_hash", hash.Hex()),
		slog.String("amount", amount.String()),
		slog.String("recipient", recipient.Hex()),
		slog.Int("dst_chain", int(r.cfg.DstChainID)))
	return hash, nil
}

// MinAmount applies the configured pool slippage to a bridged amount.
func (r *Router) MinAmount(amount *big.Int) *big.Int {
	n := new(big.Int).Mul(amount, big.NewInt(10000-r.cfg.SlippageBps))
	return n.Div(n, big.NewInt(10000))
}
