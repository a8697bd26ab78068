// Package wallet talks to the user's external wallet over JSON-RPC. The
// wallet holds the keys; this package only requests signatures and
// transactions and tracks which network the wallet is on.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/parivision/bridgebet/internal/domain"
)

// Wallet provider error codes per EIP-1193 / EIP-3085.
const (
	codeUserRejected    = 4001
	codeUnknownChain    = 4902
	codeUnauthorized    = 4100
	codeUnsupportedMeth = 4200
)

// TxRequest describes a transaction for the wallet to sign and broadcast.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int // nil means zero
	Data  []byte
	Gas   uint64 // 0 lets the wallet estimate
}

// Provider is the signing surface the workflow depends on. Implementations
// must map user rejections to domain.ErrUserRejected.
type Provider interface {
	// Address returns the wallet's active account.
	Address(ctx context.Context) (common.Address, error)
	// ChainID returns the EVM chain id the wallet is currently connected to.
	ChainID(ctx context.Context) (int64, error)
	// SwitchChain asks the wallet to move to the given network, registering
	// it first if the wallet does not know it.
	SwitchChain(ctx context.Context, spec domain.ChainSpec) error
	// SendTransaction submits tx through the wallet and returns its hash.
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	// SignTypedData requests an eth_signTypedData_v4 signature from address
	// over the given typed-data JSON document.
	SignTypedData(ctx context.Context, address common.Address, typedData json.RawMessage) (string, error)
}

// RPCProvider implements Provider over a JSON-RPC connection to a wallet
// bridge endpoint (e.g. a WalletConnect or browser-extension relay).
type RPCProvider struct {
	client *rpc.Client
	logger *slog.Logger
}

var _ Provider = (*RPCProvider)(nil)

// Dial connects to the wallet bridge at url.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial %s: %w", url, err)
	}
	return NewRPCProvider(client, logger), nil
}

// NewRPCProvider wraps an existing RPC client. Useful for tests.
func NewRPCProvider(client *rpc.Client, logger *slog.Logger) *RPCProvider {
	return &RPCProvider{
		client: client,
		logger: logger.With(slog.String("component", "wallet")),
	}
}

// Close releases the underlying RPC connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}

// Address returns the first account exposed by the wallet.
func (p *RPCProvider) Address(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, wrapWalletError("eth_accounts", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("wallet: no accounts exposed: %w", domain.ErrUnsupportedWallet)
	}
	return accounts[0], nil
}

// ChainID returns the chain the wallet is currently on.
func (p *RPCProvider) ChainID(ctx context.Context) (int64, error) {
	var raw hexutil.Big
	if err := p.client.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		return 0, wrapWalletError("eth_chainId", err)
	}
	return (*big.Int)(&raw).Int64(), nil
}

// switchChainParams is the wallet_switchEthereumChain argument.
type switchChainParams struct {
	ChainID string `json:"chainId"`
}

// addChainParams is the wallet_addEthereumChain argument per EIP-3085.
type addChainParams struct {
	ChainID   string   `json:"chainId"`
	ChainName string   `json:"chainName"`
	Currency  currency `json:"nativeCurrency"`
	RPCURLs   []string `json:"rpcUrls"`
	Explorers []string `json:"blockExplorerUrls,omitempty"`
}

type currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// SwitchChain moves the wallet to spec's network. When the wallet reports
// error 4902 (chain not registered) the chain is added first and the switch
// retried once.
func (p *RPCProvider) SwitchChain(ctx context.Context, spec domain.ChainSpec) error {
	hexID := hexutil.EncodeBig(big.NewInt(spec.ID))

	err := p.client.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: hexID})
	if err == nil {
		p.logger.Info("wallet switched network", slog.Int64("chain_id", spec.ID))
		return nil
	}

	switch errorCode(err) {
	case codeUnknownChain:
		p.logger.Info("chain unknown to wallet, registering",
			slog.Int64("chain_id", spec.ID),
			slog.String("name", spec.Name))
		add := addChainParams{
			ChainID:   hexID,
			ChainName: spec.Name,
			Currency: currency{
				Name:     spec.CurrencyName,
				Symbol:   spec.CurrencySymbol,
				Decimals: 18,
			},
			RPCURLs: []string{spec.RPCURL},
		}
		if spec.ExplorerURL != "" {
			add.Explorers = []string{spec.ExplorerURL}
		}
		if err := p.client.CallContext(ctx, nil, "wallet_addEthereumChain", add); err != nil {
			return wrapWalletError("wallet_addEthereumChain", err)
		}
		if err := p.client.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: hexID}); err != nil {
			return wrapWalletError("wallet_switchEthereumChain", err)
		}
		return nil
	case codeUserRejected:
		return fmt.Errorf("wallet: network switch declined: %w", domain.ErrUserRejected)
	default:
		return wrapWalletError("wallet_switchEthereumChain", err)
	}
}

// txArgs is the eth_sendTransaction argument.
type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

// SendTransaction asks the wallet to sign and broadcast tx.
func (p *RPCProvider) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	args := txArgs{From: tx.From}
	if tx.To != (common.Address{}) {
		to := tx.To
		args.To = &to
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	if len(tx.Data) > 0 {
		args.Data = tx.Data
	}
	if tx.Gas > 0 {
		gas := hexutil.Uint64(tx.Gas)
		args.Gas = &gas
	}

	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, wrapWalletError("eth_sendTransaction", err)
	}
	p.logger.Info("transaction submitted",
		slog.String("tx_hash", hash.Hex()),
		slog.String("to", tx.To.Hex()))
	return hash, nil
}

// SignTypedData requests an EIP-712 signature without switching networks.
// The typed-data document carries its own chainId.
func (p *RPCProvider) SignTypedData(ctx context.Context, address common.Address, typedData json.RawMessage) (string, error) {
	var sig string
	err := p.client.CallContext(ctx, &sig, "eth_signTypedData_v4", address, string(typedData))
	if err != nil {
		return "", wrapWalletError("eth_signTypedData_v4", err)
	}
	return sig, nil
}

// ----- Internal helpers -----

// errorCode extracts the EIP-1193 error code from a JSON-RPC error, or 0.
func errorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}

// wrapWalletError translates wallet provider errors into domain sentinels
// where a code or message identifies the cause.
func wrapWalletError(method string, err error) error {
	switch errorCode(err) {
	case codeUserRejected:
		return fmt.Errorf("wallet: %s: %w", method, domain.ErrUserRejected)
	case codeUnauthorized:
		return fmt.Errorf("wallet: %s: %w", method, domain.ErrUnauthorized)
	case codeUnsupportedMeth:
		return fmt.Errorf("wallet: %s: %w", method, domain.ErrUnsupportedWallet)
	}
	if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
		return fmt.Errorf("wallet: %s: %w", method, domain.ErrInsufficientFunds)
	}
	return fmt.Errorf("wallet: %s: %w", method, err)
}
