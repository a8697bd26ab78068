// Package proxywallet resolves the Polygon proxy wallet that holds a user's
// exchange funds. Resolution is layered: the local cache first, then the
// CLOB user record, then the on-chain proxy factory. A proxy only counts
// when bytecode is actually deployed at the address; bridging to an
// undeployed address would strand the funds.
package proxywallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/domain"
)

const factoryABIJSON = `[
	{"name":"proxyFor","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

var factoryABI abi.ABI

func init() {
	var err error
	factoryABI, err = abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic("proxywallet: parse factory abi: " + err.Error())
	}
}

// ChainReader is the subset of the Polygon RPC client the resolver needs.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// ExchangeLookup queries the exchange's user record for a proxy address.
// The CLOB client satisfies it.
type ExchangeLookup interface {
	LookupProxyWallet(ctx context.Context, address string) (string, error)
}

// Resolver finds and caches proxy wallet addresses.
type Resolver struct {
	store   domain.ProxyStore
	lookup  ExchangeLookup
	chain   ChainReader
	factory common.Address
	logger  *slog.Logger
}

// NewResolver builds a Resolver. factory is the proxy factory contract on
// the destination chain.
func NewResolver(store domain.ProxyStore, lookup ExchangeLookup, chain ChainReader, factory string, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:   store,
		lookup:  lookup,
		chain:   chain,
		factory: common.HexToAddress(factory),
		logger:  logger.With(slog.String("component", "proxy_resolver")),
	}
}

// Resolve returns the proxy wallet for userAddress. The cached answer is
// authoritative once present; a cache miss walks the exchange record and
// then the factory. When every source comes up empty the caller must ask
// the user, signalled by domain.ErrProxyNotConfigured.
func (r *Resolver) Resolve(ctx context.Context, userAddress string) (string, error) {
	if cached, err := r.store.Get(ctx, userAddress); err == nil && cached != "" {
		return cached, nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("proxy cache read failed", slog.String("error", err.Error()))
	}

	if proxy, err := r.lookup.LookupProxyWallet(ctx, userAddress); err == nil {
		r.cache(ctx, userAddress, proxy)
		return proxy, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("exchange proxy lookup failed", slog.String("error", err.Error()))
	}

	proxy, err := r.fromFactory(ctx, userAddress)
	if err == nil {
		r.cache(ctx, userAddress, proxy)
		return proxy, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("factory proxy lookup failed", slog.String("error", err.Error()))
	}

	return "", fmt.Errorf("proxywallet: no proxy found for %s: %w", userAddress, domain.ErrProxyNotConfigured)
}

// SetManual records a user-supplied proxy address after confirming bytecode
// exists at it.
func (r *Resolver) SetManual(ctx context.Context, userAddress, proxyAddress string) error {
	if !common.IsHexAddress(proxyAddress) {
		return fmt.Errorf("proxywallet: %q is not an address: %w", proxyAddress, domain.ErrInvalidAmount)
	}
	deployed, err := r.isDeployed(ctx, common.HexToAddress(proxyAddress))
	if err != nil {
		return err
	}
	if !deployed {
		return fmt.Errorf("proxywallet: no contract at %s: %w", proxyAddress, domain.ErrProxyNotConfigured)
	}
	if err := r.store.Put(ctx, userAddress, proxyAddress); err != nil {
		return fmt.Errorf("proxywallet: cache proxy: %w", err)
	}
	r.logger.Info("proxy wallet set manually",
		slog.String("user", userAddress),
		slog.String("proxy", proxyAddress))
	return nil
}

// Forget drops the cached proxy, forcing re-resolution on the next bet.
func (r *Resolver) Forget(ctx context.Context, userAddress string) error {
	return r.store.Remove(ctx, userAddress)
}

// ----- Internal helpers -----

func (r *Resolver) cache(ctx context.Context, user, proxy string) {
	if err := r.store.Put(ctx, user, proxy); err != nil {
		r.logger.Warn("proxy cache write failed", slog.String("error", err.Error()))
	}
}

// fromFactory asks the proxy factory which address it would (or did) deploy
// for owner, then verifies bytecode exists there.
func (r *Resolver) fromFactory(ctx context.Context, userAddress string) (string, error) {
	data, err := factoryABI.Pack("proxyFor", common.HexToAddress(userAddress))
	if err != nil {
		return "", fmt.Errorf("proxywallet: pack proxyFor: %w", err)
	}
	out, err := r.chain.CallContract(ctx, ethereum.CallMsg{To: &r.factory, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("proxywallet: proxyFor: %w", err)
	}
	vals, err := factoryABI.Unpack("proxyFor", out)
	if err != nil {
		return "", fmt.Errorf("proxywallet: unpack proxyFor: %w", err)
	}
	proxy, ok := vals[0].(common.Address)
	if !ok || proxy == (common.Address{}) {
		return "", domain.ErrNotFound
	}

	deployed, err := r.isDeployed(ctx, proxy)
	if err != nil {
		return "", err
	}
	if !deployed {
		// The factory can predict an address before anything is deployed
		// there. Treat it as absent.
		return "", domain.ErrNotFound
	}
	return proxy.Hex(), nil
}

func (r *Resolver) isDeployed(ctx context.Context, addr common.Address) (bool, error) {
	code, err := r.chain.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("proxywallet: getCode %s: %w", addr.Hex(), err)
	}
	return len(code) > 0, nil
}
