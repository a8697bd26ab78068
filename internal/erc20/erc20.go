// Package erc20 provides the minimal ERC-20 surface the workflow needs:
// reading balances and allowances, and building approve calldata for the
// wallet to sign.
package erc20

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const abiJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic("erc20: parse abi: " + err.Error())
	}
}

// Caller executes read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BalanceOf returns owner's token balance in the token's smallest unit.
func BalanceOf(ctx context.Context, caller Caller, token, owner common.Address) (*big.Int, error) {
	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("erc20: pack balanceOf: %w", err)
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("erc20: balanceOf %s: %w", token.Hex(), err)
	}
	return unpackUint256(out, "balanceOf")
}

// Allowance returns how much spender may transfer on owner's behalf.
func Allowance(ctx context.Context, caller Caller, token, owner, spender common.Address) (*big.Int, error) {
	data, err := parsedABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("erc20: pack allowance: %w", err)
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("erc20: allowance %s: %w", token.Hex(), err)
	}
	return unpackUint256(out, "allowance")
}

// ApproveCalldata builds the calldata for approve(spender, amount).
func ApproveCalldata(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := parsedABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("erc20: pack approve: %w", err)
	}
	return data, nil
}

func unpackUint256(out []byte, method string) (*big.Int, error) {
	vals, err := parsedABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("erc20: unpack %s: %w", method, err)
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("erc20: unexpected %s return type %T", method, vals[0])
	}
	return n, nil
}
