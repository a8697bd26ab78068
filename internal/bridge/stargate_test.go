package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/config"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/wallet"
)

func testRouter(caller fakeCaller) *Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(caller,
		"0x4a364f8c717cAAD9A442737Eb7b8A55cc6cf18D8",
		"0x55d398326f99059fF775485246999027B3197955",
		config.Defaults().Bridge, logger)
}

func TestMinAmount(t *testing.T) {
	r := testRouter(nil)

	amount, _ := new(big.Int).SetString("59800000000000000000", 10) // 59.8 tokens
	got := r.MinAmount(amount)
	want, _ := new(big.Int).SetString("58604000000000000000", 10) // minus 200 bps
	if got.Cmp(want) != 0 {
		t.Fatalf("min amount = %s, want %s", got, want)
	}
}

func TestQuoteFee(t *testing.T) {
	wantFee := big.NewInt(3_000_000_000_000_000) // 0.003 BNB
	caller := func(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		method := stargateABI.Methods["quoteLayerZeroFee"]
		if len(msg.Data) < 4 || string(msg.Data[:4]) != string(method.ID) {
			t.Fatalf("unexpected calldata selector")
		}
		return method.Outputs.Pack(wantFee, big.NewInt(0))
	}

	fee, err := testRouter(caller).QuoteFee(context.Background(), common.HexToAddress("0xaa"))
	if err != nil {
		t.Fatalf("quote fee: %v", err)
	}
	if fee.Cmp(wantFee) != 0 {
		t.Fatalf("fee = %s, want %s", fee, wantFee)
	}
}

func TestSend_RejectsNonPositiveAmount(t *testing.T) {
	r := testRouter(nil)
	w := &recordingWallet{}

	_, err := r.Send(context.Background(), w, common.Address{}, big.NewInt(0), big.NewInt(0), big.NewInt(1), common.HexToAddress("0xaa"))
	if err == nil {
		t.Fatal("expected error for zero amount")
	}
	if len(w.sent) != 0 {
		t.Fatal("no transaction may be sent for an invalid amount")
	}
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSend_BuildsSwapTransaction(t *testing.T) {
	r := testRouter(nil)
	w := &recordingWallet{}

	owner := common.HexToAddress("0x0000000000000000000000000000000000000009")
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	amount := big.NewInt(1e18)
	fee := big.NewInt(3_000_000)

	if _, err := r.Send(context.Background(), w, owner, amount, r.MinAmount(amount), fee, recipient); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(w.sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(w.sent))
	}
	tx := w.sent[0]
	if tx.Value.Cmp(fee) != 0 {
		t.Fatalf("tx value = %s, want the message fee %s", tx.Value, fee)
	}
	method := stargateABI.Methods["swap"]
	if string(tx.Data[:4]) != string(method.ID) {
		t.Fatal("calldata does not target swap")
	}
	args, err := method.Inputs.Unpack(tx.Data[4:])
	if err != nil {
		t.Fatalf("unpack swap args: %v", err)
	}
	if got := args[0].(uint16); got != 109 {
		t.Fatalf("dst chain id = %d, want 109", got)
	}
	if got := args[1].(*big.Int); got.Int64() != 2 {
		t.Fatalf("src pool = %s, want 2", got)
	}
	if got := args[2].(*big.Int); got.Int64() != 1 {
		t.Fatalf("dst pool = %s, want 1", got)
	}
	if got := args[3].(common.Address); got != owner {
		t.Fatalf("refund address = %s, want owner", got.Hex())
	}
}

// ----- Test fixtures -----

type fakeCaller func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

func (f fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f(ctx, msg, blockNumber)
}

type recordingWallet struct {
	sent []wallet.TxRequest
}

func (r *recordingWallet) Address(ctx context.Context) (common.Address, error) {
	return common.Address{}, nil
}
func (r *recordingWallet) ChainID(ctx context.Context) (int64, error) { return 56, nil }
func (r *recordingWallet) SwitchChain(ctx context.Context, spec domain.ChainSpec) error {
	return nil
}
func (r *recordingWallet) SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error) {
	r.sent = append(r.sent, tx)
	return common.HexToHash("0x01"), nil
}
func (r *recordingWallet) SignTypedData(ctx context.Context, address common.Address, typedData json.RawMessage) (string, error) {
	return "", nil
}
