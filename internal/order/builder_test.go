package order

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/parivision/bridgebet/internal/crypto"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/wallet"
)

func fixedBuilder(at time.Time) *Builder {
	b := NewBuilder()
	b.now = func() time.Time { return at }
	return b
}

func TestBuild_BuyAmounts(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	b := fixedBuilder(at)

	// 60 USDC at price 0.40 buys 150 outcome tokens.
	o, err := b.Build("tok", domain.OrderSideBuy, 0.40, 60, "0xproxy", "0xsigner")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if o.MakerAmount != "60000000" {
		t.Errorf("makerAmount = %s, want 60000000", o.MakerAmount)
	}
	if o.TakerAmount != "150000000" {
		t.Errorf("takerAmount = %s, want 150000000", o.TakerAmount)
	}
	if o.Salt != 1_700_000_000 || o.Nonce != 1_700_000_000 {
		t.Errorf("salt/nonce = %d/%d, want unix timestamp", o.Salt, o.Nonce)
	}
	if o.Expiration != 1_700_000_000+86400 {
		t.Errorf("expiration = %d, want +86400", o.Expiration)
	}
	if o.Taker != domain.ZeroAddress {
		t.Errorf("taker = %s, want open taker", o.Taker)
	}
	if o.Side != 0 || o.SignatureType != domain.SignatureTypePolyProxy {
		t.Errorf("side/signatureType = %d/%d", o.Side, o.SignatureType)
	}
}

func TestBuild_SignatureTypeFollowsMaker(t *testing.T) {
	b := fixedBuilder(time.Unix(1_700_000_000, 0))
	eoa := "0x00000000000000000000000000000000000000bb"

	// Funds on the proxy: maker differs from the signing EOA.
	o, err := b.Build("tok", domain.OrderSideBuy, 0.40, 60, "0x00000000000000000000000000000000000000aa", eoa)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if o.SignatureType != domain.SignatureTypePolyProxy {
		t.Errorf("proxy-funded signatureType = %d, want %d", o.SignatureType, domain.SignatureTypePolyProxy)
	}

	// Maker is the signer itself, only case differing.
	o, err = b.Build("tok", domain.OrderSideBuy, 0.40, 60, "0x00000000000000000000000000000000000000BB", eoa)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if o.SignatureType != domain.SignatureTypeEOA {
		t.Errorf("self-funded signatureType = %d, want %d", o.SignatureType, domain.SignatureTypeEOA)
	}
}

func TestBuild_SellFlipsAmounts(t *testing.T) {
	b := fixedBuilder(time.Unix(1_700_000_000, 0))
	o, err := b.Build("tok", domain.OrderSideSell, 0.40, 60, "0xproxy", "0xsigner")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if o.MakerAmount != "150000000" || o.TakerAmount != "60000000" {
		t.Errorf("sell amounts = %s/%s", o.MakerAmount, o.TakerAmount)
	}
	if o.Side != 1 {
		t.Errorf("side = %d, want 1", o.Side)
	}
}

func TestBuild_Validation(t *testing.T) {
	b := NewBuilder()

	if _, err := b.Build("tok", domain.OrderSideBuy, 0, 60, "0xproxy", "0xsigner"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero price: got %v", err)
	}
	if _, err := b.Build("tok", domain.OrderSideBuy, 1.2, 60, "0xproxy", "0xsigner"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("price above 1: got %v", err)
	}
	if _, err := b.Build("tok", domain.OrderSideBuy, 0.4, 0, "0xproxy", "0xsigner"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero amount: got %v", err)
	}
	if _, err := b.Build("tok", domain.OrderSideBuy, 0.4, 60, "", "0xsigner"); !errors.Is(err, domain.ErrProxyNotConfigured) {
		t.Errorf("missing maker: got %v", err)
	}
}

func TestSigner_RejectsMismatchedSignature(t *testing.T) {
	d := crypto.DefaultExchangeDomain(137, "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSigner(d, logger)

	// Wallet returns a syntactically valid signature from the wrong key.
	key, _ := ethcrypto.GenerateKey()
	w := &stubWallet{sign: func(doc json.RawMessage) (string, error) {
		var parsed struct {
			Message rawOrderMessage `json:"message"`
		}
		if err := json.Unmarshal(doc, &parsed); err != nil {
			return "", err
		}
		digest, err := crypto.OrderDigest(d, parsed.Message.toOrder())
		if err != nil {
			return "", err
		}
		sig, err := ethcrypto.Sign(digest, key)
		if err != nil {
			return "", err
		}
		sig[64] += 27
		return "0x" + hex.EncodeToString(sig), nil
	}}

	o := domain.Order{
		Salt: 1, Maker: "0xproxy", Signer: "0x0000000000000000000000000000000000000009",
		Taker: domain.ZeroAddress, TokenID: "5", MakerAmount: "1", TakerAmount: "2",
		Expiration: 2, Nonce: 1, FeeRateBps: "0",
	}
	_, err := s.Sign(context.Background(), w, o)
	if !errors.Is(err, domain.ErrSigningFailed) {
		t.Fatalf("expected ErrSigningFailed, got %v", err)
	}
}

func TestSigner_AcceptsValidSignature(t *testing.T) {
	d := crypto.DefaultExchangeDomain(137, "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSigner(d, logger)

	key, _ := ethcrypto.GenerateKey()
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	w := &stubWallet{sign: func(doc json.RawMessage) (string, error) {
		var parsed struct {
			Message rawOrderMessage `json:"message"`
		}
		if err := json.Unmarshal(doc, &parsed); err != nil {
			return "", err
		}
		digest, err := crypto.OrderDigest(d, parsed.Message.toOrder())
		if err != nil {
			return "", err
		}
		sig, err := ethcrypto.Sign(digest, key)
		if err != nil {
			return "", err
		}
		sig[64] += 27
		return "0x" + hex.EncodeToString(sig), nil
	}}

	o := domain.Order{
		Salt: 1, Maker: "0xproxy", Signer: addr.Hex(),
		Taker: domain.ZeroAddress, TokenID: "5", MakerAmount: "1", TakerAmount: "2",
		Expiration: 2, Nonce: 1, FeeRateBps: "0",
	}
	signed, err := s.Sign(context.Background(), w, o)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.OrderType != "FOK" || signed.Owner != addr.Hex() {
		t.Fatalf("signed order metadata wrong: %+v", signed)
	}
}

// rawOrderMessage mirrors the typed-data message where uint256 values are
// strings.
type rawOrderMessage struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`
	SignatureType int    `json:"signatureType"`
}

func (r rawOrderMessage) toOrder() domain.Order {
	parse := func(s string) int64 {
		n := new(big.Int)
		n.SetString(s, 10)
		return n.Int64()
	}
	return domain.Order{
		Salt: parse(r.Salt), Maker: r.Maker, Signer: r.Signer, Taker: r.Taker,
		TokenID: r.TokenID, MakerAmount: r.MakerAmount, TakerAmount: r.TakerAmount,
		Expiration: parse(r.Expiration), Nonce: parse(r.Nonce), FeeRateBps: r.FeeRateBps,
		Side: r.Side, SignatureType: r.SignatureType,
	}
}

// stubWallet implements wallet.Provider with a pluggable sign function.
type stubWallet struct {
	sign func(json.RawMessage) (string, error)
}

func (s *stubWallet) Address(ctx context.Context) (common.Address, error) {
	return common.Address{}, nil
}
func (s *stubWallet) ChainID(ctx context.Context) (int64, error) { return 56, nil }
func (s *stubWallet) SwitchChain(ctx context.Context, spec domain.ChainSpec) error {
	return nil
}
func (s *stubWallet) SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error) {
	return common.Hash{}, nil
}
func (s *stubWallet) SignTypedData(ctx context.Context, address common.Address, typedData json.RawMessage) (string, error) {
	return s.sign(typedData)
}
