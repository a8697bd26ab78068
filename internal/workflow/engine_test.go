package workflow

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/parivision/bridgebet/internal/config"
	"github.com/parivision/bridgebet/internal/crypto"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/order"
	"github.com/parivision/bridgebet/internal/settle"
	"github.com/parivision/bridgebet/internal/wallet"
)

const testExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

func TestResume_NoCheckpoint(t *testing.T) {
	cp := newMemCheckpoints()
	e := testEngine(t, cp, nil, nil)

	result, err := e.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume without checkpoint: %v", err)
	}
	if result.Success {
		t.Fatal("expected zero result")
	}
}

func TestResume_StaleCheckpointDiscarded(t *testing.T) {
	cp := newMemCheckpoints()
	cp.bet = &domain.PendingBet{
		MarketSlug:           "will-it-rain",
		TokenID:              "101",
		OutcomeLabel:         "Yes",
		ReferencePrice:       0.4,
		ExpectedStableAmount: 60,
		DestinationProxy:     "0x00000000000000000000000000000000000000aa",
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().Add(-11 * time.Minute).UnixMilli(),
	}
	e := testEngine(t, cp, nil, nil)

	_, err := e.Resume(context.Background())
	if !errors.Is(err, domain.ErrCheckpointStale) {
		t.Fatalf("expected ErrCheckpointStale, got %v", err)
	}
	if cp.bet != nil {
		t.Fatal("stale checkpoint should be deleted")
	}
}

func TestResume_FreshCheckpointSurvivesWindow(t *testing.T) {
	cp := newMemCheckpoints()
	cp.bet = &domain.PendingBet{
		MarketSlug:           "will-it-rain",
		TokenID:              "101",
		OutcomeLabel:         "Yes",
		ReferencePrice:       0.4,
		ExpectedStableAmount: 60,
		DestinationProxy:     "0x00000000000000000000000000000000000000aa",
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().Add(-9 * time.Minute).UnixMilli(),
	}
	ex := &stubExchange{
		book:   domain.OrderBook{TokenID: "101", Asks: []domain.BookLevel{{Price: 0.42, Size: 500}}},
		result: domain.OrderResult{Success: true, OrderID: "ord-1", Status: "matched"},
	}
	e := testEngine(t, cp, ex, bigUSDC(59))

	result, err := e.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !result.Success || result.OrderID != "ord-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if cp.bet != nil {
		t.Fatal("checkpoint must be consumed after submission")
	}
	if ex.posted == nil {
		t.Fatal("order was not posted")
	}
	if ex.posted.OrderType != "FOK" {
		t.Fatalf("order type = %q, want FOK", ex.posted.OrderType)
	}
	// 60 USDC at the book's 0.42 ask.
	if ex.posted.Order.MakerAmount != "60000000" {
		t.Fatalf("maker amount = %s", ex.posted.Order.MakerAmount)
	}
}

func TestResume_WhileActiveIsNoop(t *testing.T) {
	cp := newMemCheckpoints()
	cp.bet = &domain.PendingBet{
		MarketSlug: "will-it-rain",
		State:      domain.StateSourceBridged,
		CreatedAt:  time.Now().UnixMilli(),
	}
	e := testEngine(t, cp, nil, nil)
	e.begin()
	defer e.end()

	result, err := e.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume while active: %v", err)
	}
	if result.Success {
		t.Fatal("expected zero result")
	}
	if cp.loads != 0 {
		t.Fatal("second resume must not touch the store")
	}
}

func TestResume_SettleTimeoutKeepsCheckpoint(t *testing.T) {
	cp := newMemCheckpoints()
	cp.bet = &domain.PendingBet{
		MarketSlug:           "will-it-rain",
		TokenID:              "101",
		ReferencePrice:       0.4,
		ExpectedStableAmount: 60,
		DestinationProxy:     "0x00000000000000000000000000000000000000aa",
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().UnixMilli(),
	}
	// Balance stays below the 0.9 * 60 USDC threshold.
	e := testEngine(t, cp, nil, bigUSDC(10))

	_, err := e.Resume(context.Background())
	if !errors.Is(err, domain.ErrBridgeTimeout) {
		t.Fatalf("expected ErrBridgeTimeout, got %v", err)
	}
	if cp.bet == nil {
		t.Fatal("checkpoint must survive a settlement timeout")
	}
}

func TestResume_RejectedOrderKeepsCheckpoint(t *testing.T) {
	cp := newMemCheckpoints()
	cp.bet = &domain.PendingBet{
		MarketSlug:           "will-it-rain",
		TokenID:              "101",
		ReferencePrice:       0.4,
		ExpectedStableAmount: 60,
		DestinationProxy:     "0x00000000000000000000000000000000000000aa",
		BridgeTxHash:         "0xbridge",
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().UnixMilli(),
	}
	ex := &stubExchange{
		book: domain.OrderBook{TokenID: "101", Asks: []domain.BookLevel{{Price: 0.42, Size: 500}}},
		err:  &domain.OrderRejectedError{Reason: "Order expired"},
	}
	e := testEngine(t, cp, ex, bigUSDC(59))

	_, err := e.Resume(context.Background())
	rejected, ok := domain.AsOrderRejected(err)
	if !ok {
		t.Fatalf("expected OrderRejectedError, got %v", err)
	}
	if rejected.Reason != "Order expired" {
		t.Fatalf("reason = %q", rejected.Reason)
	}
	// A later resume rebuilds the order with a fresh salt and nonce, so the
	// bridged funds stay reachable.
	if cp.bet == nil {
		t.Fatal("checkpoint must survive an exchange rejection")
	}
}

func TestResume_TransientWalletErrorKeepsCheckpoint(t *testing.T) {
	cp := newMemCheckpoints()
	cp.bet = &domain.PendingBet{
		MarketSlug:           "will-it-rain",
		TokenID:              "101",
		ReferencePrice:       0.4,
		ExpectedStableAmount: 60,
		DestinationProxy:     "0x00000000000000000000000000000000000000aa",
		BridgeTxHash:         "0xbridge",
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().UnixMilli(),
	}
	e := testEngine(t, cp, nil, bigUSDC(59))
	// The wallet briefly stops answering after settlement.
	e.provider.(*fakeWallet).addrErr = errors.New("wallet not responding")

	if _, err := e.Resume(context.Background()); err == nil {
		t.Fatal("expected resume to fail")
	}
	if cp.bet == nil {
		t.Fatal("checkpoint must survive a transient wallet error after bridging")
	}
}

func TestPlaceBet_RejectsBadStakeBeforeWallet(t *testing.T) {
	cp := newMemCheckpoints()
	e := testEngine(t, cp, nil, nil)
	// Any wallet access would fail; the stake check has to come first.
	e.provider.(*fakeWallet).addrErr = errors.New("wallet not responding")

	_, err := e.PlaceBet(context.Background(), domain.BetRequest{
		MarketSlug: "will-it-rain",
		TokenID:    "101",
		AmountBNB:  0,
	})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if cp.bet != nil {
		t.Fatal("no checkpoint may be written for a rejected stake")
	}
}

func TestResume_PublishesStateSequence(t *testing.T) {
	cp := newMemCheckpoints()
	cp.bet = &domain.PendingBet{
		MarketSlug:           "will-it-rain",
		TokenID:              "101",
		ReferencePrice:       0.4,
		ExpectedStableAmount: 60,
		DestinationProxy:     "0x00000000000000000000000000000000000000aa",
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().UnixMilli(),
	}
	ex := &stubExchange{
		book:   domain.OrderBook{TokenID: "101", Asks: []domain.BookLevel{{Price: 0.42, Size: 500}}},
		result: domain.OrderResult{Success: true, OrderID: "ord-2"},
	}
	bus := &captureBus{}
	e := testEngine(t, cp, ex, bigUSDC(59))
	e.bus = bus

	if _, err := e.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	want := []string{
		string(domain.StateAwaitingNetworkSwitch),
		string(domain.StateAwaitingSettlement),
		string(domain.StateSettled),
		string(domain.StateOrderSigned),
		string(domain.StateOrderSubmitted),
	}
	got := bus.states()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if bus.count("workflow.settle_progress") == 0 {
		t.Fatal("expected settlement progress signals while awaiting the bridge")
	}
}

// ----- Test fixtures -----

// testEngine wires an Engine whose wallet is already on the destination
// chain and signs with a locally generated key. balance, when non-nil, is
// what the settle poller sees on the proxy.
func testEngine(t *testing.T, cp *memCheckpoints, ex *stubExchange, balance *big.Int) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)
	d := crypto.DefaultExchangeDomain(137, testExchange)

	w := &fakeWallet{addr: addr, chainID: 137, sign: func(doc json.RawMessage) (string, error) {
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

	cfg := config.Defaults().Workflow
	cfg.SettleMaxAttempts = 2
	cfg.SettleInterval.Duration = time.Millisecond

	if ex == nil {
		ex = &stubExchange{}
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	poller := settle.NewPoller(
		fixedBalance{amount: balance},
		"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		cfg.SettleInterval.Duration, cfg.SettleMaxAttempts, cfg.SettleTolerance, logger)

	return NewEngine(cfg, Deps{
		Provider:    w,
		Watcher:     wallet.NewChainWatcher(w, time.Millisecond, logger),
		Settle:      poller,
		Builder:     order.NewBuilder(),
		Signer:      order.NewSigner(d, logger),
		Exchange:    ex,
		Checkpoints: cp,
		Destination: domain.ChainSpec{ID: 137, Name: "Polygon"},
		Source:      domain.ChainSpec{ID: 56, Name: "BNB Smart Chain"},
	}, logger)
}

// bigUSDC converts a display amount to 6-decimal token units.
func bigUSDC(amount int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(amount), big.NewInt(1_000_000))
}

type memCheckpoints struct {
	mu    sync.Mutex
	bet   *domain.PendingBet
	loads int
}

func newMemCheckpoints() *memCheckpoints { return &memCheckpoints{} }

func (m *memCheckpoints) Save(ctx context.Context, bet domain.PendingBet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bet = &bet
	return nil
}

func (m *memCheckpoints) Load(ctx context.Context) (domain.PendingBet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.bet == nil {
		return domain.PendingBet{}, domain.ErrNotFound
	}
	return *m.bet, nil
}

func (m *memCheckpoints) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bet = nil
	return nil
}

type stubExchange struct {
	book   domain.OrderBook
	result domain.OrderResult
	err    error
	posted *domain.SignedOrder
}

func (s *stubExchange) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	return s.book, nil
}

func (s *stubExchange) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	return 0.5, nil
}

func (s *stubExchange) PostOrder(ctx context.Context, signed domain.SignedOrder, creds *domain.APICredentials) (domain.OrderResult, error) {
	s.posted = &signed
	if s.err != nil {
		return domain.OrderResult{Success: false}, s.err
	}
	return s.result, nil
}

type captureBus struct {
	mu      sync.Mutex
	signals []domain.Signal
}

func (c *captureBus) Publish(ctx context.Context, sig domain.Signal) {
	c.mu.Lock()
	c.signals = append(c.signals, sig)
	c.mu.Unlock()
}

func (c *captureBus) count(channel string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, sig := range c.signals {
		if sig.Channel == channel {
			n++
		}
	}
	return n
}

func (c *captureBus) states() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, sig := range c.signals {
		if sig.Channel == "workflow.state" {
			out = append(out, sig.Payload["state"].(string))
		}
	}
	return out
}

type fakeWallet struct {
	addr    common.Address
	chainID int64
	addrErr error
	sign    func(json.RawMessage) (string, error)
}

func (f *fakeWallet) Address(ctx context.Context) (common.Address, error) {
	if f.addrErr != nil {
		return common.Address{}, f.addrErr
	}
	return f.addr, nil
}
func (f *fakeWallet) ChainID(ctx context.Context) (int64, error)          { return f.chainID, nil }
func (f *fakeWallet) SwitchChain(ctx context.Context, spec domain.ChainSpec) error {
	f.chainID = spec.ID
	return nil
}
func (f *fakeWallet) SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error) {
	return common.Hash{}, nil
}
func (f *fakeWallet) SignTypedData(ctx context.Context, address common.Address, typedData json.RawMessage) (string, error) {
	return f.sign(typedData)
}

// fixedBalance reports a constant balance for any balanceOf call.
type fixedBalance struct {
	amount *big.Int
}

func (f fixedBalance) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return common.LeftPadBytes(f.amount.Bytes(), 32), nil
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
