package price

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parivision/bridgebet/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(gecko, binance, coincap string) config.PriceConfig {
	cfg := config.Defaults().Price
	cfg.CoinGeckoURL = gecko
	cfg.BinanceURL = binance
	cfg.CoinCapURL = coincap
	return cfg
}

func TestRefresh_FirstSourceWins(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"binancecoin":{"usd":612.5}}`))
	}))
	defer gecko.Close()
	binance := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("binance should not be queried when coingecko succeeds")
	}))
	defer binance.Close()

	o := NewOracle(testConfig(gecko.URL, binance.URL, ""), nil, discardLogger())
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	price, live := o.Price()
	if price != 612.5 || !live {
		t.Fatalf("got price=%f live=%v, want 612.5 live", price, live)
	}
}

func TestRefresh_FallsThroughToNextSource(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer gecko.Close()
	binance := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BNBUSDT","price":"598.1"}`))
	}))
	defer binance.Close()

	o := NewOracle(testConfig(gecko.URL, binance.URL, ""), nil, discardLogger())
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	price, _ := o.Price()
	if price != 598.1 {
		t.Fatalf("got price=%f, want 598.1", price)
	}
}

func TestRefresh_AllSourcesFail_KeepsLastValue(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	cfg := testConfig(bad.URL, bad.URL, bad.URL)
	cfg.FallbackUSD = 600
	o := NewOracle(cfg, nil, discardLogger())

	if err := o.Refresh(context.Background()); err == nil {
		t.Fatal("expected error when all sources fail")
	}
	price, live := o.Price()
	if price != 600 || live {
		t.Fatalf("got price=%f live=%v, want fallback 600 not live", price, live)
	}
	if !o.UpdatedAt().IsZero() {
		t.Error("UpdatedAt should stay zero without a successful fetch")
	}
}

func TestRefresh_RejectsNonPositivePrice(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"binancecoin":{"usd":0}}`))
	}))
	defer gecko.Close()
	coincap := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"priceUsd":"601.2"}}`))
	}))
	defer coincap.Close()

	o := NewOracle(testConfig(gecko.URL, "", coincap.URL), nil, discardLogger())
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	price, _ := o.Price()
	if price != 601.2 {
		t.Fatalf("got price=%f, want coincap value 601.2", price)
	}
}

func TestRefresh_UpdatedAtAdvances(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"binancecoin":{"usd":610}}`))
	}))
	defer gecko.Close()

	o := NewOracle(testConfig(gecko.URL, "", ""), nil, discardLogger())
	before := time.Now()
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if o.UpdatedAt().Before(before) {
		t.Error("UpdatedAt not advanced after refresh")
	}
}
