package file

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/parivision/bridgebet/internal/domain"
)

func TestCheckpoint_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pending_bet.json")
	s := NewCheckpointStore(path)

	if _, err := s.Load(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty store: expected ErrNotFound, got %v", err)
	}

	bet := domain.PendingBet{
		MarketSlug:           "will-a-win",
		TokenID:              "tok-1",
		OutcomeLabel:         "Yes",
		ReferencePrice:       0.4,
		ExpectedStableAmount: 60,
		DestinationProxy:     "0xproxy",
		BridgeTxHash:         "0xhash",
		State:                domain.StateSourceBridged,
		CreatedAt:            time.Now().UnixMilli(),
	}
	if err := s.Save(ctx, bet); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != bet {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, bet)
	}

	if err := s.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("after delete: expected ErrNotFound, got %v", err)
	}
	// Deleting again must be a no-op.
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCheckpoint_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewCheckpointStore(filepath.Join(t.TempDir(), "cp.json"))

	first := domain.PendingBet{MarketSlug: "a", State: domain.StateQuoted}
	second := domain.PendingBet{MarketSlug: "a", State: domain.StateSourceSwapped}
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.State != domain.StateSourceSwapped {
		t.Fatalf("state = %s, want latest", got.State)
	}
}

func TestRegistry_ProxyRoundtrip(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(filepath.Join(t.TempDir(), "registry.json"))

	if _, err := r.Get(ctx, "0xUser"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Put(ctx, "0xUser", "0xProxy"); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Address lookup is case-insensitive.
	got, err := r.Get(ctx, "0xuser")
	if err != nil || got != "0xProxy" {
		t.Fatalf("get = %q, %v", got, err)
	}
	if err := r.Remove(ctx, "0xUSER"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Get(ctx, "0xUser"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("after remove: expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_CredentialExpiry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(filepath.Join(t.TempDir(), "registry.json"))
	creds := CredentialView{r}

	fresh := domain.APICredentials{APIKey: "k", Secret: "s", Passphrase: "p", IssuedAt: time.Now()}
	if err := creds.Put(ctx, "0xuser", fresh); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := creds.Get(ctx, "0xuser"); err != nil {
		t.Fatalf("fresh creds should load: %v", err)
	}

	stale := domain.APICredentials{APIKey: "k", IssuedAt: time.Now().Add(-8 * 24 * time.Hour)}
	if err := r.PutCredentials(ctx, "0xold", stale); err != nil {
		t.Fatalf("put stale: %v", err)
	}
	if _, err := creds.Get(ctx, "0xold"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stale creds: expected ErrNotFound, got %v", err)
	}
}
