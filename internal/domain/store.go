package domain

import (
	"context"
	"time"
)

// CheckpointStore persists the single PendingBet checkpoint under a fixed
// key. Load returns ErrNotFound when no checkpoint exists. Implementations
// must make Save durable before returning, since the process may be torn
// down immediately afterwards.
type CheckpointStore interface {
	Save(ctx context.Context, bet PendingBet) error
	Load(ctx context.Context) (PendingBet, error)
	Delete(ctx context.Context) error
}

// ProxyStore caches the resolved destination-exchange proxy address per
// user address. Entries are immutable once confirmed: Put overwrites only
// on explicit user action, never silently.
type ProxyStore interface {
	Get(ctx context.Context, userAddress string) (string, error)
	Put(ctx context.Context, userAddress, proxyAddress string) error
	Remove(ctx context.Context, userAddress string) error
}

// APICredentials are the derived exchange API credentials cached per user.
type APICredentials struct {
	APIKey     string    `json:"apiKey"`
	Secret     string    `json:"secret"`
	Passphrase string    `json:"passphrase"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// CredentialStore caches derived API credentials with a bounded validity
// window. Get returns ErrNotFound for missing or expired entries.
type CredentialStore interface {
	Get(ctx context.Context, userAddress string) (APICredentials, error)
	Put(ctx context.Context, userAddress string, creds APICredentials) error
}

// Signal is one UI-facing event: a price update or a workflow stage change.
type Signal struct {
	Channel string         `json:"channel"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

// SignalBus fans out signals to UI subscribers (the websocket hub).
// Publishing must never block workflow progress; implementations drop
// signals rather than stall.
type SignalBus interface {
	Publish(ctx context.Context, sig Signal)
}
