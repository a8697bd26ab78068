package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parivision/bridgebet/internal/domain"
)

// credentialTTL bounds how long derived API credentials are trusted before
// the user must re-derive them.
const credentialTTL = 7 * 24 * time.Hour

// CredentialStore implements domain.CredentialStore. Entries expire via
// Redis TTL and are additionally checked against IssuedAt, so a restored
// backup cannot resurrect stale credentials.
type CredentialStore struct {
	rdb *redis.Client
}

// NewCredentialStore creates a CredentialStore backed by the given Client.
func NewCredentialStore(c *Client) *CredentialStore {
	return &CredentialStore{rdb: c.Underlying()}
}

func credKey(userAddress string) string {
	return "bridgebet:creds:" + strings.ToLower(userAddress)
}

// Get returns cached credentials, or domain.ErrNotFound for missing or
// expired entries.
func (s *CredentialStore) Get(ctx context.Context, userAddress string) (domain.APICredentials, error) {
	data, err := s.rdb.Get(ctx, credKey(userAddress)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.APICredentials{}, domain.ErrNotFound
		}
		return domain.APICredentials{}, fmt.Errorf("redis: get credentials: %w", err)
	}

	var creds domain.APICredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return domain.APICredentials{}, fmt.Errorf("redis: decode credentials: %w", err)
	}
	if time.Since(creds.IssuedAt) > credentialTTL {
		_ = s.rdb.Del(ctx, credKey(userAddress)).Err()
		return domain.APICredentials{}, domain.ErrNotFound
	}
	return creds, nil
}

// Put stores credentials with the standard validity window.
func (s *CredentialStore) Put(ctx context.Context, userAddress string, creds domain.APICredentials) error {
	if creds.IssuedAt.IsZero() {
		creds.IssuedAt = time.Now()
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("redis: marshal credentials: %w", err)
	}
	if err := s.rdb.Set(ctx, credKey(userAddress), data, credentialTTL).Err(); err != nil {
		return fmt.Errorf("redis: put credentials: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CredentialStore = (*CredentialStore)(nil)
