package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/parivision/bridgebet/internal/domain"
)

// ProxyStore implements domain.ProxyStore. Keys are
// "bridgebet:proxy:{address}" with no expiry: a proxy wallet, once deployed,
// never changes for its owner.
type ProxyStore struct {
	rdb *redis.Client
}

// NewProxyStore creates a ProxyStore backed by the given Client.
func NewProxyStore(c *Client) *ProxyStore {
	return &ProxyStore{rdb: c.Underlying()}
}

func proxyKey(userAddress string) string {
	return "bridgebet:proxy:" + strings.ToLower(userAddress)
}

// Get returns the cached proxy for a user, or domain.ErrNotFound.
func (s *ProxyStore) Get(ctx context.Context, userAddress string) (string, error) {
	proxy, err := s.rdb.Get(ctx, proxyKey(userAddress)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get proxy: %w", err)
	}
	return proxy, nil
}

// Put stores the proxy for a user.
func (s *ProxyStore) Put(ctx context.Context, userAddress, proxyAddress string) error {
	if err := s.rdb.Set(ctx, proxyKey(userAddress), proxyAddress, 0).Err(); err != nil {
		return fmt.Errorf("redis: put proxy: %w", err)
	}
	return nil
}

// Remove drops the cached proxy for a user.
func (s *ProxyStore) Remove(ctx context.Context, userAddress string) error {
	if err := s.rdb.Del(ctx, proxyKey(userAddress)).Err(); err != nil {
		return fmt.Errorf("redis: remove proxy: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProxyStore = (*ProxyStore)(nil)
