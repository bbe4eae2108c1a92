package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevocationStore records session tokens invalidated by logout. The
// check must run before any authenticated operation: revoked tokens are
// rejected even though their signature still verifies.
type TokenRevocationStore interface {
	// Revoke marks the token as invalid for ttl, after which the token has
	// expired on its own anyway.
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	// IsRevoked reports whether the exact token string has been revoked.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisRevocationStore backs revocation with Redis so entries survive process
// restarts and are shared across instances. Keys carry the TTL, so the set
// never grows past the live token horizon.
type RedisRevocationStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRevocationStore constructs a Redis-backed revocation store.
func NewRedisRevocationStore(client *redis.Client, keyPrefix string) *RedisRevocationStore {
	if keyPrefix == "" {
		keyPrefix = "session:revoked:"
	}
	return &RedisRevocationStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisRevocationStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.keyPrefix + hex.EncodeToString(sum[:])
}

// Revoke stores the token digest with the provided TTL.
func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, s.key(token), time.Now().UTC().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token digest is present.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocationStore keeps revocations in process memory. It is the
// fallback for single-process deployments and tests; revocations are lost on
// restart, which Redis-backed deployments avoid.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryRevocationStore constructs an in-memory revocation store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

// Revoke records the token until its expiry.
func (s *MemoryRevocationStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(now)
	s.revoked[token] = now.Add(ttl)
	return nil
}

// IsRevoked reports whether the token is currently revoked.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, token string) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.revoked[token]
	if !ok {
		return false, nil
	}
	if now.After(expiry) {
		delete(s.revoked, token)
		return false, nil
	}
	return true, nil
}

func (s *MemoryRevocationStore) purgeLocked(now time.Time) {
	for token, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, token)
		}
	}
}
