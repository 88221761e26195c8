package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// MemoryNonceStore tracks issued sign-in nonces in process memory.
type MemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{nonces: map[string]time.Time{}, now: time.Now}
}

// Issue records nonce until ttl elapses. It reports false if the nonce is
// already outstanding.
func (s *MemoryNonceStore) Issue(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	if _, ok := s.nonces[nonce]; ok {
		return false, nil
	}
	s.nonces[nonce] = now.Add(ttl)
	return true, nil
}

// Consume removes nonce and reports whether it was outstanding and unexpired.
func (s *MemoryNonceStore) Consume(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.nonces[nonce]
	if !ok {
		return false, nil
	}
	delete(s.nonces, nonce)
	return s.now().Before(expiry), nil
}

func (s *MemoryNonceStore) sweep(now time.Time) {
	for n, expiry := range s.nonces {
		if !now.Before(expiry) {
			delete(s.nonces, n)
		}
	}
}

// RedisNonceStore keeps sign-in nonces in Redis so any replica can verify them.
type RedisNonceStore struct {
	client *goredis.Client
	prefix string
}

func NewRedisNonceStore(client *goredis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: "magnify:auth_nonce:"}
}

func (s *RedisNonceStore) Issue(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, s.prefix+nonce, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis nonce issue: %w", err)
	}
	return result == "OK", nil
}

func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	n, err := s.client.Del(ctx, s.prefix+nonce).Result()
	if err != nil {
		return false, fmt.Errorf("redis nonce consume: %w", err)
	}
	return n == 1, nil
}
