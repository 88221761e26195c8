package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/domain/lending"
)

const snapshotPrefix = "magnify:contract_data:"

// NewRedisClient creates a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	log.Info().Str("addr", addr).Int("db", db).Msg("redis connection established")
	return client, nil
}

// RedisStore keeps snapshots as JSON documents shared across API replicas.
// Keys carry no TTL; only Delete or Clear remove them.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: snapshotPrefix}
}

func (s *RedisStore) Get(ctx context.Context, wallet string) (*lending.ContractData, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+wallet).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis snapshot get: %w", err)
	}
	var data lending.ContractData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", wallet, err)
	}
	return &data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, wallet string, data *lending.ContractData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", wallet, err)
	}
	if err := s.client.Set(ctx, s.prefix+wallet, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis snapshot set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, wallet string) error {
	if err := s.client.Del(ctx, s.prefix+wallet).Err(); err != nil {
		return fmt.Errorf("redis snapshot delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis snapshot scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis snapshot clear: %w", err)
	}
	return nil
}
