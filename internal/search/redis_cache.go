package search

import (
	"context"
	"encoding/json"
	"fmt"

	"backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "backoffice:search:units"

type hashCmdable interface {
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache keeps the unit cache in one redis hash so every replica of the
// server shares it. The hash has no TTL.
type RedisCache struct {
	store hashCmdable
	key   string
}

func NewRedisCache(client *redis.Client, key string) *RedisCache {
	return newRedisCache(client, key)
}

func newRedisCache(store hashCmdable, key string) *RedisCache {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisCache{store: store, key: key}
}

func (c *RedisCache) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.UnitRef, error) {
	found := make(map[uuid.UUID]domain.UnitRef, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = id.String()
	}

	values, err := c.store.HMGet(ctx, c.key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("read unit cache: %w", err)
	}
	for i, raw := range values {
		encoded, ok := raw.(string)
		if !ok || i >= len(ids) {
			continue
		}
		var unit domain.UnitRef
		if err := json.Unmarshal([]byte(encoded), &unit); err != nil {
			return nil, fmt.Errorf("decode cached unit %s: %w", ids[i], err)
		}
		found[ids[i]] = unit
	}
	return found, nil
}

func (c *RedisCache) PutMany(ctx context.Context, units []domain.UnitRef) error {
	if len(units) == 0 {
		return nil
	}
	values := make([]any, 0, len(units)*2)
	for _, unit := range units {
		encoded, err := json.Marshal(unit)
		if err != nil {
			return fmt.Errorf("encode unit %s: %w", unit.ID, err)
		}
		values = append(values, unit.ID.String(), string(encoded))
	}
	if err := c.store.HSet(ctx, c.key, values...).Err(); err != nil {
		return fmt.Errorf("write unit cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	if err := c.store.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("clear unit cache: %w", err)
	}
	return nil
}
