package rulestore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/tradepulse/internal/strategy"
)

const keyPrefix = "tradepulse:rule:"

// RedisStore keeps rule blobs in Redis so multiple processes share one
// active rule set.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetRule returns the active rule for an instrument.
func (r *RedisStore) GetRule(ctx context.Context, instrument string) (string, error) {
	rule, err := r.client.Get(ctx, keyPrefix+instrument).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("no rule configured for %s", instrument)
	}
	if err != nil {
		return "", fmt.Errorf("rule read for %s: %w", instrument, err)
	}
	return rule, nil
}

// PutRule validates and replaces the rule for an instrument. Validation
// runs before the write so a rejected rule never reaches Redis.
func (r *RedisStore) PutRule(ctx context.Context, instrument, rule string) error {
	if err := strategy.ValidateRule(rule); err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+instrument, rule, 0).Err(); err != nil {
		return fmt.Errorf("rule write for %s: %w", instrument, err)
	}
	return nil
}
