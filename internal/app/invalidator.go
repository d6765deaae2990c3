package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// CacheInvalidator drops cached projections that a settled payment makes
// stale. Implementations must tolerate being called with a nil receiver so
// callers do not have to branch on whether caching is enabled.
type CacheInvalidator interface {
	InvalidateBalance(ctx context.Context, accountID string) error
	InvalidateBeneficiaries(ctx context.Context, accountID string, categoryCode string) error
}

// RedisCacheInvalidator evicts read-side cache entries in Redis.
type RedisCacheInvalidator struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCacheInvalidator(client redis.UniversalClient, prefix string) *RedisCacheInvalidator {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "billpay:cache"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisCacheInvalidator{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (r *RedisCacheInvalidator) InvalidateBalance(ctx context.Context, accountID string) error {
	if r == nil || r.client == nil {
		return nil
	}
	normalizedAccount := strings.TrimSpace(accountID)
	if normalizedAccount == "" {
		return nil
	}

	key := fmt.Sprintf("%s:balance:%s", r.prefix, normalizedAccount)
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCacheInvalidator) InvalidateBeneficiaries(ctx context.Context, accountID string, categoryCode string) error {
	if r == nil || r.client == nil {
		return nil
	}
	normalizedAccount := strings.TrimSpace(accountID)
	if normalizedAccount == "" {
		return nil
	}

	normalizedCategory := strings.TrimSpace(categoryCode)
	if normalizedCategory == "" {
		normalizedCategory = "*"
	}
	if normalizedCategory != "*" {
		key := fmt.Sprintf("%s:beneficiaries:%s:%s", r.prefix, normalizedAccount, normalizedCategory)
		return r.client.Del(ctx, key).Err()
	}

	pattern := fmt.Sprintf("%s:beneficiaries:%s:*", r.prefix, normalizedAccount)
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
