package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/types"
)

// ResultCacheService caches finished balance results in Redis, keyed by a
// deterministic digest of the request. Identical rosters with identical
// settings hit the cache instead of re-solving.
type ResultCacheService struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewResultCacheService creates a new result cache service
func NewResultCacheService(client *redis.Client, logger *logrus.Logger) *ResultCacheService {
	return &ResultCacheService{
		client: client,
		logger: logger,
	}
}

// RequestKey derives the cache key for an optimization request. Player order
// does not affect the key; a caller-provided seed does, because seeded runs
// are expected to be reproducible, not shared.
func RequestKey(composition types.Composition, teamCount int, players []types.Player, settings *types.OptimizeSettings) string {
	ids := make([]string, 0, len(players))
	byID := make(map[string]types.Player, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	sort.Strings(ids)

	sorted := make([]types.Player, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, byID[id])
	}

	payload, _ := json.Marshal(struct {
		Composition types.Composition       `json:"composition"`
		TeamCount   int                     `json:"team_count"`
		Players     []types.Player          `json:"players"`
		Settings    *types.OptimizeSettings `json:"settings"`
	}{composition, teamCount, sorted, settings})

	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// SetResult stores a balance result in cache
func (c *ResultCacheService) SetResult(ctx context.Context, key string, result *types.OptimizeResult, expiration time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal balance result: %w", err)
	}

	fullKey := fmt.Sprintf("balance:%s", key)
	if err := c.client.Set(ctx, fullKey, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set balance result in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  fullKey,
		"expiration": expiration,
		"team_count": len(result.Teams),
	}).Debug("Cached balance result")

	return nil
}

// GetResult retrieves a balance result from cache
func (c *ResultCacheService) GetResult(ctx context.Context, key string) (*types.OptimizeResult, error) {
	fullKey := fmt.Sprintf("balance:%s", key)
	data, err := c.client.Get(ctx, fullKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("balance result not found in cache")
		}
		return nil, fmt.Errorf("failed to get balance result from cache: %w", err)
	}

	var result types.OptimizeResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balance result: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  fullKey,
		"team_count": len(result.Teams),
	}).Debug("Retrieved balance result from cache")

	return &result, nil
}

// DeleteResult removes a balance result from cache
func (c *ResultCacheService) DeleteResult(ctx context.Context, key string) error {
	fullKey := fmt.Sprintf("balance:%s", key)
	if err := c.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("failed to delete balance result from cache: %w", err)
	}

	c.logger.WithField("cache_key", fullKey).Debug("Deleted balance result from cache")
	return nil
}

// GetStatus returns cache statistics
func (c *ResultCacheService) GetStatus(ctx context.Context) map[string]interface{} {
	info := c.client.Info(ctx)
	dbSize := c.client.DBSize(ctx)

	status := map[string]interface{}{
		"service":   "balance-result-cache",
		"timestamp": time.Now(),
		"connected": true,
	}

	if dbSize.Err() == nil {
		status["db_size"] = dbSize.Val()
	}

	if info.Err() == nil {
		status["redis_info"] = "available"
	}

	balanceKeys, err := c.client.Keys(ctx, "balance:*").Result()
	if err == nil {
		status["balance_keys"] = len(balanceKeys)
	}

	return status
}

// FlushResults clears all balance results from cache
func (c *ResultCacheService) FlushResults(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, "balance:*").Result()
	if err != nil {
		return fmt.Errorf("failed to get balance keys: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete balance keys: %w", err)
		}
	}

	c.logger.WithField("deleted_keys", len(keys)).Info("Flushed balance result cache")
	return nil
}

// SetWithRetry attempts to set a cache entry with retries
func (c *ResultCacheService) SetWithRetry(ctx context.Context, key string, value interface{}, expiration time.Duration, maxRetries int) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
			lastErr = err
			c.logger.WithError(err).WithField("attempt", i+1).Warn("Cache set attempt failed")
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
			continue
		}
		return nil
	}

	return fmt.Errorf("failed to set cache after %d retries: %w", maxRetries, lastErr)
}
