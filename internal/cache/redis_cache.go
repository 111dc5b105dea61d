package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
)

const reportKeyPrefix = "pharmacy:fifo-report:"

type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(client *redis.Client) *RedisReportCache {
	return &RedisReportCache{client: client}
}

func ReportKey(saleID string) string {
	return reportKeyPrefix + saleID
}

func (c *RedisReportCache) Get(ctx context.Context, saleID string) (*domain.FifoReport, bool, error) {
	val, err := c.client.Get(ctx, ReportKey(saleID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.FifoReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, saleID string, value *domain.FifoReport, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ReportKey(saleID), payload, ttl).Err()
}
