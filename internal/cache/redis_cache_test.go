package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
)

func newRedisCache(t *testing.T) (*RedisReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisReportCache(client), mr
}

func TestRedisReportCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	_, ok, err := c.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, ok)

	profit := decimal.RequireFromString("45.5")
	margin := "45.50%"
	report := &domain.FifoReport{
		Summary: &domain.FifoSummary{TotalProfit: &profit, TotalProfitMargin: &margin},
		Items: []domain.FifoConsumptionRecord{
			{Product: domain.RefFromEmbedded(domain.EmbeddedProduct{ObjectID: "p1", Name: "Ibuprofen"}), TotalCost: decimal.RequireFromString("54.5"), ProfitMargin: margin},
		},
	}
	require.NoError(t, c.Set(ctx, "s-1", report, 2*time.Minute))
	assert.Equal(t, 2*time.Minute, mr.TTL(ReportKey("s-1")))

	got, ok, err := c.Get(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "45.5", got.Summary.TotalProfit.String())
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].Product.Resolve())
	assert.Equal(t, domain.RefKindEmbedded, got.Items[0].Product.Kind)
	assert.Equal(t, "54.5", got.Items[0].TotalCost.String())

	mr.FastForward(3 * time.Minute)
	_, ok, err = c.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisReportCacheCorruptPayload(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set(ReportKey("s-2"), "{broken"))
	_, ok, err := c.Get(context.Background(), "s-2")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNoopReportCache(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	require.NoError(t, c.Set(context.Background(), "s-1", &domain.FifoReport{}, time.Minute))
	got, ok, err := c.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}
