package cache

import (
	"context"
	"time"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
)

// ReportCache holds FIFO reports by sale id for a short while, so opening the
// same sale repeatedly does not recompute cost consumption upstream.
type ReportCache interface {
	Get(ctx context.Context, saleID string) (*domain.FifoReport, bool, error)
	Set(ctx context.Context, saleID string, value *domain.FifoReport, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.FifoReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.FifoReport, _ time.Duration) error {
	return nil
}
