// Package paymentstatus caches whether purchase orders have received any
// payment, so list views only ask the backend about entries that went stale.
package paymentstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/henry1266/pharmacy-pos-sub005/internal/logger"
	"github.com/henry1266/pharmacy-pos-sub005/internal/metrics"
	"github.com/henry1266/pharmacy-pos-sub005/internal/store"
)

const (
	StorageKey          = "purchaseOrderPaymentStatusCache"
	DefaultTTL          = 30 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
)

// Fetcher performs the batched payment-status lookup. Ids missing from the
// returned map are unpaid.
type Fetcher interface {
	FetchPaymentStatuses(ctx context.Context, ids []string) (map[string]bool, error)
}

type FetcherFunc func(ctx context.Context, ids []string) (map[string]bool, error)

func (f FetcherFunc) FetchPaymentStatuses(ctx context.Context, ids []string) (map[string]bool, error) {
	return f(ctx, ids)
}

// Entry is the persisted form of one status. Timestamp is Unix milliseconds.
type Entry struct {
	Status    bool  `json:"status"`
	Timestamp int64 `json:"timestamp"`
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log.WithComponent("payment-status")
		}
	}
}

func WithMetrics(m *metrics.PaymentStatusMetrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// Cache is safe for concurrent use. At most one refresh runs at a time; a
// refresh requested while another is in flight returns immediately.
type Cache struct {
	storage      store.KeyValue
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	log          *logger.Logger
	metrics      *metrics.PaymentStatusMetrics

	refreshing atomic.Bool

	mu    sync.RWMutex
	known map[string]bool
}

func New(storage store.KeyValue, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		storage:      storage,
		fetcher:      fetcher,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		log:          logger.Nop(),
		known:        map[string]bool{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetStatuses refreshes whatever is stale and returns a definite status for
// every requested id. On a failed refresh the best-known statuses are still
// returned together with the error.
func (c *Cache) GetStatuses(ctx context.Context, ids []string) (map[string]bool, error) {
	ids = normalizeIDs(ids)
	err := c.Refresh(ctx, ids)
	return c.Snapshot(ids), err
}

// Snapshot returns the in-memory statuses for ids without any I/O. Unknown
// ids are false.
func (c *Cache) Snapshot(ids []string) map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		result[id] = c.known[id]
	}
	return result
}

// Refresh loads the persisted map, fetches every missing or expired id in a
// single request and writes the merged map back. The work is detached from
// ctx cancellation so a caller that goes away cannot leave the cache
// half-merged; the fetch is bounded by the fetch timeout instead.
func (c *Cache) Refresh(ctx context.Context, ids []string) error {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		c.metrics.IncRefresh(metrics.RefreshSkipped)
		c.log.Debug(ctx, "payment status refresh already in flight")
		return nil
	}
	defer c.refreshing.Store(false)

	work := context.WithoutCancel(ctx)
	entries, loaded := c.load(work)
	now := c.now()

	fresh := make(map[string]bool, len(ids))
	stale := make([]string, 0, len(ids))
	for _, id := range ids {
		entry, ok := entries[id]
		if ok && c.isFresh(entry, now) {
			fresh[id] = entry.Status
			continue
		}
		stale = append(stale, id)
	}
	c.metrics.ObserveLookup(len(fresh), len(stale))
	c.merge(fresh)

	if len(stale) == 0 {
		c.metrics.IncRefresh(metrics.RefreshFresh)
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(work, c.fetchTimeout)
	defer cancel()
	statuses, err := c.fetcher.FetchPaymentStatuses(fetchCtx, stale)
	if err != nil {
		c.metrics.IncRefresh(metrics.RefreshFailed)
		// Fall back to whatever was known before, however old.
		previous := make(map[string]bool, len(stale))
		for _, id := range stale {
			if entry, ok := entries[id]; ok {
				previous[id] = entry.Status
			}
		}
		c.merge(previous)
		return fmt.Errorf("refresh payment status for %d orders: %w", len(stale), err)
	}

	timestamp := now.UnixMilli()
	fetched := make(map[string]bool, len(stale))
	for _, id := range stale {
		status := statuses[id]
		entries[id] = Entry{Status: status, Timestamp: timestamp}
		fetched[id] = status
	}
	c.merge(fetched)
	c.metrics.IncRefresh(metrics.RefreshFetched)

	if !loaded {
		// The persisted map could not be read; writing now would drop every
		// entry not in this batch.
		return nil
	}
	if err := c.save(work, entries); err != nil {
		c.log.Warn(ctx, "persist payment status cache", err)
	}
	return nil
}

func (c *Cache) isFresh(entry Entry, now time.Time) bool {
	age := now.Sub(time.UnixMilli(entry.Timestamp))
	return age <= c.ttl
}

// load reads the persisted map. A payload that does not parse heals to an
// empty cache; a storage error also yields an empty map but reports false so
// the caller leaves the stored value alone.
func (c *Cache) load(ctx context.Context) (map[string]Entry, bool) {
	raw, ok, err := c.storage.Get(ctx, StorageKey)
	if err != nil {
		c.log.Warn(ctx, "load payment status cache", err)
		return map[string]Entry{}, false
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return map[string]Entry{}, true
	}

	var entries map[string]Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil || entries == nil {
		c.log.Warn(ctx, "discarding unreadable payment status cache", err)
		return map[string]Entry{}, true
	}
	return entries, true
}

func (c *Cache) save(ctx context.Context, entries map[string]Entry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.storage.Set(ctx, StorageKey, string(payload))
}

func (c *Cache) merge(statuses map[string]bool) {
	if len(statuses) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, status := range statuses {
		c.known[id] = status
	}
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
