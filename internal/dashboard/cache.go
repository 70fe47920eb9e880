package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/events"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

const cacheSize = 64

// MartReader reads a whole mart. *marts.Builder satisfies it.
type MartReader interface {
	Query(ctx context.Context, name string) (*warehouse.Table, error)
}

// CachedReader keeps mart tables in memory for ttl. Pages filter the cached
// table instead of querying the warehouse per request.
type CachedReader struct {
	next  MartReader
	cache *expirable.LRU[string, *warehouse.Table]
}

func NewCachedReader(next MartReader, ttl time.Duration) *CachedReader {
	return &CachedReader{
		next:  next,
		cache: expirable.NewLRU[string, *warehouse.Table](cacheSize, nil, ttl),
	}
}

func (c *CachedReader) Query(ctx context.Context, name string) (*warehouse.Table, error) {
	if t, ok := c.cache.Get(name); ok {
		return t, nil
	}
	t, err := c.next.Query(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, t)
	return t, nil
}

// Purge drops every cached mart.
func (c *CachedReader) Purge() { c.cache.Purge() }

// PurgeOnRefresh empties the cache whenever the marts are rebuilt. It blocks
// until ctx ends.
func (c *CachedReader) PurgeOnRefresh(ctx context.Context, bus events.Bus) error {
	ch, cancel, err := bus.Subscribe(ctx, events.MartsRefreshed)
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			c.Purge()
			slog.Debug("mart cache purged", "load_id", ev.LoadID)
		}
	}
}
