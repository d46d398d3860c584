package quotes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// fetchConcurrency bounds in-flight TWSE requests. The shared rate limiter
// still spaces them out; this only caps goroutines.
const fetchConcurrency = 4

// Collector fans out monthly quote fetches across codes and lands the
// results in the store. Individual code failures do not abort the batch.
type Collector struct {
	client *Client
	store  *Store
	logger *slog.Logger
}

// CollectResult is the per-batch outcome of a collection pass.
type CollectResult struct {
	Codes      int
	Failed     []string
	RowsAdded  int
	IndicesDay string
}

// NewCollector creates a quote collector.
func NewCollector(client *Client, store *Store, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{client: client, store: store, logger: logger}
}

// CollectMonth fetches the month containing the given date for every code
// and merges the rows into history. Returns an aggregate result; only a
// context cancellation aborts the whole pass.
func (c *Collector) CollectMonth(ctx context.Context, codes []string, month time.Time) (*CollectResult, error) {
	result := &CollectResult{Codes: len(codes)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			quotes, err := c.client.MonthlyQuotes(gctx, code, month)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("quote fetch failed", "code", code, "error", err)
				mu.Lock()
				result.Failed = append(result.Failed, code)
				mu.Unlock()
				return nil
			}

			added, err := c.store.AppendQuotes(code, quotes)
			if err != nil {
				c.logger.Warn("quote store failed", "code", code, "error", err)
				mu.Lock()
				result.Failed = append(result.Failed, code)
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result.RowsAdded += added
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	c.logger.Info("quote collection finished",
		"codes", result.Codes,
		"failed", len(result.Failed),
		"rows_added", result.RowsAdded)
	return result, nil
}

// CollectIndices fetches and stores the index closes for one trading day.
func (c *Collector) CollectIndices(ctx context.Context, date time.Time) error {
	values, err := c.client.DayIndices(ctx, date)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		c.logger.Info("no index data for day", "date", date.Format("2006-01-02"))
		return nil
	}
	return c.store.AppendIndices(values)
}
