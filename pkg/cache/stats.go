package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pario-ai/respcache/pkg/metrics"
	"github.com/pario-ai/respcache/pkg/models"
)

// CountEntries returns the number of entries per model id.
func (c *Cache) CountEntries(ctx context.Context) (map[string]int64, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT model_id, COUNT(*) FROM cache_entries GROUP BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("count cache entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var model string
		var n int64
		if err := rows.Scan(&model, &n); err != nil {
			return nil, fmt.Errorf("scan entry count: %w", err)
		}
		counts[model] = n
	}
	return counts, rows.Err()
}

// EarliestCreationTimes returns the earliest creation time per model id.
func (c *Cache) EarliestCreationTimes(ctx context.Context) (map[string]time.Time, error) {
	return c.timesPerModel(ctx, "MIN", "created_at")
}

// LatestCreationTimes returns the latest creation time per model id.
func (c *Cache) LatestCreationTimes(ctx context.Context) (map[string]time.Time, error) {
	return c.timesPerModel(ctx, "MAX", "created_at")
}

// EarliestAccessTimes returns the earliest last access time per model id.
func (c *Cache) EarliestAccessTimes(ctx context.Context) (map[string]time.Time, error) {
	return c.timesPerModel(ctx, "MIN", "last_accessed_at")
}

// LatestAccessTimes returns the latest last access time per model id.
func (c *Cache) LatestAccessTimes(ctx context.Context) (map[string]time.Time, error) {
	return c.timesPerModel(ctx, "MAX", "last_accessed_at")
}

func (c *Cache) timesPerModel(ctx context.Context, fn, column string) (map[string]time.Time, error) {
	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("aggregate").Observe(time.Since(start).Seconds())
	}()

	// fn and column come from the fixed set used by the exported methods.
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT model_id, %s(%s) FROM cache_entries GROUP BY model_id`, fn, column))
	if err != nil {
		return nil, fmt.Errorf("query %s(%s): %w", strings.ToLower(fn), column, err)
	}
	defer rows.Close()

	times := make(map[string]time.Time)
	for rows.Next() {
		var model string
		var raw any
		if err := rows.Scan(&model, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		t, err := parseUTC(raw)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", model, err)
		}
		times[model] = t
	}
	return times, rows.Err()
}

// Summaries combines the per-model aggregates, sorted by model id.
func (c *Cache) Summaries(ctx context.Context) ([]models.ModelSummary, error) {
	counts, err := c.CountEntries(ctx)
	if err != nil {
		return nil, err
	}
	earliestCreated, err := c.EarliestCreationTimes(ctx)
	if err != nil {
		return nil, err
	}
	latestCreated, err := c.LatestCreationTimes(ctx)
	if err != nil {
		return nil, err
	}
	earliestAccess, err := c.EarliestAccessTimes(ctx)
	if err != nil {
		return nil, err
	}
	latestAccess, err := c.LatestAccessTimes(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.ModelSummary, 0, len(counts))
	for model, n := range counts {
		out = append(out, models.ModelSummary{
			ModelID:         model,
			Entries:         n,
			EarliestCreated: earliestCreated[model],
			LatestCreated:   latestCreated[model],
			EarliestAccess:  earliestAccess[model],
			LatestAccess:    latestAccess[model],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out, nil
}

// timeLayouts are tried in order when a timestamp comes back as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseUTC converts a stored timestamp to UTC. Text without zone information
// is taken to be UTC already.
func parseUTC(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseUTCString(v)
	case []byte:
		return parseUTCString(string(v))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %T", raw)
	}
}

func parseUTCString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
