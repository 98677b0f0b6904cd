package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/pario-ai/respcache/pkg/metrics"
	"github.com/pario-ai/respcache/pkg/models"
)

// clearBatchSize bounds the number of ids bound into one DELETE.
var clearBatchSize = 500

// Clear deletes the entries matching filter together with their parameters
// and responses, then removes interned strings no parameter refers to any
// more. It returns the number of entries deleted. Everything runs in one
// transaction.
//
// The filter is evaluated once: the matching ids are selected (and locked
// where the engine supports row locks) before anything is deleted, so an
// entry touched concurrently is either removed whole or left whole.
func (c *Cache) Clear(ctx context.Context, filter models.ClearFilter) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("clear").Observe(time.Since(start).Seconds())
	}()

	b := c.dialect.builder()
	cond := c.clearCondition(filter)

	var deleted, collected int64
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		ids, err := c.matchingEntryIDs(ctx, tx, cond)
		if err != nil {
			return err
		}

		for len(ids) > 0 {
			batch := ids
			if len(batch) > clearBatchSize {
				batch = ids[:clearBatchSize]
			}
			ids = ids[len(batch):]

			for _, table := range []string{tblParams, tblResponses} {
				if _, err := execBuilder(ctx, tx, b.Delete(table).Where(sq.Eq{"entry_id": batch})); err != nil {
					return fmt.Errorf("delete from %s: %w", table, err)
				}
			}
			n, err := execBuilder(ctx, tx, b.Delete(tblEntries).Where(sq.Eq{"id": batch}))
			if err != nil {
				return fmt.Errorf("delete cache entries: %w", err)
			}
			deleted += n
		}

		collected, err = execBuilder(ctx, tx, b.Delete(tblStrings).Where(
			"NOT EXISTS (SELECT 1 FROM "+tblParams+" p WHERE p.string_id = "+tblStrings+".id)"))
		if err != nil {
			return fmt.Errorf("collect interned strings: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.EvictedEntriesTotal.Add(float64(deleted))
	metrics.CollectedStringsTotal.Add(float64(collected))
	c.log.Info("cache cleared",
		zap.String("model", filter.ModelID),
		zap.Time("created_before", filter.CreatedBefore),
		zap.Time("accessed_before", filter.AccessedBefore),
		zap.Int64("entries", deleted),
		zap.Int64("strings", collected))
	return deleted, nil
}

// matchingEntryIDs returns the ids of the entries matching cond, or of every
// entry when cond is nil.
func (c *Cache) matchingEntryIDs(ctx context.Context, tx *sql.Tx, cond sq.Sqlizer) ([]int64, error) {
	q := c.dialect.builder().Select("id").From(tblEntries).OrderBy("id")
	if cond != nil {
		q = q.Where(cond)
	}
	if c.dialect.lockRows != "" {
		q = q.Suffix(c.dialect.lockRows)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build eviction filter: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select entries to evict: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entry id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// clearCondition returns the conjunction of the set filter fields, or nil
// when none is set.
func (c *Cache) clearCondition(filter models.ClearFilter) sq.Sqlizer {
	var cond sq.And
	if filter.ModelID != "" {
		cond = append(cond, sq.Eq{"model_id": filter.ModelID})
	}
	if !filter.AccessedBefore.IsZero() {
		cond = append(cond, sq.Lt{"last_accessed_at": c.dialect.timeArg(filter.AccessedBefore)})
	}
	if !filter.CreatedBefore.IsZero() {
		cond = append(cond, sq.Lt{"created_at": c.dialect.timeArg(filter.CreatedBefore)})
	}
	if len(cond) == 0 {
		return nil
	}
	return cond
}

func execBuilder(ctx context.Context, tx *sql.Tx, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
