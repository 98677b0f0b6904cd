package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/pario-ai/respcache/pkg/metrics"
	"github.com/pario-ai/respcache/pkg/models"
)

// AddEntry stores responses for modelID and params. The entry, its
// responses and its parameters are written in one transaction; an invalid
// parameter value rejects the whole write.
//
// AddEntry does not look for an existing entry: writing the same model id
// and parameters twice stores two entries. Callers check GetEntry first.
func (c *Cache) AddEntry(ctx context.Context, modelID string, responses []string, params models.Params) error {
	if modelID == "" {
		return ErrEmptyModelID
	}
	if len(responses) == 0 {
		return ErrNoResponses
	}
	encoded, err := encodeAll(params)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("add").Observe(time.Since(start).Seconds())
	}()

	b := c.dialect.builder()
	var entryID int64
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		now := c.timestamp()
		query, args, err := b.Insert(tblEntries).
			Columns("model_id", "created_at", "last_accessed_at").
			Values(modelID, now, now).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build entry insert: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&entryID); err != nil {
			return fmt.Errorf("insert cache entry: %w", err)
		}

		ins := b.Insert(tblResponses).Columns("entry_id", "response")
		for _, r := range responses {
			ins = ins.Values(entryID, r)
		}
		query, args, err = ins.ToSql()
		if err != nil {
			return fmt.Errorf("build response insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert cache responses: %w", err)
		}

		for _, p := range encoded {
			var stringID int64
			if p.slot == slotString {
				if stringID, err = c.intern(ctx, tx, p.str); err != nil {
					return err
				}
			}
			s, i, f := p.columns(stringID)
			query, args, err := b.Insert(tblParams).
				Columns("entry_id", "name", "string_id", "int_value", "float_value").
				Values(entryID, p.name, s, i, f).
				ToSql()
			if err != nil {
				return fmt.Errorf("build parameter insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert cache parameter %s: %w", p.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.WritesTotal.WithLabelValues(modelID).Inc()
	c.log.Debug("cache entry added",
		zap.String("model", modelID),
		zap.Int64("entry_id", entryID),
		zap.Int("responses", len(responses)),
		zap.Int("params", len(encoded)))
	return nil
}

// GetEntry returns the responses of the entry whose model id is modelID and
// whose parameter set equals params exactly: every query parameter must be
// stored with the same name and type, and the entry must hold no other
// parameters. ok is false on a miss.
//
// On a hit the entry's last access time is refreshed. When several entries
// qualify, which one is returned is unspecified.
func (c *Cache) GetEntry(ctx context.Context, modelID string, params models.Params) (responses []string, ok bool, err error) {
	encoded, err := encodeAll(params)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	query, args, err := c.lookupQuery(modelID, encoded).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build lookup query: %w", err)
	}

	err = c.withTx(ctx, func(tx *sql.Tx) error {
		var entryID int64
		err := tx.QueryRowContext(ctx, query, args...).Scan(&entryID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup cache entry: %w", err)
		}

		responses, err = c.loadResponses(ctx, tx, entryID)
		if err != nil {
			return err
		}

		q, a, err := c.dialect.builder().
			Update(tblEntries).
			Set("last_accessed_at", c.timestamp()).
			Where(sq.Eq{"id": entryID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build access update: %w", err)
		}
		res, err := tx.ExecContext(ctx, q, a...)
		if err != nil {
			return fmt.Errorf("touch cache entry: %w", err)
		}
		touched, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("touch cache entry: %w", err)
		}
		// Evicted between the lookup and the touch.
		if touched == 0 {
			responses = nil
			return nil
		}
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !ok {
		c.misses.Add(1)
		metrics.LookupsTotal.WithLabelValues(modelID, metrics.ResultMiss).Inc()
		c.log.Debug("cache miss", zap.String("model", modelID), zap.Int("params", len(encoded)))
		return nil, false, nil
	}
	c.hits.Add(1)
	metrics.LookupsTotal.WithLabelValues(modelID, metrics.ResultHit).Inc()
	c.log.Debug("cache hit", zap.String("model", modelID), zap.Int("responses", len(responses)))
	return responses, true, nil
}

// lookupQuery selects the id of an entry whose parameter set equals params.
//
// The inner query keeps entries of the model whose parameter rows match one
// of the query predicates, and requires the number of distinct matched names
// to equal the query size. That alone would accept entries carrying extra
// parameters, so the outer query also requires the entry's total parameter
// count to equal the query size.
func (c *Cache) lookupQuery(modelID string, params []encodedParam) sq.SelectBuilder {
	n := len(params)

	inner := sq.Select("mc.id").
		From(tblEntries + " mc").
		LeftJoin(tblParams + " mp ON mp.entry_id = mc.id").
		Where(sq.Eq{"mc.model_id": modelID})

	if n > 0 {
		match := make(sq.Or, 0, n)
		for _, p := range params {
			switch p.slot {
			case slotString:
				match = append(match, sq.And{
					sq.Eq{"mp.name": p.name},
					sq.Expr("mp.string_id = (SELECT id FROM "+tblStrings+" WHERE value = ?)", p.str),
				})
			case slotInt:
				match = append(match, sq.Eq{"mp.name": p.name, "mp.int_value": p.i})
			case slotFloat:
				match = append(match, sq.Eq{"mp.name": p.name, "mp.float_value": p.f})
			}
		}
		inner = inner.Where(match)
	}

	inner = inner.GroupBy("mc.id").Having("COUNT(DISTINCT mp.name) = ?", n)

	return c.dialect.builder().
		Select("matched.id").
		FromSelect(inner, "matched").
		Where("(SELECT COUNT(*) FROM "+tblParams+" p WHERE p.entry_id = matched.id) = ?", n).
		Limit(1)
}

func (c *Cache) loadResponses(ctx context.Context, tx *sql.Tx, entryID int64) ([]string, error) {
	query, args, err := c.dialect.builder().
		Select("response").
		From(tblResponses).
		Where(sq.Eq{"entry_id": entryID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build response query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cache responses: %w", err)
	}
	defer rows.Close()

	responses := []string{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan cache response: %w", err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
