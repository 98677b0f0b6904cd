package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// intern returns the id of value in interned_strings, inserting it if it is
// not present yet. It must run inside the caller's write transaction so a
// concurrent writer cannot interleave between the insert and the lookup.
func (c *Cache) intern(ctx context.Context, tx *sql.Tx, value string) (int64, error) {
	query, args, err := c.dialect.builder().
		Insert(tblStrings).
		Columns("value").
		Values(value).
		Suffix("ON CONFLICT (value) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build intern query: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("intern string: %w", err)
	}

	query, args, err = c.dialect.builder().
		Select("id").
		From(tblStrings).
		Where("value = ?", value).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build intern lookup: %w", err)
	}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup interned string: %w", err)
	}
	return id, nil
}
