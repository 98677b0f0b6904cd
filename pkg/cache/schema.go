package cache

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Table names.
const (
	tblEntries   = "cache_entries"
	tblStrings   = "interned_strings"
	tblParams    = "cache_params"
	tblResponses = "cache_responses"
)

// sqliteTimeLayout is fixed width so stored timestamps compare correctly as
// text. It carries no zone; values are always written in UTC.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	id INTEGER PRIMARY KEY,
	model_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_accessed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS interned_strings (
	id INTEGER PRIMARY KEY,
	value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS cache_params (
	id INTEGER PRIMARY KEY,
	entry_id INTEGER NOT NULL REFERENCES cache_entries(id),
	name TEXT NOT NULL,
	string_id INTEGER REFERENCES interned_strings(id),
	int_value INTEGER,
	float_value REAL
);
CREATE TABLE IF NOT EXISTS cache_responses (
	id INTEGER PRIMARY KEY,
	entry_id INTEGER NOT NULL REFERENCES cache_entries(id),
	response TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_model_id ON cache_entries(model_id);
CREATE INDEX IF NOT EXISTS idx_params_entry_name ON cache_params(entry_id, name);
CREATE INDEX IF NOT EXISTS idx_params_string_id ON cache_params(string_id);
CREATE INDEX IF NOT EXISTS idx_responses_entry ON cache_responses(entry_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	id BIGSERIAL PRIMARY KEY,
	model_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS interned_strings (
	id BIGSERIAL PRIMARY KEY,
	value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS cache_params (
	id BIGSERIAL PRIMARY KEY,
	entry_id BIGINT NOT NULL REFERENCES cache_entries(id),
	name TEXT NOT NULL,
	string_id BIGINT REFERENCES interned_strings(id),
	int_value BIGINT,
	float_value DOUBLE PRECISION
);
CREATE TABLE IF NOT EXISTS cache_responses (
	id BIGSERIAL PRIMARY KEY,
	entry_id BIGINT NOT NULL REFERENCES cache_entries(id),
	response TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_model_id ON cache_entries(model_id);
CREATE INDEX IF NOT EXISTS idx_params_entry_name ON cache_params(entry_id, name);
CREATE INDEX IF NOT EXISTS idx_params_string_id ON cache_params(string_id);
CREATE INDEX IF NOT EXISTS idx_responses_entry ON cache_responses(entry_id);
`

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name   string
	schema string
	// placeholder is the bind parameter format used by generated statements.
	placeholder sq.PlaceholderFormat
	// timeArg converts a timestamp to the bind value stored in the engine.
	timeArg func(time.Time) any
	// lockRows is appended to selects whose rows the transaction goes on to
	// delete. Empty for engines that lock the whole database on write.
	lockRows string
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		schema:      sqliteSchema,
		placeholder: sq.Question,
		timeArg: func(t time.Time) any {
			return t.UTC().Format(sqliteTimeLayout)
		},
	}
	postgresDialect = dialect{
		name:        "postgres",
		schema:      postgresSchema,
		placeholder: sq.Dollar,
		timeArg: func(t time.Time) any {
			return t.UTC()
		},
		lockRows: "FOR UPDATE",
	}
)

// builder returns a squirrel statement builder for the dialect.
func (d dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}
