// Package cache implements a persistent response cache for generative model
// calls. Entries are keyed by a model id and an exact set of typed
// parameters and hold one or more text responses.
//
// All multi-statement operations run in a single transaction. SQLite handles
// use one pooled connection, so operations on one *Cache serialize; the
// storage engine's own locking covers other processes.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/respcache/pkg/models"
)

// MemoryPath opens an ephemeral in-memory SQLite store.
const MemoryPath = ":memory:"

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrEmptyModelID is returned when an operation needs a model id and none was given.
	ErrEmptyModelID = errors.New("model id is required")
	// ErrNoResponses is returned by AddEntry when no response is given.
	ErrNoResponses = errors.New("at least one response is required")
)

// Config selects and locates the storage engine.
type Config struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	Path   string `yaml:"path" env:"PATH"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

// Cache is a model response cache backed by a SQL database.
type Cache struct {
	db      *sql.DB
	dialect dialect
	log     *zap.Logger
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Open opens the store described by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		return OpenSQLite(ctx, cfg.Path, opts...)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
	}
}

// OpenSQLite opens a SQLite store at path, creating missing parent
// directories. Pass MemoryPath for an in-memory store.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Cache, error) {
	c := newCache(sqliteDialect, opts)

	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "" {
			if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
				c.log.Warn("cache directory does not exist, creating it", zap.String("dir", dir))
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return nil, fmt.Errorf("create cache directory: %w", err)
				}
			}
		}
		pragmas += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", path+"?"+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes
	// transactions issued through this handle.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	c.db = db
	if err := c.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// OpenPostgres opens a Postgres store.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Cache, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	c := newCache(postgresDialect, opts)
	c.db = db
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	if err := c.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func newCache(d dialect, opts []Option) *Cache {
	c := &Cache{
		dialect: d,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("store", d.name))
	return c
}

func (c *Cache) migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, c.dialect.schema); err != nil {
		return fmt.Errorf("migrate cache db: %w", err)
	}
	return nil
}

// Stats returns the number of stored entries and interned strings together
// with the hits and misses served by this handle.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var stats models.CacheStats
	err := c.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM cache_entries), (SELECT COUNT(*) FROM interned_strings)`,
	).Scan(&stats.Entries, &stats.Strings)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	stats.Hits = c.hits.Load()
	stats.Misses = c.misses.Load()
	return stats, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// withTx runs fn in a transaction, committing on success and rolling back on
// any error.
func (c *Cache) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// timestamp returns the current time as a bind value for the dialect.
func (c *Cache) timestamp() any {
	return c.dialect.timeArg(c.now())
}
