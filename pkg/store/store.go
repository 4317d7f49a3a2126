// Package store owns the relational database: connection setup, schema
// migration and the transaction wrapper every mutating call runs in.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // registers the "sqlite" database/sql driver

	"github.com/goliatone/go-formstore/pkg/logging"
)

// Querier runs read queries with ? placeholders.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*Store)(nil)
	_ Querier = (*Tx)(nil)
)

// Store wraps a *sql.DB opened for one dialect.
type Store struct {
	db      *sql.DB
	opts    Options
	locker  *KeyedLocker
	logger  logging.Logger
	closeFn func() error
}

// Open connects, applies the schema and returns a Store.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	return OpenWithOptions(ctx, NewOptions(opts...))
}

// OpenWithOptions is Open for an already assembled Options value, such as
// one decoded from a config file.
func OpenWithOptions(ctx context.Context, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	driver, err := opts.driverName()
	if err != nil {
		return nil, err
	}
	dsn := opts.dataSource()
	if dsn == "" {
		return nil, fmt.Errorf("store: %s requires a DSN", opts.Dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", opts.Dialect, err)
	}
	if opts.Dialect == DialectSQLite && opts.Path == ":memory:" && opts.DSN == "" {
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", opts.Dialect, classify(err))
	}

	s := &Store{
		db:      db,
		opts:    opts,
		locker:  NewKeyedLocker(opts.LockTimeout),
		logger:  opts.Logger,
		closeFn: db.Close,
	}
	if !opts.SkipMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL flavour in use.
func (s *Store) Dialect() Dialect { return s.opts.Dialect }

// Logger returns the configured event logger.
func (s *Store) Logger() logging.Logger { return s.logger }

// QueryContext implements Querier outside a transaction.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.opts.Dialect, query), args...)
	return rows, classify(err)
}

// QueryRowContext implements Querier outside a transaction.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, rebind(s.opts.Dialect, query), args...)
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise; scope locks taken through the Tx are
// released after either.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", classify(err))
	}
	tx := &Tx{tx: sqlTx, store: s, held: make(map[string]func())}
	defer tx.releaseLocks()

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("store: rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", classify(err))
	}
	return nil
}

// Tx is a transaction scoped to one WithTx call.
type Tx struct {
	tx    *sql.Tx
	store *Store
	held  map[string]func()
}

// ExecContext runs a statement with ? placeholders.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, rebind(t.store.opts.Dialect, query), args...)
	return res, classify(err)
}

// QueryContext implements Querier.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, rebind(t.store.opts.Dialect, query), args...)
	return rows, classify(err)
}

// QueryRowContext implements Querier.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebind(t.store.opts.Dialect, query), args...)
}

// LockScope takes the named lock for the rest of the transaction. Taking a
// lock the transaction already holds is a no-op. On Postgres the in-process
// lock is backed by a transaction scoped advisory lock so separate processes
// serialise too.
func (t *Tx) LockScope(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	release, err := t.store.locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	if t.store.opts.Dialect == DialectPostgres {
		if err := t.advisoryLock(ctx, key); err != nil {
			release()
			return err
		}
	}
	t.held[key] = release
	return nil
}

func (t *Tx) advisoryLock(ctx context.Context, key string) error {
	deadline := time.Now().Add(t.store.opts.LockTimeout)
	for {
		var ok bool
		if err := t.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext(?))`, key).Scan(&ok); err != nil {
			return classify(err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return &BusyError{Err: fmt.Errorf("advisory lock %s: timed out", key)}
		}
		select {
		case <-ctx.Done():
			return &BusyError{Err: ctx.Err()}
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (t *Tx) releaseLocks() {
	for key, release := range t.held {
		release()
		delete(t.held, key)
	}
}

// NextChange advances the change counter and returns its new value.
func (t *Tx) NextChange(ctx context.Context) (int64, error) {
	var value int64
	err := t.QueryRowContext(ctx,
		`INSERT INTO sequences (name, value) VALUES ('track_change', 1)
		 ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		 RETURNING value`).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("store: next change: %w", classify(err))
	}
	return value, nil
}

// Now is the timestamp format stored in TEXT columns.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ParseTime reads a timestamp written by Now.
func ParseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
