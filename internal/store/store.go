// FilePath: internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
	nuts "github.com/vaudience/go-nuts"
)

// DB wraps a single embedded SQLite connection. Every write passes through
// writeMu so concurrent callers serialize instead of racing SQLITE_BUSY.
type DB struct {
	sqlx   *sqlx.DB
	writeMu sync.Mutex
}

// Transaction mirrors the subset of *sql.Tx the repositories need.
type Transaction interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Repository is implemented by every sqlite repository so callers can start
// a transaction without reaching into store internals.
type Repository interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

var backoffSteps = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
	160 * time.Millisecond,
	320 * time.Millisecond,
}

// Open connects to the SQLite file at path, applying the pragmas a
// single-writer/many-reader embedded deployment needs.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite + WAL: one writer connection avoids SQLITE_BUSY storms
	nuts.L.Infof("[store] opened %s", path)
	return &DB{sqlx: db}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.sqlx.Close()
}

// Ping verifies connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.sqlx.PingContext(ctx)
}

// SQLX exposes the raw *sqlx.DB for read-only queries that don't need the
// write gate (repositories use this for List/Get).
func (d *DB) SQLX() *sqlx.DB {
	return d.sqlx
}

// BeginTx starts a write transaction, serialized behind writeMu and retried
// with truncated exponential backoff on SQLITE_BUSY.
func (d *DB) BeginTx(ctx context.Context) (Transaction, error) {
	d.writeMu.Lock()
	tx, err := d.beginWithRetry(ctx)
	if err != nil {
		d.writeMu.Unlock()
		return nil, err
	}
	return &guardedTx{Tx: tx, unlock: d.writeMu.Unlock}, nil
}

func (d *DB) beginWithRetry(ctx context.Context) (*sqlx.Tx, error) {
	var lastErr error
	for attempt := 0; attempt <= len(backoffSteps); attempt++ {
		tx, err := d.sqlx.BeginTxx(ctx, nil)
		if err == nil {
			return tx, nil
		}
		if !isBusy(err) {
			return nil, err
		}
		lastErr = err
		if attempt == len(backoffSteps) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffSteps[attempt]):
		}
	}
	return nil, fmt.Errorf("sqlite store busy after retries: %w", lastErr)
}

// WithRetry runs fn, retrying on SQLITE_BUSY with the same truncated backoff
// used for write transactions. Use for single-statement writes outside a tx.
func (d *DB) WithRetry(ctx context.Context, fn func() error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= len(backoffSteps); attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		if attempt == len(backoffSteps) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffSteps[attempt]):
		}
	}
	return fmt.Errorf("sqlite store busy after retries: %w", lastErr)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// guardedTx releases the store's write lock on Commit or Rollback.
type guardedTx struct {
	*sqlx.Tx
	unlock   func()
	unlocked bool
	mu       sync.Mutex
}

func (g *guardedTx) Commit() error {
	err := g.Tx.Commit()
	g.release()
	return err
}

func (g *guardedTx) Rollback() error {
	err := g.Tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		err = nil
	}
	g.release()
	return err
}

func (g *guardedTx) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.unlocked {
		g.unlocked = true
		g.unlock()
	}
}
