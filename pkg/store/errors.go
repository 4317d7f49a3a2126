package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("store: not found")
	// ErrBusy reports lock contention in the database or on a scope lock.
	ErrBusy = errors.New("store: busy")
	// ErrConstraint reports a violated uniqueness or foreign key constraint.
	ErrConstraint = errors.New("store: constraint violation")
)

// BusyError wraps a driver error caused by contention. It is safe to retry
// the whole transaction.
type BusyError struct {
	Err error
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("store: busy: %v", e.Err)
}

func (e *BusyError) Unwrap() []error { return []error{ErrBusy, e.Err} }

// Temporary marks the error as retryable.
func (e *BusyError) Temporary() bool { return true }

// ConstraintError wraps a driver constraint violation.
type ConstraintError struct {
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("store: constraint: %v", e.Err)
}

func (e *ConstraintError) Unwrap() []error { return []error{ErrConstraint, e.Err} }

// classify maps driver errors onto the store taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var busy *BusyError
	var constraint *ConstraintError
	if errors.As(err, &busy) || errors.As(err, &constraint) {
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &BusyError{Err: err}
		case sqlite3.SQLITE_CONSTRAINT:
			return &ConstraintError{Err: err}
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return &BusyError{Err: err}
		case "23505", "23503":
			return &ConstraintError{Err: err}
		}
	}
	return err
}
