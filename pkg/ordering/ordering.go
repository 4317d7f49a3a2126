// Package ordering keeps the order values of sibling rows contiguous.
//
// A Collection is any table whose rows belong to a scope (a parent node, a
// schema, an option group) and carry a nullable "order" column. Active members
// of a scope are the rows with a non-null order; after every Engine call their
// orders are exactly 1..N. Every mutation takes the scope lock through the
// transaction before touching the table.
package ordering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formstore/pkg/logging"
)

var (
	// ErrOrderingConflict reports scope lock contention. Callers may retry.
	ErrOrderingConflict = errors.New("ordering: conflict")
	// ErrInvalidOrder reports an explicit order below 1.
	ErrInvalidOrder = errors.New("ordering: order must be at least 1")
	// ErrMemberNotFound reports a member missing from its scope.
	ErrMemberNotFound = errors.New("ordering: member not found")
	// ErrNotContiguous is returned by Verify when active orders have gaps or
	// duplicates.
	ErrNotContiguous = errors.New("ordering: orders are not contiguous")
)

// Querier runs read queries. Both *sql.DB wrappers and transactions qualify.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is the transaction an Engine mutates through. Queries use ? placeholders.
type Tx interface {
	Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	LockScope(ctx context.Context, key string) error
}

// Collection names an ordered table. Member is the column identifying a row
// within its scope; it may be the primary key.
type Collection struct {
	Table  string
	Scope  string
	Member string
}

// Scope is one sibling set within a collection.
type Scope struct {
	Collection Collection
	ID         string
}

// Key is the lock key for the scope.
func (s Scope) Key() string {
	return s.Collection.Table + ":" + s.ID
}

// Member is an active row and its order.
type Member struct {
	ID    string
	Order int
}

// Engine applies the renumbering rules.
type Engine struct {
	logger logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches an event logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(logger) }
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: logging.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Place gives member a position in scope. A nil order appends. An explicit
// order shifts the members at or after it up by one; values past the end are
// clamped to append. Placing an already active member moves it.
func (e *Engine) Place(ctx context.Context, tx Tx, scope Scope, member string, order *int) (pos int, err error) {
	done := logging.Timer(e.logger, logging.Event{Op: "ordering.place", Node: member, Scope: scope.Key()})
	defer func() { done(err) }()

	if order != nil && *order < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidOrder, *order)
	}
	if err := lock(ctx, tx, scope); err != nil {
		return 0, err
	}
	current, active, err := e.position(ctx, tx, scope, member)
	if err != nil {
		return 0, err
	}
	count, err := e.count(ctx, tx, scope)
	if err != nil {
		return 0, err
	}
	last := count + 1
	if active {
		last = count
	}
	target := last
	if order != nil && *order < last {
		target = *order
	}

	c := scope.Collection
	switch {
	case active && target == current:
		return current, nil
	case active && target < current:
		err = e.exec(ctx, tx, scope, fmt.Sprintf(
			`UPDATE %s SET "order" = "order" + 1 WHERE %s = ? AND "order" >= ? AND "order" < ?`,
			c.Table, c.Scope), scope.ID, target, current)
	case active:
		err = e.exec(ctx, tx, scope, fmt.Sprintf(
			`UPDATE %s SET "order" = "order" - 1 WHERE %s = ? AND "order" > ? AND "order" <= ?`,
			c.Table, c.Scope), scope.ID, current, target)
	default:
		err = e.exec(ctx, tx, scope, fmt.Sprintf(
			`UPDATE %s SET "order" = "order" + 1 WHERE %s = ? AND "order" >= ?`,
			c.Table, c.Scope), scope.ID, target)
	}
	if err != nil {
		return 0, err
	}
	if err := e.setOrder(ctx, tx, scope, member, &target); err != nil {
		return 0, err
	}
	return target, nil
}

// Remove clears member's order and closes the gap it leaves. Removing an
// inactive member is a no-op.
func (e *Engine) Remove(ctx context.Context, tx Tx, scope Scope, member string) (err error) {
	done := logging.Timer(e.logger, logging.Event{Op: "ordering.remove", Node: member, Scope: scope.Key()})
	defer func() { done(err) }()

	if err := lock(ctx, tx, scope); err != nil {
		return err
	}
	current, active, err := e.position(ctx, tx, scope, member)
	if err != nil {
		return err
	}
	if !active {
		return nil
	}
	if err := e.setOrder(ctx, tx, scope, member, nil); err != nil {
		return err
	}
	c := scope.Collection
	return e.exec(ctx, tx, scope, fmt.Sprintf(
		`UPDATE %s SET "order" = "order" - 1 WHERE %s = ? AND "order" > ?`,
		c.Table, c.Scope), scope.ID, current)
}

// Rescope moves member from one scope to another of the same collection,
// compacting the old scope and placing it in the new one.
func (e *Engine) Rescope(ctx context.Context, tx Tx, from, to Scope, member string, order *int) (int, error) {
	if from.Collection != to.Collection {
		return 0, fmt.Errorf("ordering: rescope across collections %s and %s", from.Collection.Table, to.Collection.Table)
	}
	if from.ID == to.ID {
		return e.Place(ctx, tx, to, member, order)
	}
	first, second := from, to
	if second.Key() < first.Key() {
		first, second = second, first
	}
	if err := lock(ctx, tx, first); err != nil {
		return 0, err
	}
	if err := lock(ctx, tx, second); err != nil {
		return 0, err
	}
	if err := e.Remove(ctx, tx, from, member); err != nil {
		return 0, err
	}
	c := from.Collection
	if err := e.exec(ctx, tx, from, fmt.Sprintf(
		`UPDATE %s SET %s = ? WHERE %s = ? AND %s = ?`,
		c.Table, c.Scope, c.Scope, c.Member), to.ID, from.ID, member); err != nil {
		return 0, err
	}
	return e.Place(ctx, tx, to, member, order)
}

// Members lists the active members of scope by ascending order.
func (e *Engine) Members(ctx context.Context, q Querier, scope Scope) ([]Member, error) {
	c := scope.Collection
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s, "order" FROM %s WHERE %s = ? AND "order" IS NOT NULL ORDER BY "order" ASC`,
		c.Member, c.Table, c.Scope), scope.ID)
	if err != nil {
		return nil, fmt.Errorf("ordering: list %s: %w", scope.Key(), err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Order); err != nil {
			return nil, fmt.Errorf("ordering: scan %s: %w", scope.Key(), err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ordering: list %s: %w", scope.Key(), err)
	}
	return out, nil
}

// Verify checks that the active orders of scope are exactly 1..N.
func (e *Engine) Verify(ctx context.Context, q Querier, scope Scope) error {
	members, err := e.Members(ctx, q, scope)
	if err != nil {
		return err
	}
	for idx, m := range members {
		if m.Order != idx+1 {
			orders := make([]string, 0, len(members))
			for _, each := range members {
				orders = append(orders, fmt.Sprint(each.Order))
			}
			return fmt.Errorf("%w: %s has [%s]", ErrNotContiguous, scope.Key(), strings.Join(orders, " "))
		}
	}
	return nil
}

func (e *Engine) position(ctx context.Context, tx Tx, scope Scope, member string) (int, bool, error) {
	c := scope.Collection
	var order sql.NullInt64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT "order" FROM %s WHERE %s = ? AND %s = ?`, c.Table, c.Scope, c.Member),
		scope.ID, member).Scan(&order)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("%w: %s in %s", ErrMemberNotFound, member, scope.Key())
	}
	if err != nil {
		return 0, false, wrap(scope, err)
	}
	return int(order.Int64), order.Valid, nil
}

func (e *Engine) count(ctx context.Context, tx Tx, scope Scope) (int, error) {
	c := scope.Collection
	var n int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE %s = ? AND "order" IS NOT NULL`, c.Table, c.Scope),
		scope.ID).Scan(&n)
	if err != nil {
		return 0, wrap(scope, err)
	}
	return n, nil
}

func (e *Engine) setOrder(ctx context.Context, tx Tx, scope Scope, member string, order *int) error {
	c := scope.Collection
	var value any
	if order != nil {
		value = *order
	}
	return e.exec(ctx, tx, scope, fmt.Sprintf(
		`UPDATE %s SET "order" = ? WHERE %s = ? AND %s = ?`, c.Table, c.Scope, c.Member),
		value, scope.ID, member)
}

func (e *Engine) exec(ctx context.Context, tx Tx, scope Scope, query string, args ...any) error {
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return wrap(scope, err)
	}
	return nil
}

func lock(ctx context.Context, tx Tx, scope Scope) error {
	if err := tx.LockScope(ctx, scope.Key()); err != nil {
		return fmt.Errorf("%w: lock %s: %v", ErrOrderingConflict, scope.Key(), err)
	}
	return nil
}

// wrap marks transient storage failures as ordering conflicts.
func wrap(scope Scope, err error) error {
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return fmt.Errorf("%w: %s: %v", ErrOrderingConflict, scope.Key(), err)
	}
	return fmt.Errorf("ordering: %s: %w", scope.Key(), err)
}
