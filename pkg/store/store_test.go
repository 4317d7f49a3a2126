package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-formstore/pkg/store"
	"github.com/goliatone/go-formstore/pkg/testsupport"
)

func TestWithTxCommitAndRollback(t *testing.T) {
	s := testsupport.OpenStore(t)
	ctx := testsupport.Context()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO schemas (id, label, created_at) VALUES (?, ?, ?)`, "s1", "kept", store.Now())
		return err
	})
	if err != nil {
		t.Fatalf("commit tx: %v", err)
	}

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO schemas (id, label, created_at) VALUES (?, ?, ?)`, "s2", "dropped", store.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("rollback error = %v, want boom", err)
	}

	var count int
	if err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM schemas`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("schemas = %d, want 1", count)
	}
}

func TestUniqueViolationIsConstraintError(t *testing.T) {
	s := testsupport.OpenStore(t)
	ctx := testsupport.Context()

	insert := func() error {
		return s.WithTx(ctx, func(tx *store.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO schemas (id, label, created_at) VALUES (?, ?, ?)`, store.Now(), "same", store.Now())
			return err
		})
	}
	if err := insert(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(); !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("second insert error = %v, want ErrConstraint", err)
	}
}

func TestNextChangeIncrements(t *testing.T) {
	s := testsupport.OpenStore(t)
	ctx := testsupport.Context()

	var got []int64
	for i := 0; i < 3; i++ {
		err := s.WithTx(ctx, func(tx *store.Tx) error {
			n, err := tx.NextChange(ctx)
			got = append(got, n)
			return err
		})
		if err != nil {
			t.Fatalf("next change: %v", err)
		}
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("changes = %v, want [1 2 3]", got)
	}
}

func TestLockScopeIsReentrant(t *testing.T) {
	s := testsupport.OpenStore(t)
	ctx := testsupport.Context()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.LockScope(ctx, "k"); err != nil {
			return err
		}
		return tx.LockScope(ctx, "k")
	})
	if err != nil {
		t.Fatalf("reentrant lock: %v", err)
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error { return tx.LockScope(ctx, "k") })
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
}

func TestKeyedLockerTimeout(t *testing.T) {
	t.Parallel()

	locker := store.NewKeyedLocker(20 * time.Millisecond)
	release, err := locker.Lock(context.Background(), "scope")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	_, err = locker.Lock(context.Background(), "scope")
	if !errors.Is(err, store.ErrBusy) {
		t.Fatalf("second lock error = %v, want ErrBusy", err)
	}

	other, err := locker.Lock(context.Background(), "other")
	if err != nil {
		t.Fatalf("independent key: %v", err)
	}
	other()

	waiter := make(chan error, 1)
	slow := store.NewKeyedLocker(time.Second)
	hold, _ := slow.Lock(context.Background(), "x")
	go func() {
		next, err := slow.Lock(context.Background(), "x")
		if next != nil {
			next()
		}
		waiter <- err
	}()
	time.Sleep(10 * time.Millisecond)
	hold()
	if err := <-waiter; err != nil {
		t.Fatalf("waiter after release: %v", err)
	}
	release()
}

func TestKeyedLockerContextCancel(t *testing.T) {
	t.Parallel()

	locker := store.NewKeyedLocker(0)
	release, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestOpenInMemory(t *testing.T) {
	s, err := store.Open(context.Background(), store.WithPath(":memory:"))
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer s.Close()
	if s.Dialect() != store.DialectSQLite {
		t.Fatalf("dialect = %q, want sqlite", s.Dialect())
	}
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	if _, err := store.Open(context.Background(), store.WithDialect("oracle")); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
	if _, err := store.Open(context.Background(), store.WithDialect(store.DialectPostgres)); err == nil {
		t.Fatalf("expected error for postgres without DSN")
	}
}
