package ordering_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/goliatone/go-formstore/pkg/ordering"
	"github.com/goliatone/go-formstore/pkg/store"
	"github.com/goliatone/go-formstore/pkg/testsupport"
)

var items = ordering.Collection{Table: "items", Scope: "scope_id", Member: "id"}

func newItemStore(t *testing.T) *store.Store {
	t.Helper()
	s := testsupport.OpenStore(t)
	_, err := s.DB().ExecContext(testsupport.Context(),
		`CREATE TABLE items (id TEXT PRIMARY KEY, scope_id TEXT NOT NULL, "order" INTEGER)`)
	if err != nil {
		t.Fatalf("create items: %v", err)
	}
	return s
}

func insert(t *testing.T, s *store.Store, e *ordering.Engine, scope string, id string, order *int) int {
	t.Helper()
	var pos int
	err := s.WithTx(testsupport.Context(), func(tx *store.Tx) error {
		if _, err := tx.ExecContext(testsupport.Context(), `INSERT INTO items (id, scope_id) VALUES (?, ?)`, id, scope); err != nil {
			return err
		}
		var err error
		pos, err = e.Place(testsupport.Context(), tx, ordering.Scope{Collection: items, ID: scope}, id, order)
		return err
	})
	if err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	return pos
}

func mutate(t *testing.T, s *store.Store, fn func(ctx context.Context, tx *store.Tx) error) {
	t.Helper()
	if err := s.WithTx(testsupport.Context(), func(tx *store.Tx) error {
		return fn(testsupport.Context(), tx)
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
}

func order(t *testing.T, s *store.Store, e *ordering.Engine, scope string) []string {
	t.Helper()
	sc := ordering.Scope{Collection: items, ID: scope}
	if err := e.Verify(testsupport.Context(), s, sc); err != nil {
		t.Fatalf("verify: %v", err)
	}
	members, err := e.Members(testsupport.Context(), s, sc)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}

func at(v int) *int { return &v }

func assertOrder(t *testing.T, got []string, want ...string) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestPlaceRemoveMove(t *testing.T) {
	s := newItemStore(t)
	e := ordering.New()
	scope := ordering.Scope{Collection: items, ID: "p"}

	if pos := insert(t, s, e, "p", "a", nil); pos != 1 {
		t.Fatalf("first append = %d, want 1", pos)
	}
	insert(t, s, e, "p", "b", nil)
	insert(t, s, e, "p", "c", nil)
	assertOrder(t, order(t, s, e, "p"), "a", "b", "c")

	if pos := insert(t, s, e, "p", "d", at(2)); pos != 2 {
		t.Fatalf("explicit insert = %d, want 2", pos)
	}
	assertOrder(t, order(t, s, e, "p"), "a", "d", "b", "c")

	if pos := insert(t, s, e, "p", "e", at(99)); pos != 5 {
		t.Fatalf("clamped insert = %d, want 5", pos)
	}
	assertOrder(t, order(t, s, e, "p"), "a", "d", "b", "c", "e")

	mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
		_, err := e.Place(ctx, tx, scope, "c", at(1))
		return err
	})
	assertOrder(t, order(t, s, e, "p"), "c", "a", "d", "b", "e")

	mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
		_, err := e.Place(ctx, tx, scope, "c", at(4))
		return err
	})
	assertOrder(t, order(t, s, e, "p"), "a", "d", "b", "c", "e")

	mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
		return e.Remove(ctx, tx, scope, "d")
	})
	assertOrder(t, order(t, s, e, "p"), "a", "b", "c", "e")

	mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
		return e.Remove(ctx, tx, scope, "d")
	})
	assertOrder(t, order(t, s, e, "p"), "a", "b", "c", "e")

	mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
		_, err := e.Place(ctx, tx, scope, "d", nil)
		return err
	})
	assertOrder(t, order(t, s, e, "p"), "a", "b", "c", "e", "d")
}

func TestRescope(t *testing.T) {
	s := newItemStore(t)
	e := ordering.New()

	for _, id := range []string{"a", "b", "c"} {
		insert(t, s, e, "left", id, nil)
	}
	for _, id := range []string{"x", "y"} {
		insert(t, s, e, "right", id, nil)
	}

	mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
		_, err := e.Rescope(ctx, tx,
			ordering.Scope{Collection: items, ID: "left"},
			ordering.Scope{Collection: items, ID: "right"},
			"b", at(1))
		return err
	})
	assertOrder(t, order(t, s, e, "left"), "a", "c")
	assertOrder(t, order(t, s, e, "right"), "b", "x", "y")
}

func TestPlaceErrors(t *testing.T) {
	s := newItemStore(t)
	e := ordering.New()
	scope := ordering.Scope{Collection: items, ID: "p"}

	err := s.WithTx(testsupport.Context(), func(tx *store.Tx) error {
		_, err := e.Place(testsupport.Context(), tx, scope, "missing", nil)
		return err
	})
	if !errors.Is(err, ordering.ErrMemberNotFound) {
		t.Fatalf("error = %v, want ErrMemberNotFound", err)
	}

	insert(t, s, e, "p", "a", nil)
	err = s.WithTx(testsupport.Context(), func(tx *store.Tx) error {
		_, err := e.Place(testsupport.Context(), tx, scope, "a", at(0))
		return err
	})
	if !errors.Is(err, ordering.ErrInvalidOrder) {
		t.Fatalf("error = %v, want ErrInvalidOrder", err)
	}
}

func TestOrderingInvariantUnderRandomOperations(t *testing.T) {
	s := newItemStore(t)
	e := ordering.New()
	scope := ordering.Scope{Collection: items, ID: "p"}
	rng := rand.New(rand.NewSource(7))

	var live []string
	next := 0
	for step := 0; step < 60; step++ {
		switch op := rng.Intn(4); {
		case op < 2 || len(live) == 0:
			id := fmt.Sprintf("n%d", next)
			next++
			var pos *int
			if op == 1 && len(live) > 0 {
				pos = at(1 + rng.Intn(len(live)+1))
			}
			insert(t, s, e, "p", id, pos)
			live = append(live, id)
		case op == 2:
			idx := rng.Intn(len(live))
			id := live[idx]
			mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
				return e.Remove(ctx, tx, scope, id)
			})
			live = append(live[:idx], live[idx+1:]...)
		default:
			id := live[rng.Intn(len(live))]
			target := 1 + rng.Intn(len(live))
			mutate(t, s, func(ctx context.Context, tx *store.Tx) error {
				_, err := e.Place(ctx, tx, scope, id, at(target))
				return err
			})
		}
		if got := order(t, s, e, "p"); len(got) != len(live) {
			t.Fatalf("step %d: active = %d, want %d", step, len(got), len(live))
		}
	}
}

func TestConcurrentInsertsAtSameOrder(t *testing.T) {
	s := newItemStore(t)
	e := ordering.New()

	insert(t, s, e, "p", "seed", nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"left", "right"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			errs <- s.WithTx(testsupport.Context(), func(tx *store.Tx) error {
				ctx := testsupport.Context()
				if _, err := tx.ExecContext(ctx, `INSERT INTO items (id, scope_id) VALUES (?, ?)`, id, "p"); err != nil {
					return err
				}
				_, err := e.Place(ctx, tx, ordering.Scope{Collection: items, ID: "p"}, id, at(1))
				return err
			})
		}(id)
	}
	wg.Wait()
	close(errs)

	committed := 0
	for err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, store.ErrBusy), errors.Is(err, ordering.ErrOrderingConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := order(t, s, e, "p")
	if len(got) != committed+1 {
		t.Fatalf("active = %v, want %d members", got, committed+1)
	}
	if committed == 2 && got[0] != "left" && got[0] != "right" {
		t.Fatalf("order 1 held by %q, want one of the writers", got[0])
	}
	if got[len(got)-1] != "seed" {
		t.Fatalf("seed should be pushed to the end, got %v", got)
	}
}
