package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-formstore/pkg/store"
)

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// OpenStore opens a migrated SQLite store in a per-test temp directory and
// closes it when the test ends.
func OpenStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()

	base := []store.Option{
		store.WithPath(filepath.Join(t.TempDir(), "formstore.db")),
		store.WithBusyTimeout(10 * time.Second),
	}
	s, err := store.Open(Context(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}
