package testsupport

import (
	"bytes"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

// MustDecode decodes a JSON fixture keeping numbers as json.Number, the same
// way the wire codec does.
func MustDecode(t *testing.T, raw string) any {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return out
}

// Canonical round-trips value through JSON so serializer output can be
// compared against decoded fixtures regardless of Go types or key order.
func Canonical(t *testing.T, value any) any {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("encode value: %v", err)
	}
	return MustDecode(t, string(data))
}

// Diff returns a cmp diff between two JSON fixtures or values after
// canonicalising both.
func Diff(t *testing.T, want, got any) string {
	t.Helper()
	return cmp.Diff(Canonical(t, want), Canonical(t, got))
}
