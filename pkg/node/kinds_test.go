package node

import (
	"errors"
	"testing"
)

func TestDiscriminate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		keys []string
		want Variant
	}{
		{name: "element", keys: []string{"$el", "children"}, want: VariantElement},
		{name: "element alias", keys: []string{"el"}, want: VariantElement},
		{name: "input", keys: []string{"$formkit", "name"}, want: VariantInput},
		{name: "input alias", keys: []string{"formkit"}, want: VariantInput},
		{name: "component", keys: []string{"$cmp", "props"}, want: VariantComponent},
		{name: "condition", keys: []string{"if", "then"}, want: VariantCondition},
		{name: "element wins over if", keys: []string{"if", "$el"}, want: VariantElement},
		{name: "input wins over component", keys: []string{"$cmp", "$formkit"}, want: VariantInput},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Discriminate(tc.keys)
			if err != nil {
				t.Fatalf("Discriminate(%v) error: %v", tc.keys, err)
			}
			if got != tc.want {
				t.Fatalf("Discriminate(%v) = %q, want %q", tc.keys, got, tc.want)
			}
		})
	}
}

func TestDiscriminateUnresolved(t *testing.T) {
	t.Parallel()

	_, err := Discriminate([]string{"name", "label"})
	if !errors.Is(err, ErrNodeTypeUnresolved) {
		t.Fatalf("error = %v, want ErrNodeTypeUnresolved", err)
	}
	var unresolved *UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatalf("error type = %T, want *UnresolvedError", err)
	}
	if len(unresolved.Keys) != 2 || unresolved.Keys[0] != "label" {
		t.Fatalf("keys = %v, want sorted [label name]", unresolved.Keys)
	}
}

func TestRegistryBuiltins(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if got := len(reg.Kinds()); got != 19 {
		t.Fatalf("builtin kinds = %d, want 19", got)
	}
	spec, ok := reg.Kind(KindDropdown)
	if !ok {
		t.Fatalf("dropdown kind missing")
	}
	if !spec.Handles(KeyOptions) || !spec.Handles("selectIcon") {
		t.Fatalf("dropdown fields = %v", spec.Fields)
	}
	if spec.Handles("text") {
		t.Fatalf("dropdown should not handle text")
	}
	for _, word := range []string{"class", "func", "None"} {
		if !reg.Reserved(word) {
			t.Fatalf("expected %q to be reserved", word)
		}
	}
	if reg.Reserved("email") {
		t.Fatalf("email should not be reserved")
	}
}

func TestRegistryRegisterKind(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.RegisterKind(KindSpec{Kind: "rating", Fields: []string{"min", "max"}}); err != nil {
		t.Fatalf("register rating: %v", err)
	}
	if _, ok := reg.Kind("rating"); !ok {
		t.Fatalf("rating kind not registered")
	}
	if err := reg.RegisterKind(KindSpec{Kind: "bogus", Fields: []string{"nope"}}); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if err := reg.RegisterKind(KindSpec{Kind: "  "}); err == nil {
		t.Fatalf("expected empty kind error")
	}

	var empty Registry
	if _, ok := empty.Kind(KindText); ok {
		t.Fatalf("zero registry should be empty")
	}
}

func TestWalkVisitsSiblingLists(t *testing.T) {
	t.Parallel()

	tree := []Node{
		&Element{
			El: "div",
			Common: Common{Children: []Node{
				&Text{Value: "intro"},
				&Condition{
					If:   "$x",
					Then: Branch{Nodes: []Node{&Text{Value: "yes"}}},
					Else: &Branch{Nodes: []Node{&Input{Kind: KindText, Common: Common{Name: "n"}}}},
				},
			}},
		},
		&Input{Kind: KindText, Common: Common{Name: "last"}},
	}

	var paths []string
	var sizes []int
	err := Walk("$", tree, func(path string, siblings []Node) error {
		paths = append(paths, path)
		sizes = append(sizes, len(siblings))
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	want := []string{"$", "$[0].children", "$[0].children[1].then", "$[0].children[1].else"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 || sizes[3] != 1 {
		t.Fatalf("sizes = %v, want [2 2 1 1]", sizes)
	}
}

func TestWalkStopsOnError(t *testing.T) {
	t.Parallel()

	stop := errors.New("stop")
	calls := 0
	err := Walk("$", []Node{&Element{El: "div", Common: Common{Children: []Node{&Text{Value: "x"}}}}},
		func(string, []Node) error {
			calls++
			return stop
		})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
