package wire

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/schema"
	"github.com/goliatone/go-formstore/pkg/testsupport"
)

func TestParserDiscriminator(t *testing.T) {
	t.Parallel()

	parser := NewParser(nil)

	got, err := parser.Parse([]byte(`{"$formkit":"text","name":"first"}`))
	if err != nil {
		t.Fatalf("parse input: %v", err)
	}
	input, ok := got.(*node.Input)
	if !ok {
		t.Fatalf("parse input = %T, want *node.Input", got)
	}
	if input.Kind != node.KindText || input.Name != "first" {
		t.Fatalf("input = %+v, want text kind named first", input)
	}

	got, err = parser.Parse([]byte(`{"$el":"div"}`))
	if err != nil {
		t.Fatalf("parse element: %v", err)
	}
	if el, ok := got.(*node.Element); !ok || el.El != "div" {
		t.Fatalf("parse element = %#v, want div element", got)
	}

	got, err = parser.Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if text, ok := got.(*node.Text); !ok || text.Value != "" {
		t.Fatalf("parse empty = %#v, want empty text", got)
	}

	got, err = parser.Parse([]byte(`"literal"`))
	if err != nil {
		t.Fatalf("parse string: %v", err)
	}
	if text, ok := got.(*node.Text); !ok || text.Value != "literal" {
		t.Fatalf("parse string = %#v, want literal text", got)
	}

	got, err = parser.Parse([]byte(`{"formkit":"email","name":"e"}`))
	if err != nil {
		t.Fatalf("parse alias: %v", err)
	}
	if input, ok := got.(*node.Input); !ok || input.Kind != node.KindEmail {
		t.Fatalf("parse alias = %#v, want email input", got)
	}
}

func TestParserUnresolved(t *testing.T) {
	t.Parallel()

	parser := NewParser(nil)
	for _, raw := range []string{`{"name":"x","label":"X"}`, `42`, `[1]`} {
		_, err := parser.Parse([]byte(raw))
		if !errors.Is(err, node.ErrNodeTypeUnresolved) {
			t.Fatalf("Parse(%s) error = %v, want ErrNodeTypeUnresolved", raw, err)
		}
	}
}

func TestParserValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "options number", raw: `{"$formkit":"select","options":42}`, field: "options"},
		{name: "options bool list", raw: `{"$formkit":"select","options":[true]}`, field: "options"},
		{name: "options mixed", raw: `{"$formkit":"radio","options":["a",{"value":"b"}]}`, field: "options"},
		{name: "options record extra key", raw: `{"$formkit":"radio","options":[{"value":"b","attrs":{}}]}`, field: "options"},
		{name: "options map nested", raw: `{"$formkit":"dropdown","options":{"a":{"x":1}}}`, field: "options"},
		{name: "label number", raw: `{"$formkit":"text","label":5}`, field: "label"},
		{name: "min fraction", raw: `{"$formkit":"number","min":1.5}`, field: "min"},
		{name: "step bool", raw: `{"$formkit":"number","step":true}`, field: "step"},
		{name: "unknown kind", raw: `{"$formkit":"bogus"}`, field: "$formkit"},
		{name: "marker conflict", raw: `{"$formkit":"text","formkit":"email"}`, field: "$formkit"},
		{name: "children number", raw: `{"$el":"div","children":5}`, field: "children"},
		{name: "children nested array", raw: `{"$el":"div","children":[[]]}`, field: "children"},
		{name: "meta string", raw: `{"$el":"div","meta":"x"}`, field: "meta"},
		{name: "classes list", raw: `{"$el":"div","classes":[]}`, field: "classes"},
		{name: "condition without then", raw: `{"if":"$a"}`, field: "then"},
		{name: "condition without if", raw: `{"then":"x"}`, field: "if"},
		{name: "readonly string", raw: `{"$formkit":"text","readonly":"yes"}`, field: "readonly"},
	}

	parser := NewParser(nil)
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := parser.Parse([]byte(tc.raw))
			var verr *node.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *node.ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q (%v)", verr.Field, tc.field, err)
			}
			if !errors.Is(err, node.ErrVariantValidation) {
				t.Fatalf("error does not match ErrVariantValidation")
			}
		})
	}
}

func TestParserExtraProps(t *testing.T) {
	t.Parallel()

	raw := `{"$formkit":"text","name":"a","text":"ok","x-custom":{"deep":[1,2]},"options":["z"],"outer-class":"wide"}`
	got, err := NewParser(nil).Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	input := got.(*node.Input)
	if input.Text != "ok" {
		t.Fatalf("text = %q, want ok", input.Text)
	}
	if input.Options != nil {
		t.Fatalf("text inputs do not handle options, got %+v", input.Options)
	}
	want := testsupport.MustDecode(t, `{"x-custom":{"deep":[1,2]},"options":["z"],"outer-class":"wide"}`)
	if diff := testsupport.Diff(t, want, input.Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}

	out, err := NewSerializer(nil).Serialize(got)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if diff := testsupport.Diff(t, testsupport.MustDecode(t, raw), out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParserMergesAdditionalProps(t *testing.T) {
	t.Parallel()

	got, err := NewParser(nil).Parse([]byte(`{"$formkit":"text","additional_props":{"a":1,"b":2},"b":3}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]any{"a": json.Number("1"), "b": json.Number("3")}
	if diff := testsupport.Diff(t, want, got.(*node.Input).Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}
}

func TestParserOptionShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		raw   string
		shape node.OptionsShape
		items []node.Option
		expr  string
	}{
		{
			name:  "expression",
			raw:   `{"$formkit":"select","options":"$get(list).value"}`,
			shape: node.OptionsExpression,
			expr:  "$get(list).value",
		},
		{
			name:  "strings",
			raw:   `{"$formkit":"radio","options":["yes","no"]}`,
			shape: node.OptionsStrings,
			items: []node.Option{{Value: "yes", Label: "yes"}, {Value: "no", Label: "no"}},
		},
		{
			name:  "records",
			raw:   `{"$formkit":"select","options":[{"value":"r","label":"Red"},{"value":"g"}]}`,
			shape: node.OptionsRecords,
			items: []node.Option{{Value: "r", Label: "Red"}, {Value: "g"}},
		},
		{
			name:  "map keeps order",
			raw:   `{"$formkit":"dropdown","options":{"z":"Zed","a":"Ay","m":"Em"}}`,
			shape: node.OptionsMap,
			items: []node.Option{{Value: "z", Label: "Zed"}, {Value: "a", Label: "Ay"}, {Value: "m", Label: "Em"}},
		},
	}

	parser := NewParser(nil)
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parser.Parse([]byte(tc.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			opts := got.(*node.Input).Options
			if opts == nil {
				t.Fatalf("options not parsed")
			}
			if opts.Shape != tc.shape {
				t.Fatalf("shape = %d, want %d", opts.Shape, tc.shape)
			}
			if opts.Expression != tc.expr {
				t.Fatalf("expression = %q, want %q", opts.Expression, tc.expr)
			}
			if len(opts.Items) != len(tc.items) {
				t.Fatalf("items = %+v, want %+v", opts.Items, tc.items)
			}
			for i := range tc.items {
				if opts.Items[i] != tc.items[i] {
					t.Fatalf("items[%d] = %+v, want %+v", i, opts.Items[i], tc.items[i])
				}
			}
		})
	}

	got, err := parser.Parse([]byte(`{"$formkit":"select","options":null}`))
	if err != nil {
		t.Fatalf("parse null options: %v", err)
	}
	if got.(*node.Input).Options != nil {
		t.Fatalf("null options should stay unset")
	}
}

func TestParserNonRecursive(t *testing.T) {
	t.Parallel()

	raw := `{"$el":"div","children":[{"$formkit":"text","name":"a"}]}`
	got, err := NewParser(nil).Parse([]byte(raw), schema.Recursive(false))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	el := got.(*node.Element)
	if el.Children != nil {
		t.Fatalf("children = %v, want unset", el.Children)
	}
	if _, ok := el.Extra[node.KeyChildren]; ok {
		t.Fatalf("children leaked into extra props")
	}
}

func TestParserSingleStringChildren(t *testing.T) {
	t.Parallel()

	got, err := NewParser(nil).Parse([]byte(`{"$el":"p","children":"hello"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	children := got.(*node.Element).Children
	if len(children) != 1 {
		t.Fatalf("children = %d, want 1", len(children))
	}
	if text, ok := children[0].(*node.Text); !ok || text.Value != "hello" {
		t.Fatalf("child = %#v, want text hello", children[0])
	}
}

func TestParseSchema(t *testing.T) {
	t.Parallel()

	parser := NewParser(nil)

	nodes, err := parser.ParseSchema([]byte(`[{"$formkit":"text","name":"a"},"note",{"$el":"hr"}]`))
	if err != nil {
		t.Fatalf("parse array: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(nodes))
	}

	nodes, err = parser.ParseSchema([]byte(`{"children":[{"$formkit":"text","name":"a"},{"$formkit":"text","name":"b"}]}`))
	if err != nil {
		t.Fatalf("parse wrapper: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("wrapper nodes = %d, want 2", len(nodes))
	}

	nodes, err = parser.ParseSchema([]byte(`{"$formkit":"group","name":"g","children":[]}`))
	if err != nil {
		t.Fatalf("parse single: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Variant() != node.VariantInput {
		t.Fatalf("single = %v, want one input", nodes)
	}

	if _, err := parser.ParseSchema([]byte(`  `)); err == nil {
		t.Fatalf("expected error for empty schema")
	}
	if _, err := parser.ParseSchema([]byte(`[{"$el":"div"},{"nope":1}]`)); !errors.Is(err, node.ErrNodeTypeUnresolved) {
		t.Fatalf("error = %v, want ErrNodeTypeUnresolved", err)
	}
}

func TestParserCustomKind(t *testing.T) {
	t.Parallel()

	reg := node.NewRegistry()
	if err := reg.RegisterKind(node.KindSpec{Kind: "rating", Fields: []string{"min", "max"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := NewParser(reg).Parse([]byte(`{"$formkit":"rating","min":1,"max":5}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	in := got.(*node.Input)
	if in.Min == nil || *in.Min != 1 || in.Max == nil || *in.Max != 5 {
		t.Fatalf("min/max = %v/%v, want 1/5", in.Min, in.Max)
	}

	if _, err := NewParser(nil).Parse([]byte(`{"$formkit":"rating"}`)); !errors.Is(err, node.ErrVariantValidation) {
		t.Fatalf("default registry error = %v, want ErrVariantValidation", err)
	}
}
