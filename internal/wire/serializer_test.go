package wire

import (
	"bytes"
	"testing"

	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/schema"
	"github.com/goliatone/go-formstore/pkg/testsupport"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{name: "text leaf", raw: `"hello"`},
		{name: "element tree", raw: `{"$el":"div","attrs":{"class":"row"},"children":["Intro",{"$formkit":"text","name":"first","label":"First name","validation":"required"}]}`},
		{name: "number", raw: `{"$formkit":"number","name":"age","text":"Age","min":0,"max":120,"step":"any"}`},
		{name: "numeric step", raw: `{"$formkit":"number","name":"ratio","step":0.25}`},
		{name: "select records", raw: `{"$formkit":"select","name":"color","options":[{"value":"r","label":"Red"},{"value":"g","label":"Green"}]}`},
		{name: "radio strings", raw: `{"$formkit":"radio","name":"yn","options":["yes","no"]}`},
		{name: "dropdown map", raw: `{"$formkit":"dropdown","name":"d","options":{"b":"Bee","a":"Ay"},"empty-message":"none","selectIcon":"down","placeholder":"pick"}`},
		{name: "options expression", raw: `{"$formkit":"autocomplete","name":"dyn","options":"$get(items).value"}`},
		{name: "component", raw: `{"$cmp":"FormKit","props":{"type":"text"},"if":"$show","key":"k1"}`},
		{name: "condition", raw: `{"if":"$x > 1","then":[{"$el":"p","children":["hi"]}],"else":"nothing","custom":true}`},
		{name: "condition single node", raw: `{"if":"$x","then":{"$el":"span"}}`},
		{name: "repeater", raw: `{"$formkit":"repeater","name":"r","upControl":false,"downControl":true,"addLabel":"Add","min":1,"children":[{"$formkit":"text","name":"x"}]}`},
		{name: "datepicker", raw: `{"$formkit":"datepicker","name":"when","format":"DD/MM/YYYY","calendarIcon":"cal","nextIcon":"n","prevIcon":"p"}`},
		{name: "common props", raw: `{"$formkit":"text","name":"t","readonly":true,"classes":{"outer":"x"},"validation-messages":{"required":"Needed"},"meta":{"a":1.50},"for":["item","i","$items"],"value":3,"help":"h","bind":"$attrs","prefix-icon":"user","validation-label":"T","validation-visibility":"blur","id":"t-1"}`},
		{name: "group with extras", raw: `{"$formkit":"group","name":"g","x-layout":{"cols":[1,2]},"children":[]}`},
	}

	parser := NewParser(nil)
	serializer := NewSerializer(nil)
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			want := testsupport.MustDecode(t, tc.raw)

			parsed, err := parser.Parse([]byte(tc.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, err := serializer.Serialize(parsed, schema.WithOptions(true))
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			if diff := testsupport.Diff(t, want, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}

			data, err := serializer.Marshal(parsed, schema.WithOptions(true))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			again, err := parser.Parse(data)
			if err != nil {
				t.Fatalf("reparse: %v", err)
			}
			second, err := serializer.Serialize(again, schema.WithOptions(true))
			if err != nil {
				t.Fatalf("reserialize: %v", err)
			}
			if diff := testsupport.Diff(t, got, second); diff != "" {
				t.Fatalf("second pass mismatch (-first +second):\n%s", diff)
			}
		})
	}
}

func TestSerializeOmitsStaticOptions(t *testing.T) {
	t.Parallel()

	parser := NewParser(nil)
	serializer := NewSerializer(nil)

	static, err := parser.Parse([]byte(`{"$formkit":"select","name":"s","options":["a","b"]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := serializer.Serialize(static)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, ok := out.(map[string]any)[node.KeyOptions]; ok {
		t.Fatalf("static options emitted without WithOptions: %v", out)
	}

	dynamic, err := parser.Parse([]byte(`{"$formkit":"select","name":"s","options":"$list"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err = serializer.Serialize(dynamic)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if got := out.(map[string]any)[node.KeyOptions]; got != "$list" {
		t.Fatalf("options = %v, want expression", got)
	}
}

func TestSerializeBranchOptionsFollowWithOptions(t *testing.T) {
	t.Parallel()

	parsed, err := NewParser(nil).Parse([]byte(`{"if":"$x","then":{"$formkit":"select","name":"pick","options":{"b":"B","a":"A"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	serializer := NewSerializer(nil)

	without, err := serializer.Serialize(parsed)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := testsupport.MustDecode(t, `{"if":"$x","then":{"$formkit":"select","name":"pick"}}`)
	if diff := testsupport.Diff(t, want, without); diff != "" {
		t.Fatalf("branch options emitted without WithOptions (-want +got):\n%s", diff)
	}

	data, err := serializer.Marshal(parsed, schema.WithOptions(true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(data, []byte(`"options":{"b":"B","a":"A"}`)) {
		t.Fatalf("branch options missing or reordered: %s", data)
	}
}

func TestSerializeMapOptionsKeepOrder(t *testing.T) {
	t.Parallel()

	parsed, err := NewParser(nil).Parse([]byte(`{"$formkit":"dropdown","options":{"z":"Zed","a":"Ay"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := NewSerializer(nil).Marshal(parsed, schema.WithOptions(true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(data, []byte(`{"z":"Zed","a":"Ay"}`)) {
		t.Fatalf("options order lost: %s", data)
	}
}

func TestSerializeChildrenAlwaysList(t *testing.T) {
	t.Parallel()

	parsed, err := NewParser(nil).Parse([]byte(`{"$el":"p","children":"hello"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := NewSerializer(nil).Serialize(parsed)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := testsupport.MustDecode(t, `{"$el":"p","children":["hello"]}`)
	if diff := testsupport.Diff(t, want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeKnownFieldsWin(t *testing.T) {
	t.Parallel()

	in := &node.Input{
		Kind: node.KindText,
		Common: node.Common{
			Name:  "n",
			Label: "Known",
			Extra: map[string]any{"label": "Extra", "x": "kept"},
		},
	}
	got, err := NewSerializer(nil).Serialize(in)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := map[string]any{"$formkit": "text", "name": "n", "label": "Known", "x": "kept"}
	if diff := testsupport.Diff(t, want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeWithoutExtrasAndChildren(t *testing.T) {
	t.Parallel()

	parsed, err := NewParser(nil).Parse([]byte(`{"$el":"div","x":1,"children":[{"$el":"span"}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := NewSerializer(nil).Serialize(parsed, schema.Recursive(false), schema.WithoutExtras())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := map[string]any{"$el": "div"}
	if diff := testsupport.Diff(t, want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeEmptyObjectBecomesEmptyString(t *testing.T) {
	t.Parallel()

	parsed, err := NewParser(nil).Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := NewSerializer(nil).Serialize(parsed)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if got != "" {
		t.Fatalf("serialize empty = %#v, want empty string", got)
	}
}

func TestSerializeRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := NewSerializer(nil).Serialize(&node.Input{Kind: "mystery"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := NewSerializer(nil).Serialize(nil); err == nil {
		t.Fatalf("expected error for nil node")
	}
}
