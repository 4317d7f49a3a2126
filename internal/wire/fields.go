package wire

import (
	"bytes"
	"fmt"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstore/pkg/node"
)

// object is a decoded wire object that remembers which keys a variant
// claimed, so the rest can be routed to extra props.
type object struct {
	variant node.Variant
	kind    node.InputKind
	raw     map[string]json.RawMessage
	handled map[string]struct{}
}

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("wire: decode object: %w", err)
	}
	return fields, nil
}

func newObject(variant node.Variant, raw map[string]json.RawMessage) *object {
	return &object{variant: variant, raw: raw, handled: make(map[string]struct{}, len(raw))}
}

func (o *object) fail(field, reason string, args ...any) error {
	return &node.ValidationError{
		Variant: o.variant,
		Kind:    o.kind,
		Field:   field,
		Reason:  fmt.Sprintf(reason, args...),
	}
}

// take claims key and returns its raw value. Explicit nulls are claimed but
// reported as absent.
func (o *object) take(key string) (json.RawMessage, bool) {
	raw, ok := o.raw[key]
	if !ok {
		return nil, false
	}
	o.handled[key] = struct{}{}
	if isNull(raw) {
		return nil, false
	}
	return raw, true
}

func (o *object) has(key string) bool {
	_, ok := o.raw[key]
	return ok
}

func (o *object) stringField(key string) (string, error) {
	raw, ok := o.take(key)
	if !ok {
		return "", nil
	}
	var out string
	if leading(raw) != '"' || json.Unmarshal(raw, &out) != nil {
		return "", o.fail(key, "must be a string")
	}
	return out, nil
}

func (o *object) boolField(key string) (*bool, error) {
	raw, ok := o.take(key)
	if !ok {
		return nil, nil
	}
	var out bool
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, o.fail(key, "must be a boolean")
	}
	return &out, nil
}

func (o *object) intField(key string) (*int, error) {
	raw, ok := o.take(key)
	if !ok {
		return nil, nil
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, o.fail(key, "must be an integer")
	}
	num, ok := value.(json.Number)
	if !ok {
		return nil, o.fail(key, "must be an integer")
	}
	n, err := num.Int64()
	if err != nil {
		return nil, o.fail(key, "must be an integer, got %s", num)
	}
	out := int(n)
	return &out, nil
}

func (o *object) objectField(key string) (map[string]any, error) {
	raw, ok := o.take(key)
	if !ok {
		return nil, nil
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, o.fail(key, "%v", err)
	}
	out, ok := value.(map[string]any)
	if !ok {
		return nil, o.fail(key, "must be an object")
	}
	return out, nil
}

func (o *object) listField(key string) ([]any, error) {
	raw, ok := o.take(key)
	if !ok {
		return nil, nil
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, o.fail(key, "%v", err)
	}
	out, ok := value.([]any)
	if !ok {
		return nil, o.fail(key, "must be an array")
	}
	return out, nil
}

func (o *object) valueField(key string) (any, error) {
	raw, ok := o.take(key)
	if !ok {
		return nil, nil
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, o.fail(key, "%v", err)
	}
	return value, nil
}

// stringOrObject accepts the string-or-map fields such as classes.
func (o *object) stringOrObject(key string) (any, error) {
	value, err := o.valueField(key)
	if err != nil || value == nil {
		return value, err
	}
	switch value.(type) {
	case string, map[string]any:
		return value, nil
	}
	return nil, o.fail(key, "must be a string or an object")
}

// extras collects every unclaimed key, layered over an additional_props
// object when one was supplied.
func (o *object) extras() (map[string]any, error) {
	base, err := o.objectField(node.KeyAdditionalProps)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(base))
	for key, value := range base {
		out[key] = value
	}
	for _, key := range o.keys() {
		if _, claimed := o.handled[key]; claimed {
			continue
		}
		value, err := decodeValue(o.raw[key])
		if err != nil {
			return nil, o.fail(key, "%v", err)
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (o *object) keys() []string {
	out := make([]string, 0, len(o.raw))
	for key := range o.raw {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

func leading(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
