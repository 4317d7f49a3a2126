package wire

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstore/pkg/node"
)

// parseOptions accepts an expression string, a list of strings, a list of
// {value, label} records or a value to label object. Object order is kept by
// reading the object token by token.
func parseOptions(obj *object, raw json.RawMessage) (*node.Options, error) {
	switch leading(raw) {
	case '"':
		var expr string
		if err := json.Unmarshal(raw, &expr); err != nil {
			return nil, obj.fail(node.KeyOptions, "%v", err)
		}
		return node.ExpressionOptions(expr), nil
	case '[':
		return parseOptionList(obj, raw)
	case '{':
		items, err := decodeOrderedLabels(raw)
		if err != nil {
			return nil, obj.fail(node.KeyOptions, "%v", err)
		}
		return &node.Options{Shape: node.OptionsMap, Items: items}, nil
	}
	return nil, obj.fail(node.KeyOptions, "must be an expression, a list of strings, a list of {value, label} records or an object")
}

func parseOptionList(obj *object, raw json.RawMessage) (*node.Options, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, obj.fail(node.KeyOptions, "%v", err)
	}
	out := &node.Options{Shape: node.OptionsStrings, Items: make([]node.Option, 0, len(items))}
	for idx, item := range items {
		shape := node.OptionsStrings
		if leading(item) == '{' {
			shape = node.OptionsRecords
		}
		if idx == 0 {
			out.Shape = shape
		} else if shape != out.Shape {
			return nil, obj.fail(node.KeyOptions, "item %d mixes strings and records", idx)
		}

		switch shape {
		case node.OptionsStrings:
			var value string
			if leading(item) != '"' || json.Unmarshal(item, &value) != nil {
				return nil, obj.fail(node.KeyOptions, "item %d must be a string or a {value, label} record", idx)
			}
			out.Items = append(out.Items, node.Option{Value: value, Label: value})
		case node.OptionsRecords:
			option, err := decodeOptionRecord(item)
			if err != nil {
				return nil, obj.fail(node.KeyOptions, "item %d: %v", idx, err)
			}
			out.Items = append(out.Items, option)
		}
	}
	return out, nil
}

func decodeOptionRecord(raw json.RawMessage) (node.Option, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return node.Option{}, err
	}
	var option node.Option
	for key, value := range record {
		var text string
		if leading(value) != '"' || json.Unmarshal(value, &text) != nil {
			return node.Option{}, fmt.Errorf("%s must be a string", key)
		}
		switch key {
		case "value":
			option.Value = text
		case "label":
			option.Label = text
		default:
			return node.Option{}, fmt.Errorf("unsupported key %q", key)
		}
	}
	if _, ok := record["value"]; !ok {
		return node.Option{}, fmt.Errorf("value is required")
	}
	return option, nil
}

func decodeOrderedLabels(raw []byte) ([]node.Option, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []node.Option
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", keyTok)
		}
		valueTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		label, ok := valueTok.(string)
		if !ok {
			return nil, fmt.Errorf("label for %q must be a string", key)
		}
		out = append(out, node.Option{Value: key, Label: label})
	}
	return out, nil
}

// orderedLabels serializes map shaped options in their original order.
type orderedLabels []node.Option

func (m orderedLabels) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, option := range m {
		if idx > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(option.Value)
		if err != nil {
			return nil, err
		}
		label, err := json.Marshal(option.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(label)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeOptions(opts *node.Options) any {
	switch opts.Shape {
	case node.OptionsExpression:
		return opts.Expression
	case node.OptionsStrings:
		out := make([]any, 0, len(opts.Items))
		for _, option := range opts.Items {
			out = append(out, option.Value)
		}
		return out
	case node.OptionsMap:
		return orderedLabels(append([]node.Option(nil), opts.Items...))
	}
	out := make([]any, 0, len(opts.Items))
	for _, option := range opts.Items {
		record := map[string]any{"value": option.Value}
		if option.Label != "" {
			record["label"] = option.Label
		}
		out = append(out, record)
	}
	return out
}
