package wire

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/schema"
)

var _ schema.Parser = (*Parser)(nil)

// Parser implements schema.Parser against a node registry.
type Parser struct {
	registry *node.Registry
}

// NewParser constructs a parser. A nil registry falls back to the built-in
// kinds.
func NewParser(registry *node.Registry) *Parser {
	if registry == nil {
		registry = node.NewRegistry()
	}
	return &Parser{registry: registry}
}

// Parse implements schema.Parser.
func (p *Parser) Parse(raw []byte, opts ...schema.Option) (node.Node, error) {
	return p.parse(raw, schema.NewOptions(opts...))
}

// ParseValue implements schema.Parser.
func (p *Parser) ParseValue(value any, opts ...schema.Option) (node.Node, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("wire: encode value: %w", err)
	}
	return p.Parse(raw, opts...)
}

// ParseSchema implements schema.Parser.
func (p *Parser) ParseSchema(raw []byte, opts ...schema.Option) ([]node.Node, error) {
	cfg := schema.NewOptions(opts...)
	trimmed := bytes.TrimSpace(raw)
	switch leading(trimmed) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("wire: decode schema: %w", err)
		}
		return p.parseList(items, cfg)
	case '{':
		fields, err := decodeObject(trimmed)
		if err != nil {
			return nil, err
		}
		if children, ok := fields[node.KeyChildren]; ok && !discriminated(fields) {
			return p.parseChildren(children, cfg, newObject("", fields))
		}
		n, err := p.parse(trimmed, cfg)
		if err != nil {
			return nil, err
		}
		return []node.Node{n}, nil
	case 0:
		return nil, fmt.Errorf("wire: schema document is empty")
	}
	return nil, fmt.Errorf("wire: schema must be an array or an object")
}

func (p *Parser) parseList(items []json.RawMessage, cfg schema.Options) ([]node.Node, error) {
	out := make([]node.Node, 0, len(items))
	for idx, item := range items {
		n, err := p.parse(item, cfg)
		if err != nil {
			return nil, fmt.Errorf("wire: item %d: %w", idx, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (p *Parser) parse(raw []byte, cfg schema.Options) (node.Node, error) {
	trimmed := bytes.TrimSpace(raw)
	switch leading(trimmed) {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("wire: decode text: %w", err)
		}
		return &node.Text{Value: text}, nil
	case '{':
	default:
		return nil, &node.UnresolvedError{}
	}

	fields, err := decodeObject(trimmed)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return &node.Text{}, nil
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	variant, err := node.Discriminate(keys)
	if err != nil {
		return nil, err
	}

	obj := newObject(variant, fields)
	switch variant {
	case node.VariantElement:
		return p.parseElement(obj, cfg)
	case node.VariantInput:
		return p.parseInput(obj, cfg)
	case node.VariantComponent:
		return p.parseComponent(obj, cfg)
	case node.VariantCondition:
		return p.parseCondition(obj, cfg)
	}
	return nil, &node.UnresolvedError{Keys: obj.keys()}
}

// marker reads a discriminator value that may appear under its dollar
// prefixed wire name or its bare alias.
func (p *Parser) marker(obj *object, wire, alias string) (string, error) {
	primary, err := obj.stringField(wire)
	if err != nil {
		return "", err
	}
	secondary, err := obj.stringField(alias)
	if err != nil {
		return "", err
	}
	switch {
	case primary != "" && secondary != "" && primary != secondary:
		return "", obj.fail(wire, "conflicts with %q (%q != %q)", alias, primary, secondary)
	case primary != "":
		return primary, nil
	case secondary != "":
		return secondary, nil
	}
	return "", obj.fail(wire, "is required")
}

func (p *Parser) parseElement(obj *object, cfg schema.Options) (node.Node, error) {
	el, err := p.marker(obj, node.MarkerElement, "el")
	if err != nil {
		return nil, err
	}
	out := &node.Element{El: el}
	if out.Attrs, err = obj.objectField("attrs"); err != nil {
		return nil, err
	}
	if out.Common, err = p.parseCommon(obj, cfg); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) parseComponent(obj *object, cfg schema.Options) (node.Node, error) {
	cmp, err := p.marker(obj, node.MarkerComponent, "cmp")
	if err != nil {
		return nil, err
	}
	out := &node.Component{Cmp: cmp}
	if out.Props, err = obj.objectField("props"); err != nil {
		return nil, err
	}
	if out.Common, err = p.parseCommon(obj, cfg); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) parseInput(obj *object, cfg schema.Options) (node.Node, error) {
	kind, err := p.marker(obj, node.MarkerInput, "formkit")
	if err != nil {
		return nil, err
	}
	obj.kind = node.InputKind(kind)
	spec, ok := p.registry.Kind(obj.kind)
	if !ok {
		return nil, obj.fail(node.MarkerInput, "unknown input kind %q", kind)
	}

	out := &node.Input{Kind: spec.Kind}
	if out.Readonly, err = obj.boolField("readonly"); err != nil {
		return nil, err
	}
	for _, field := range spec.Fields {
		if err := p.parseInputField(obj, out, field); err != nil {
			return nil, err
		}
	}
	if out.Common, err = p.parseCommon(obj, cfg); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) parseInputField(obj *object, in *node.Input, field string) error {
	var err error
	switch field {
	case "text":
		in.Text, err = obj.stringField(field)
	case "min":
		in.Min, err = obj.intField(field)
	case "max":
		in.Max, err = obj.intField(field)
	case "step":
		in.Step, err = parseStep(obj)
	case node.KeyOptions:
		if raw, ok := obj.take(field); ok {
			in.Options, err = parseOptions(obj, raw)
		}
	case "empty-message":
		in.EmptyMessage, err = obj.stringField(field)
	case "selectIcon":
		in.SelectIcon, err = obj.stringField(field)
	case "upControl":
		in.UpControl, err = obj.boolField(field)
	case "downControl":
		in.DownControl, err = obj.boolField(field)
	case "addLabel":
		in.AddLabel, err = obj.stringField(field)
	case "calendarIcon":
		in.CalendarIcon, err = obj.stringField(field)
	case "format":
		in.Format, err = obj.stringField(field)
	case "nextIcon":
		in.NextIcon, err = obj.stringField(field)
	case "prevIcon":
		in.PrevIcon, err = obj.stringField(field)
	}
	return err
}

func parseStep(obj *object) (any, error) {
	value, err := obj.valueField("step")
	if err != nil || value == nil {
		return value, err
	}
	switch value.(type) {
	case string, json.Number:
		return value, nil
	}
	return nil, obj.fail("step", "must be a string or a number")
}

func (p *Parser) parseCondition(obj *object, cfg schema.Options) (node.Node, error) {
	out := &node.Condition{}
	var err error
	if !obj.has("if") {
		return nil, obj.fail("if", "is required")
	}
	if out.If, err = obj.stringField("if"); err != nil {
		return nil, err
	}

	branchCfg := cfg
	branchCfg.Recursive = true

	then, ok := obj.take("then")
	if !ok {
		return nil, obj.fail("then", "is required")
	}
	if out.Then, err = p.parseBranch(obj, "then", then, branchCfg); err != nil {
		return nil, err
	}
	if raw, ok := obj.take("else"); ok {
		branch, err := p.parseBranch(obj, "else", raw, branchCfg)
		if err != nil {
			return nil, err
		}
		out.Else = &branch
	}
	if out.Extra, err = obj.extras(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) parseBranch(obj *object, field string, raw json.RawMessage, cfg schema.Options) (node.Branch, error) {
	switch leading(raw) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return node.Branch{}, obj.fail(field, "%v", err)
		}
		nodes, err := p.parseList(items, cfg)
		if err != nil {
			return node.Branch{}, err
		}
		return node.Branch{Nodes: nodes, List: true}, nil
	case '"', '{':
		n, err := p.parse(raw, cfg)
		if err != nil {
			return node.Branch{}, err
		}
		return node.Branch{Nodes: []node.Node{n}}, nil
	}
	return node.Branch{}, obj.fail(field, "must be a node or an array of nodes")
}

func (p *Parser) parseCommon(obj *object, cfg schema.Options) (node.Common, error) {
	var (
		out node.Common
		err error
	)
	strings := []struct {
		key string
		dst *string
	}{
		{"key", &out.Key},
		{"if", &out.If},
		{"bind", &out.Bind},
		{"id", &out.ID},
		{"name", &out.Name},
		{"label", &out.Label},
		{"help", &out.Help},
		{"validation", &out.Validation},
		{"validation-label", &out.ValidationLabel},
		{"validation-visibility", &out.ValidationVisibility},
		{"placeholder", &out.Placeholder},
		{"prefix-icon", &out.PrefixIcon},
	}
	for _, field := range strings {
		if *field.dst, err = obj.stringField(field.key); err != nil {
			return node.Common{}, err
		}
	}
	if out.For, err = obj.listField("for"); err != nil {
		return node.Common{}, err
	}
	if out.Meta, err = obj.objectField("meta"); err != nil {
		return node.Common{}, err
	}
	if out.ValidationMessages, err = obj.stringOrObject("validation-messages"); err != nil {
		return node.Common{}, err
	}
	if out.Classes, err = obj.stringOrObject("classes"); err != nil {
		return node.Common{}, err
	}
	if out.Value, err = obj.valueField("value"); err != nil {
		return node.Common{}, err
	}

	if raw, ok := obj.take(node.KeyChildren); ok && cfg.Recursive {
		if out.Children, err = p.parseChildren(raw, cfg, obj); err != nil {
			return node.Common{}, err
		}
	}

	if out.Extra, err = obj.extras(); err != nil {
		return node.Common{}, err
	}
	return out, nil
}

// parseChildren accepts a single string or an array of strings and objects.
func (p *Parser) parseChildren(raw json.RawMessage, cfg schema.Options, obj *object) ([]node.Node, error) {
	switch leading(raw) {
	case '"':
		n, err := p.parse(raw, cfg)
		if err != nil {
			return nil, err
		}
		return []node.Node{n}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, obj.fail(node.KeyChildren, "%v", err)
		}
		out := make([]node.Node, 0, len(items))
		for idx, item := range items {
			switch leading(item) {
			case '"', '{':
			default:
				return nil, obj.fail(node.KeyChildren, "item %d must be a string or an object", idx)
			}
			child, err := p.parse(item, cfg)
			if err != nil {
				return nil, fmt.Errorf("wire: child %d: %w", idx, err)
			}
			out = append(out, child)
		}
		return out, nil
	}
	return nil, obj.fail(node.KeyChildren, "must be a string or an array")
}

func discriminated(fields map[string]json.RawMessage) bool {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	_, err := node.Discriminate(keys)
	return err == nil
}
