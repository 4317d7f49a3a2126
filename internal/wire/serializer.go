package wire

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/schema"
)

var _ schema.Serializer = (*Serializer)(nil)

// Serializer implements schema.Serializer.
type Serializer struct {
	registry *node.Registry
}

// NewSerializer constructs a serializer. A nil registry falls back to the
// built-in kinds.
func NewSerializer(registry *node.Registry) *Serializer {
	if registry == nil {
		registry = node.NewRegistry()
	}
	return &Serializer{registry: registry}
}

// Serialize implements schema.Serializer. Text nodes become strings and every
// other variant a map keyed by wire names.
func (s *Serializer) Serialize(n node.Node, opts ...schema.Option) (any, error) {
	return s.serialize(n, schema.NewOptions(opts...))
}

// SerializeSchema implements schema.Serializer.
func (s *Serializer) SerializeSchema(nodes []node.Node, opts ...schema.Option) ([]any, error) {
	cfg := schema.NewOptions(opts...)
	out := make([]any, 0, len(nodes))
	for idx, n := range nodes {
		value, err := s.serialize(n, cfg)
		if err != nil {
			return nil, fmt.Errorf("wire: item %d: %w", idx, err)
		}
		out = append(out, value)
	}
	return out, nil
}

// Marshal implements schema.Serializer.
func (s *Serializer) Marshal(n node.Node, opts ...schema.Option) ([]byte, error) {
	value, err := s.Serialize(n, opts...)
	if err != nil {
		return nil, err
	}
	return marshal(value)
}

// MarshalSchema implements schema.Serializer.
func (s *Serializer) MarshalSchema(nodes []node.Node, opts ...schema.Option) ([]byte, error) {
	values, err := s.SerializeSchema(nodes, opts...)
	if err != nil {
		return nil, err
	}
	return marshal(values)
}

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return data, nil
}

func (s *Serializer) serialize(n node.Node, cfg schema.Options) (any, error) {
	switch v := n.(type) {
	case *node.Text:
		return v.Value, nil
	case *node.Condition:
		return s.serializeCondition(v, cfg)
	case *node.Element:
		out, err := s.serializeCommon(&v.Common, cfg)
		if err != nil {
			return nil, err
		}
		out[node.MarkerElement] = v.El
		putObject(out, "attrs", v.Attrs)
		return out, nil
	case *node.Component:
		out, err := s.serializeCommon(&v.Common, cfg)
		if err != nil {
			return nil, err
		}
		out[node.MarkerComponent] = v.Cmp
		putObject(out, "props", v.Props)
		return out, nil
	case *node.Input:
		return s.serializeInput(v, cfg)
	case nil:
		return nil, fmt.Errorf("wire: nil node")
	}
	return nil, fmt.Errorf("wire: unsupported node %T", n)
}

func (s *Serializer) serializeCondition(cond *node.Condition, cfg schema.Options) (any, error) {
	out := make(map[string]any)
	if cfg.IncludeExtras {
		for key, value := range cond.Extra {
			out[key] = value
		}
	}
	branchCfg := schema.Options{Recursive: true, IncludeOptions: cfg.IncludeOptions, IncludeExtras: true}

	out["if"] = cond.If
	then, err := s.serializeBranch(cond.Then, branchCfg)
	if err != nil {
		return nil, fmt.Errorf("wire: then: %w", err)
	}
	out["then"] = then
	if cond.Else != nil {
		elseValue, err := s.serializeBranch(*cond.Else, branchCfg)
		if err != nil {
			return nil, fmt.Errorf("wire: else: %w", err)
		}
		out["else"] = elseValue
	}
	return out, nil
}

func (s *Serializer) serializeBranch(branch node.Branch, cfg schema.Options) (any, error) {
	if !branch.List && len(branch.Nodes) == 1 {
		return s.serialize(branch.Nodes[0], cfg)
	}
	out := make([]any, 0, len(branch.Nodes))
	for _, n := range branch.Nodes {
		value, err := s.serialize(n, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func (s *Serializer) serializeInput(in *node.Input, cfg schema.Options) (any, error) {
	spec, ok := s.registry.Kind(in.Kind)
	if !ok {
		return nil, &node.ValidationError{
			Variant: node.VariantInput,
			Kind:    in.Kind,
			Field:   node.MarkerInput,
			Reason:  fmt.Sprintf("unknown input kind %q", in.Kind),
		}
	}
	out, err := s.serializeCommon(&in.Common, cfg)
	if err != nil {
		return nil, err
	}
	out[node.MarkerInput] = string(in.Kind)
	putBool(out, "readonly", in.Readonly)

	for _, field := range spec.Fields {
		switch field {
		case "text":
			putString(out, field, in.Text)
		case "min":
			putInt(out, field, in.Min)
		case "max":
			putInt(out, field, in.Max)
		case "step":
			if in.Step != nil {
				out[field] = in.Step
			}
		case node.KeyOptions:
			if in.Options != nil && (cfg.IncludeOptions || !in.Options.Static()) {
				out[field] = encodeOptions(in.Options)
			}
		case "empty-message":
			putString(out, field, in.EmptyMessage)
		case "selectIcon":
			putString(out, field, in.SelectIcon)
		case "upControl":
			putBool(out, field, in.UpControl)
		case "downControl":
			putBool(out, field, in.DownControl)
		case "addLabel":
			putString(out, field, in.AddLabel)
		case "calendarIcon":
			putString(out, field, in.CalendarIcon)
		case "format":
			putString(out, field, in.Format)
		case "nextIcon":
			putString(out, field, in.NextIcon)
		case "prevIcon":
			putString(out, field, in.PrevIcon)
		}
	}
	return out, nil
}

// serializeCommon writes extras first so known fields win on collision.
func (s *Serializer) serializeCommon(common *node.Common, cfg schema.Options) (map[string]any, error) {
	out := make(map[string]any)
	if cfg.IncludeExtras {
		for key, value := range common.Extra {
			out[key] = value
		}
	}
	putString(out, "key", common.Key)
	putString(out, "if", common.If)
	putString(out, "bind", common.Bind)
	putString(out, "id", common.ID)
	putString(out, "name", common.Name)
	putString(out, "label", common.Label)
	putString(out, "help", common.Help)
	putString(out, "validation", common.Validation)
	putString(out, "validation-label", common.ValidationLabel)
	putString(out, "validation-visibility", common.ValidationVisibility)
	putString(out, "placeholder", common.Placeholder)
	putString(out, "prefix-icon", common.PrefixIcon)
	if common.For != nil {
		out["for"] = common.For
	}
	putObject(out, "meta", common.Meta)
	if common.ValidationMessages != nil {
		out["validation-messages"] = common.ValidationMessages
	}
	if common.Classes != nil {
		out["classes"] = common.Classes
	}
	if common.Value != nil {
		out["value"] = common.Value
	}

	if cfg.Recursive && common.Children != nil {
		children := make([]any, 0, len(common.Children))
		for idx, child := range common.Children {
			value, err := s.serialize(child, cfg)
			if err != nil {
				return nil, fmt.Errorf("wire: child %d: %w", idx, err)
			}
			children = append(children, value)
		}
		out[node.KeyChildren] = children
	}
	return out, nil
}

func putString(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

func putBool(out map[string]any, key string, value *bool) {
	if value != nil {
		out[key] = *value
	}
}

func putInt(out map[string]any, key string, value *int) {
	if value != nil {
		out[key] = *value
	}
}

func putObject(out map[string]any, key string, value map[string]any) {
	if value != nil {
		out[key] = value
	}
}
