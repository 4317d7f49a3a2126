package schema

import "github.com/goliatone/go-formstore/pkg/node"

// Parser maps wire JSON onto nodes.
type Parser interface {
	// Parse reads a single node: a string, an object, or the empty object.
	Parse(raw []byte, opts ...Option) (node.Node, error)
	// ParseValue parses an already decoded value. Object key order is not
	// preserved for map valued options.
	ParseValue(value any, opts ...Option) (node.Node, error)
	// ParseSchema reads a whole schema: an array of nodes. A single object is
	// treated as a one element schema, and an object holding nothing but
	// children is unwrapped to those children.
	ParseSchema(raw []byte, opts ...Option) ([]node.Node, error)
}

// Serializer maps nodes back onto wire values.
type Serializer interface {
	Serialize(n node.Node, opts ...Option) (any, error)
	SerializeSchema(nodes []node.Node, opts ...Option) ([]any, error)
	Marshal(n node.Node, opts ...Option) ([]byte, error)
	MarshalSchema(nodes []node.Node, opts ...Option) ([]byte, error)
}

// Options configure parsing and serialization.
type Options struct {
	// Recursive controls whether children are read or emitted. Condition
	// branches are always read and emitted in full, extras included; their
	// static options follow IncludeOptions.
	Recursive bool
	// IncludeOptions emits static option lists on serialize. Option
	// expressions are always emitted.
	IncludeOptions bool
	// IncludeExtras flattens extra props into the serialized object.
	IncludeExtras bool
}

// Option mutates Options.
type Option func(*Options)

// NewOptions applies opts over the defaults: recursive, extras included,
// static options omitted.
func NewOptions(opts ...Option) Options {
	cfg := Options{Recursive: true, IncludeExtras: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Recursive toggles child handling.
func Recursive(enabled bool) Option {
	return func(o *Options) { o.Recursive = enabled }
}

// WithOptions toggles emission of static option lists.
func WithOptions(enabled bool) Option {
	return func(o *Options) { o.IncludeOptions = enabled }
}

// WithoutExtras drops extra props from serialized output.
func WithoutExtras() Option {
	return func(o *Options) { o.IncludeExtras = false }
}
