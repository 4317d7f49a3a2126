// Package repository stores schema trees as flat node rows plus ordered
// containment edges, and assembles them back into trees.
//
// Nodes live in schema_nodes. A node's children are node_children edges
// scoped to the parent; a schema's top-level nodes are form_components rows
// scoped to the schema; static input options are options rows scoped to an
// option group. All three collections are renumbered by the ordering engine.
package repository

import (
	"github.com/goliatone/go-formstore/internal/wire"
	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/ordering"
	"github.com/goliatone/go-formstore/pkg/store"
)

// Ordered collections managed by the repository.
var (
	ChildEdges    = ordering.Collection{Table: "node_children", Scope: "parent_id", Member: "child_id"}
	SchemaMembers = ordering.Collection{Table: "form_components", Scope: "schema_id", Member: "node_id"}
	GroupOptions  = ordering.Collection{Table: "options", Scope: "group_id", Member: "id"}
)

func childScope(parentID string) ordering.Scope {
	return ordering.Scope{Collection: ChildEdges, ID: parentID}
}

func schemaScope(schemaID string) ordering.Scope {
	return ordering.Scope{Collection: SchemaMembers, ID: schemaID}
}

func optionScope(groupID string) ordering.Scope {
	return ordering.Scope{Collection: GroupOptions, ID: groupID}
}

// Repository reads and writes schema trees.
type Repository struct {
	store      *store.Store
	registry   *node.Registry
	parser     *wire.Parser
	serializer *wire.Serializer
	engine     *ordering.Engine
	logger     logging.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithRegistry sets the node registry. Defaults to node.NewRegistry().
func WithRegistry(registry *node.Registry) Option {
	return func(r *Repository) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// WithLogger attaches an event logger. Defaults to the store's logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a Repository over s.
func New(s *store.Store, opts ...Option) *Repository {
	r := &Repository{store: s, logger: s.Logger()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.registry == nil {
		r.registry = node.NewRegistry()
	}
	r.logger = logging.OrNop(r.logger)
	r.parser = wire.NewParser(r.registry)
	r.serializer = wire.NewSerializer(r.registry)
	r.engine = ordering.New(ordering.WithLogger(r.logger))
	return r
}

// Registry returns the registry nodes are parsed against.
func (r *Repository) Registry() *node.Registry { return r.registry }

// Store returns the backing store.
func (r *Repository) Store() *store.Store { return r.store }
