package repository

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/store"
)

// TreeOptions control tree assembly.
type TreeOptions struct {
	Recursive      bool
	IncludeOptions bool
}

// TreeOption mutates TreeOptions.
type TreeOption func(*TreeOptions)

// NewTreeOptions applies opts over the defaults: recursive, options omitted.
func NewTreeOptions(opts ...TreeOption) TreeOptions {
	cfg := TreeOptions{Recursive: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Recursive toggles loading of children.
func Recursive(enabled bool) TreeOption {
	return func(o *TreeOptions) { o.Recursive = enabled }
}

// WithOptions toggles loading of static option rows into select-like inputs.
func WithOptions(enabled bool) TreeOption {
	return func(o *TreeOptions) { o.IncludeOptions = enabled }
}

// GetTree loads node id and, when recursive, its active children in order.
func (r *Repository) GetTree(ctx context.Context, id string, opts ...TreeOption) (n node.Node, err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.get_tree", Node: id})
	defer func() { done(err) }()
	return r.loadTree(ctx, r.store, id, NewTreeOptions(opts...), make(map[string]struct{}))
}

// SchemaNodes loads the active top-level nodes of a schema in order. It reads
// through q so callers holding a transaction see their own writes.
func (r *Repository) SchemaNodes(ctx context.Context, q store.Querier, schemaID string, opts ...TreeOption) ([]node.Node, error) {
	if q == nil {
		q = r.store
	}
	if _, err := r.getSchema(ctx, q, schemaID); err != nil {
		return nil, err
	}
	members, err := r.engine.Members(ctx, q, schemaScope(schemaID))
	if err != nil {
		return nil, err
	}
	cfg := NewTreeOptions(opts...)
	visited := make(map[string]struct{})
	out := make([]node.Node, 0, len(members))
	for _, member := range members {
		n, err := r.loadTree(ctx, q, member.ID, cfg, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *Repository) loadTree(ctx context.Context, q store.Querier, id string, cfg TreeOptions, visited map[string]struct{}) (node.Node, error) {
	if _, seen := visited[id]; seen {
		return nil, fmt.Errorf("%w: node %s reached twice", ErrCycle, id)
	}
	visited[id] = struct{}{}

	row, err := loadRow(ctx, q, id)
	if err != nil {
		return nil, err
	}
	n, hasChildren, err := r.decode(row)
	if err != nil {
		return nil, err
	}

	if cfg.IncludeOptions {
		switch v := n.(type) {
		case *node.Input:
			if row.OptionGroupID != "" {
				items, err := r.loadOptions(ctx, q, row.OptionGroupID)
				if err != nil {
					return nil, err
				}
				v.Options = node.RecordOptions(items...)
			}
		case *node.Condition:
			if err := r.loadBranchOptions(ctx, q, row.ID, v); err != nil {
				return nil, err
			}
		}
	}

	if !cfg.Recursive {
		return n, nil
	}
	common := node.CommonOf(n)
	if common == nil {
		return n, nil
	}
	members, err := r.engine.Members(ctx, q, childScope(id))
	if err != nil {
		return nil, err
	}
	if len(members) == 0 && !hasChildren {
		return n, nil
	}
	common.Children = make([]node.Node, 0, len(members))
	for _, member := range members {
		child, err := r.loadTree(ctx, q, member.ID, cfg, visited)
		if err != nil {
			return nil, err
		}
		common.Children = append(common.Children, child)
	}
	return n, nil
}

func (r *Repository) loadOptions(ctx context.Context, q store.Querier, groupID string) ([]node.Option, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT value, label FROM options WHERE group_id = ? AND "order" IS NOT NULL ORDER BY "order" ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("repository: load options %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []node.Option
	for rows.Next() {
		var option node.Option
		if err := rows.Scan(&option.Value, &option.Label); err != nil {
			return nil, fmt.Errorf("repository: scan option: %w", err)
		}
		out = append(out, option)
	}
	return out, rows.Err()
}
