package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/ordering"
	"github.com/goliatone/go-formstore/pkg/schema"
	"github.com/goliatone/go-formstore/pkg/store"
)

// NodeRow is a persisted node. Order is not stored on the row; it comes from
// the edge that places the node in its parent or schema.
type NodeRow struct {
	ID            string
	Variant       node.Variant
	Payload       []byte
	ExtraProps    []byte
	TextContent   string
	Label         string
	Active        bool
	Protected     bool
	SchemaID      string
	OptionGroupID string
	TrackChange   int64
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Order is the node's position in its containing scope, 0 when the node
	// is inactive or unplaced.
	Order int
}

const nodeColumns = `id, node_type, payload, extra_props, text_content, label, is_active, protected,
	schema_id, option_group_id, track_change, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNodeRow(scanner rowScanner) (NodeRow, error) {
	var (
		row                          NodeRow
		variant, payload             string
		extra, text, schemaID, group sql.NullString
		created, updated             string
	)
	err := scanner.Scan(&row.ID, &variant, &payload, &extra, &text, &row.Label, &row.Active, &row.Protected,
		&schemaID, &group, &row.TrackChange, &created, &updated)
	if err != nil {
		return NodeRow{}, err
	}
	row.Variant = node.Variant(variant)
	row.Payload = []byte(payload)
	if extra.Valid {
		row.ExtraProps = []byte(extra.String)
	}
	row.TextContent = text.String
	row.SchemaID = schemaID.String
	row.OptionGroupID = group.String
	row.CreatedAt, _ = store.ParseTime(created)
	row.UpdatedAt, _ = store.ParseTime(updated)
	return row, nil
}

func loadRow(ctx context.Context, q store.Querier, id string) (NodeRow, error) {
	row, err := scanNodeRow(q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM schema_nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return NodeRow{}, notFound("node", id)
	}
	if err != nil {
		return NodeRow{}, fmt.Errorf("repository: load node %s: %w", id, err)
	}
	return row, nil
}

// placement is where a node currently sits: under a parent edge, as a schema
// member, or nowhere.
type placement struct {
	ParentID string
	SchemaID string
	Order    int
}

func (p placement) scope() (ordering.Scope, bool) {
	switch {
	case p.ParentID != "":
		return childScope(p.ParentID), true
	case p.SchemaID != "":
		return schemaScope(p.SchemaID), true
	}
	return ordering.Scope{}, false
}

func (p placement) placed() bool { return p.ParentID != "" || p.SchemaID != "" }

func loadPlacement(ctx context.Context, q store.Querier, id string) (placement, error) {
	var (
		parent string
		order  sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT parent_id, "order" FROM node_children WHERE child_id = ?`, id).Scan(&parent, &order)
	switch {
	case err == nil:
		return placement{ParentID: parent, Order: int(order.Int64)}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return placement{}, fmt.Errorf("repository: load parent of %s: %w", id, err)
	}

	var schemaID string
	err = q.QueryRowContext(ctx, `SELECT schema_id, "order" FROM form_components WHERE node_id = ?`, id).Scan(&schemaID, &order)
	switch {
	case err == nil:
		return placement{SchemaID: schemaID, Order: int(order.Int64)}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return placement{}, fmt.Errorf("repository: load schema of %s: %w", id, err)
	}
	return placement{}, nil
}

// encoded is a node split into its row columns.
type encoded struct {
	variant  node.Variant
	payload  []byte
	extra    []byte
	text     sql.NullString
	label    string
	children bool
}

// encode splits n into the known-field payload and the extra props map.
// Children and static options, branch inputs' included, are stored
// relationally, so the payload only records whether a children list was
// present.
func (r *Repository) encode(n node.Node) (encoded, error) {
	out := encoded{variant: n.Variant(), label: displayLabel(n)}
	if text, ok := n.(*node.Text); ok {
		out.payload = []byte(`{}`)
		out.text = sql.NullString{String: text.Value, Valid: true}
		return out, nil
	}

	value, err := r.serializer.Serialize(n, schema.Recursive(false), schema.WithOptions(false), schema.WithoutExtras())
	if err != nil {
		return encoded{}, err
	}
	payload, ok := value.(map[string]any)
	if !ok {
		return encoded{}, fmt.Errorf("repository: unexpected payload %T", value)
	}
	var extra map[string]any
	if common := node.CommonOf(n); common != nil {
		extra = common.Extra
		if common.Children != nil {
			payload[node.KeyChildren] = []any{}
			out.children = true
		}
	}
	if cond, ok := n.(*node.Condition); ok {
		extra = cond.Extra
	}

	if out.payload, err = json.Marshal(payload); err != nil {
		return encoded{}, fmt.Errorf("repository: encode payload: %w", err)
	}
	if len(extra) > 0 {
		if out.extra, err = json.Marshal(extra); err != nil {
			return encoded{}, fmt.Errorf("repository: encode extra props: %w", err)
		}
	}
	return out, nil
}

// decode rebuilds the node a row stores, without children or options.
func (r *Repository) decode(row NodeRow) (node.Node, bool, error) {
	if row.Variant == node.VariantText {
		n := &node.Text{Value: row.TextContent}
		n.Storage().ID = row.ID
		n.Storage().Protected = row.Protected
		return n, false, nil
	}

	obj, err := decodeMap(row.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("repository: node %s payload: %w", row.ID, err)
	}
	if len(row.ExtraProps) > 0 {
		extra, err := decodeMap(row.ExtraProps)
		if err != nil {
			return nil, false, fmt.Errorf("repository: node %s extra props: %w", row.ID, err)
		}
		for key, value := range extra {
			if _, known := obj[key]; !known {
				obj[key] = value
			}
		}
	}
	_, hasChildren := obj[node.KeyChildren]

	n, err := r.parser.ParseValue(obj, schema.Recursive(false))
	if err != nil {
		return nil, false, fmt.Errorf("repository: node %s: %w", row.ID, err)
	}
	n.Storage().ID = row.ID
	n.Storage().Protected = row.Protected
	return n, hasChildren, nil
}

func decodeMap(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := make(map[string]any)
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
