package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"

	"github.com/goliatone/go-formstore/internal/naming"
	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/store"
)

// SaveTarget says where a saved root goes. ParentID wins over SchemaID for
// placement; SchemaID still marks the owning schema of every saved row.
type SaveTarget struct {
	SchemaID string
	ParentID string
	Order    *int
}

// SaveTree upserts n and its children in one transaction and returns the
// root id. Nodes without an id are inserted and receive one; nodes with an id
// are updated in place, or inserted under that id when it is unknown. Saving
// a node makes it active again.
//
// Input names are settled before anything is written: a missing name is
// derived from the label, a name already used by a sibling gets the first
// free _1, _2, ... suffix, and the result must be a valid identifier. The
// settled names are written back onto n.
//
// A new, unplaced root is appended to the schema's top-level nodes when
// schemaID is set. An already placed root keeps its position.
func (r *Repository) SaveTree(ctx context.Context, n node.Node, schemaID string) (string, error) {
	return r.save(ctx, n, SaveTarget{SchemaID: schemaID}, false)
}

// SaveTreeAt is SaveTree with an explicit placement for the root: under
// target.ParentID when set, otherwise among target.SchemaID's top-level
// nodes, at target.Order or appended.
func (r *Repository) SaveTreeAt(ctx context.Context, n node.Node, target SaveTarget) (string, error) {
	if target.ParentID == "" && target.SchemaID == "" {
		return "", fmt.Errorf("repository: save target needs a parent or a schema")
	}
	return r.save(ctx, n, target, true)
}

func (r *Repository) save(ctx context.Context, n node.Node, target SaveTarget, explicit bool) (id string, err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.save_tree", Schema: target.SchemaID, Scope: target.ParentID})
	defer func() { done(err) }()

	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		id, err = r.saveTree(ctx, tx, n, target, explicit)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// destination is a scope a node can be placed in.
type destination struct {
	ParentID string
	SchemaID string
}

type savePlan struct {
	encoded map[node.Node]encoded
	rows    map[string]NodeRow
	ids     map[string]struct{}
	// frozen holds protected rows the save leaves untouched.
	frozen map[string]struct{}
}

func (r *Repository) saveTree(ctx context.Context, tx *store.Tx, root node.Node, target SaveTarget, explicit bool) (string, error) {
	if root == nil {
		return "", fmt.Errorf("repository: nil node")
	}

	var current placement
	if rootID := root.Storage().ID; rootID != "" {
		var err error
		if current, err = loadPlacement(ctx, tx, rootID); err != nil {
			return "", err
		}
	}
	dest := destination{ParentID: target.ParentID, SchemaID: target.SchemaID}
	if dest.ParentID != "" {
		dest.SchemaID = ""
	}
	if !explicit && (current.ParentID != "" || current.SchemaID != "") {
		dest = destination{ParentID: current.ParentID, SchemaID: current.SchemaID}
	}

	rowSchema := target.SchemaID
	if target.SchemaID != "" {
		if _, err := r.getSchema(ctx, tx, target.SchemaID); err != nil {
			return "", err
		}
	}
	if dest.ParentID != "" {
		parent, err := loadRow(ctx, tx, dest.ParentID)
		if err != nil {
			return "", err
		}
		if !holdsChildren(parent.Variant) {
			return "", fmt.Errorf("repository: node %s (%s) cannot hold children", parent.ID, parent.Variant)
		}
		if rowSchema == "" {
			rowSchema = parent.SchemaID
		}
	}

	taken, err := r.siblingNames(ctx, tx, dest, root.Storage().ID)
	if err != nil {
		return "", err
	}
	plan := &savePlan{
		encoded: make(map[node.Node]encoded),
		rows:    make(map[string]NodeRow),
		ids:     make(map[string]struct{}),
		frozen:  make(map[string]struct{}),
	}
	if err := r.planNode(ctx, tx, root, "$", taken, plan); err != nil {
		return "", err
	}
	if dest.ParentID != "" {
		ancestors, err := ancestorsOf(ctx, tx, dest.ParentID)
		if err != nil {
			return "", err
		}
		for _, ancestor := range append(ancestors, dest.ParentID) {
			if _, inside := plan.ids[ancestor]; inside {
				return "", fmt.Errorf("%w: node %s would contain itself", ErrCycle, ancestor)
			}
		}
	}

	change, err := tx.NextChange(ctx)
	if err != nil {
		return "", err
	}
	id, err := r.persist(ctx, tx, root, rowSchema, change, plan)
	if err != nil {
		return "", err
	}

	switch {
	case explicit:
		err = r.attach(ctx, tx, id, dest, target.Order)
	case current.placed() && current.Order == 0:
		err = r.attach(ctx, tx, id, dest, nil)
	case !current.placed() && dest.SchemaID != "":
		err = r.attach(ctx, tx, id, dest, nil)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// planNode validates n and its descendants and settles input names without
// writing anything. A protected row may only be saved unchanged.
func (r *Repository) planNode(ctx context.Context, tx *store.Tx, n node.Node, path string, taken map[string]struct{}, plan *savePlan) error {
	if n == nil {
		return fmt.Errorf("repository: %s: nil node", path)
	}
	switch v := n.(type) {
	case *node.Input:
		if err := r.assignName(v, path, taken); err != nil {
			return err
		}
	case *node.Condition:
		if err := r.nameBranches(v, path); err != nil {
			return err
		}
	}

	enc, err := r.encode(n)
	if err != nil {
		return fmt.Errorf("repository: %s: %w", path, err)
	}
	plan.encoded[n] = enc

	stored := n.Storage()
	if stored.ID != "" {
		if _, dup := plan.ids[stored.ID]; dup {
			return fmt.Errorf("%w: node %s appears twice in the tree", ErrCycle, stored.ID)
		}
		plan.ids[stored.ID] = struct{}{}
		row, err := loadRow(ctx, tx, stored.ID)
		switch {
		case err == nil:
			plan.rows[stored.ID] = row
			if row.Protected && stored.Protected {
				same, err := r.unchanged(ctx, tx, n, row, enc)
				if err != nil {
					return err
				}
				if !same {
					return &ProtectedError{ID: stored.ID, Op: "update"}
				}
				plan.frozen[stored.ID] = struct{}{}
			}
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}

	siblings := make(map[string]struct{})
	for idx, child := range node.Children(n) {
		if err := r.planNode(ctx, tx, child, fmt.Sprintf("%s.children[%d]", path, idx), siblings, plan); err != nil {
			return err
		}
	}
	return nil
}

// unchanged reports whether writing enc and n's options over row would leave
// the stored node as it is. Children are compared through their own rows.
func (r *Repository) unchanged(ctx context.Context, q store.Querier, n node.Node, row NodeRow, enc encoded) (bool, error) {
	if !row.Active || row.Variant != enc.variant || row.Label != enc.label || row.TextContent != enc.text.String {
		return false, nil
	}
	same, err := sameJSON(row.Payload, enc.payload, node.KeyChildren)
	if err != nil || !same {
		return false, err
	}
	if same, err = sameJSON(row.ExtraProps, enc.extra); err != nil || !same {
		return false, err
	}
	switch v := n.(type) {
	case *node.Input:
		return r.sameOptions(ctx, q, row.OptionGroupID, v.Options)
	case *node.Condition:
		return r.sameBranchOptions(ctx, q, row.ID, v)
	}
	return true, nil
}

// sameOptions reports whether opts matches what groupID stores. Unset
// options never change a group; an expression matches no group.
func (r *Repository) sameOptions(ctx context.Context, q store.Querier, groupID string, opts *node.Options) (bool, error) {
	switch {
	case opts == nil:
		return true, nil
	case !opts.Static():
		return groupID == "", nil
	}
	var stored []node.Option
	if groupID != "" {
		var err error
		if stored, err = r.loadOptions(ctx, q, groupID); err != nil {
			return false, err
		}
	}
	return slices.Equal(stored, opts.Items), nil
}

// sameJSON compares two stored JSON objects, ignoring the given keys. Empty
// input reads as an empty object.
func sameJSON(a, b []byte, ignore ...string) (bool, error) {
	left, err := decodeObject(a)
	if err != nil {
		return false, err
	}
	right, err := decodeObject(b)
	if err != nil {
		return false, err
	}
	for _, key := range ignore {
		delete(left, key)
		delete(right, key)
	}
	return reflect.DeepEqual(left, right), nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	out, err := decodeMap(raw)
	if err != nil {
		return nil, fmt.Errorf("repository: compare stored json: %w", err)
	}
	return out, nil
}

func (r *Repository) assignName(in *node.Input, path string, taken map[string]struct{}) error {
	candidate := in.Name
	if candidate == "" {
		candidate = "unnamed"
		if in.Label != "" {
			candidate = naming.Fold(plainText(in.Label))
		}
	}
	candidate = naming.Disambiguate(candidate, func(name string) bool {
		_, used := taken[name]
		return used
	})
	if err := naming.Validate(candidate, r.registry.Reserved); err != nil {
		return &IdentifierError{Path: path, Name: candidate, Label: in.Label, Err: err}
	}
	in.Name = candidate
	taken[candidate] = struct{}{}
	return nil
}

func (r *Repository) persist(ctx context.Context, tx *store.Tx, n node.Node, schemaID string, change int64, plan *savePlan) (string, error) {
	enc, ok := plan.encoded[n]
	if !ok {
		return "", fmt.Errorf("repository: node was not planned")
	}
	stored := n.Storage()
	existing, isUpdate := plan.rows[stored.ID]
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	_, frozen := plan.frozen[stored.ID]
	now := store.Now()
	var err error
	switch {
	case frozen:
	case isUpdate:
		_, err = tx.ExecContext(ctx, `UPDATE schema_nodes SET node_type = ?, payload = ?, extra_props = ?,
			text_content = ?, label = ?, is_active = ?, protected = ?, schema_id = COALESCE(?, schema_id),
			track_change = ?, updated_at = ? WHERE id = ?`,
			string(enc.variant), string(enc.payload), nullBytes(enc.extra), enc.text, enc.label, true,
			stored.Protected, nullString(schemaID), change, now, stored.ID)
	default:
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_nodes (id, node_type, payload, extra_props, text_content,
			label, is_active, protected, schema_id, track_change, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.ID, string(enc.variant), string(enc.payload), nullBytes(enc.extra), enc.text,
			enc.label, true, stored.Protected, nullString(schemaID), change, now, now)
	}
	if err != nil {
		return "", fmt.Errorf("repository: write node %s: %w", stored.ID, err)
	}

	if !frozen {
		switch v := n.(type) {
		case *node.Input:
			err = r.syncOptions(ctx, tx, v, existing.OptionGroupID)
		case *node.Condition:
			err = r.syncBranchOptions(ctx, tx, stored.ID, v)
		}
		if err != nil {
			return "", err
		}
	}

	common := node.CommonOf(n)
	if common == nil || common.Children == nil {
		return stored.ID, nil
	}
	childIDs := make([]string, 0, len(common.Children))
	for _, child := range common.Children {
		childID, err := r.persist(ctx, tx, child, schemaID, change, plan)
		if err != nil {
			return "", err
		}
		childIDs = append(childIDs, childID)
	}
	if err := r.syncChildren(ctx, tx, stored.ID, childIDs); err != nil {
		return "", err
	}
	return stored.ID, nil
}

// syncOptions moves static options into a fresh option group. Expression
// options drop any previous group; unset options leave it alone.
func (r *Repository) syncOptions(ctx context.Context, tx *store.Tx, in *node.Input, previous string) error {
	if in.Options == nil {
		return nil
	}
	if previous != "" {
		if err := r.dropOptionGroup(ctx, tx, in.Storage().ID, previous); err != nil {
			return err
		}
	}
	if !in.Options.Static() {
		return nil
	}

	groupID, err := r.createOptionGroup(ctx, tx, in.Name, in.Storage().ID, "", in.Options.Items)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schema_nodes SET option_group_id = ? WHERE id = ?`,
		groupID, in.Storage().ID); err != nil {
		return fmt.Errorf("repository: link option group: %w", err)
	}
	return nil
}

// createOptionGroup stores items as a new group owned by ownerID. branchPath
// is empty for the owner's own options.
func (r *Repository) createOptionGroup(ctx context.Context, tx *store.Tx, name, ownerID, branchPath string, items []node.Option) (string, error) {
	groupID := uuid.NewString()
	if name == "" {
		name = ownerID
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO option_groups (id, name, owner_id, branch_path, created_at)
		VALUES (?, ?, ?, ?, ?)`, groupID, name, ownerID, nullString(branchPath), store.Now()); err != nil {
		return "", fmt.Errorf("repository: create option group: %w", err)
	}
	for _, option := range items {
		optionID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `INSERT INTO options (id, group_id, value, label) VALUES (?, ?, ?, ?)`,
			optionID, groupID, option.Value, option.Label); err != nil {
			return "", fmt.Errorf("repository: create option %q: %w", option.Value, err)
		}
		if _, err := r.engine.Place(ctx, tx, optionScope(groupID), optionID, nil); err != nil {
			return "", err
		}
	}
	return groupID, nil
}

func (r *Repository) dropOptionGroup(ctx context.Context, tx *store.Tx, nodeID, groupID string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE schema_nodes SET option_group_id = NULL WHERE id = ?`, nodeID); err != nil {
		return fmt.Errorf("repository: drop option group %s: %w", groupID, err)
	}
	return deleteOptionGroup(ctx, tx, groupID)
}

func deleteOptionGroup(ctx context.Context, tx *store.Tx, groupID string) error {
	for _, query := range []string{
		`DELETE FROM options WHERE group_id = ?`,
		`DELETE FROM option_groups WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, groupID); err != nil {
			return fmt.Errorf("repository: drop option group %s: %w", groupID, err)
		}
	}
	return nil
}

// dropOwnedGroups deletes every option group owned by nodeID, branch groups
// included.
func dropOwnedGroups(ctx context.Context, tx *store.Tx, nodeID string) error {
	for _, query := range []string{
		`UPDATE schema_nodes SET option_group_id = NULL WHERE id = ?`,
		`DELETE FROM options WHERE group_id IN (SELECT id FROM option_groups WHERE owner_id = ?)`,
		`DELETE FROM option_groups WHERE owner_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, nodeID); err != nil {
			return fmt.Errorf("repository: drop option groups of %s: %w", nodeID, err)
		}
	}
	return nil
}

// syncChildren makes parentID's active edges match childIDs exactly, in
// order. Children no longer listed are detached but not deleted; inactive
// edges are left alone.
func (r *Repository) syncChildren(ctx context.Context, tx *store.Tx, parentID string, childIDs []string) error {
	rows, err := tx.QueryContext(ctx, `SELECT child_id FROM node_children WHERE parent_id = ? AND "order" IS NOT NULL`, parentID)
	if err != nil {
		return fmt.Errorf("repository: list children of %s: %w", parentID, err)
	}
	var current []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("repository: scan child: %w", err)
		}
		current = append(current, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: list children of %s: %w", parentID, err)
	}

	wanted := make(map[string]struct{}, len(childIDs))
	for _, id := range childIDs {
		wanted[id] = struct{}{}
	}
	for _, id := range current {
		if _, keep := wanted[id]; keep {
			continue
		}
		if err := r.detach(ctx, tx, id, placement{ParentID: parentID}); err != nil {
			return err
		}
	}
	for idx, id := range childIDs {
		pos := idx + 1
		if err := r.attach(ctx, tx, id, destination{ParentID: parentID}, &pos); err != nil {
			return err
		}
	}
	return nil
}

// attach places id in dest at order, moving it out of wherever it currently
// sits.
func (r *Repository) attach(ctx context.Context, tx *store.Tx, id string, dest destination, order *int) error {
	current, err := loadPlacement(ctx, tx, id)
	if err != nil {
		return err
	}

	if dest.ParentID != "" {
		to := childScope(dest.ParentID)
		switch {
		case current.ParentID == dest.ParentID:
			_, err = r.engine.Place(ctx, tx, to, id, order)
			return err
		case current.ParentID != "":
			_, err = r.engine.Rescope(ctx, tx, childScope(current.ParentID), to, id, order)
			return err
		}
		if err := r.detach(ctx, tx, id, current); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO node_children (id, parent_id, child_id) VALUES (?, ?, ?)`,
			uuid.NewString(), dest.ParentID, id); err != nil {
			return fmt.Errorf("repository: link %s under %s: %w", id, dest.ParentID, err)
		}
		_, err = r.engine.Place(ctx, tx, to, id, order)
		return err
	}

	to := schemaScope(dest.SchemaID)
	switch {
	case current.SchemaID == dest.SchemaID:
		_, err = r.engine.Place(ctx, tx, to, id, order)
		return err
	case current.SchemaID != "":
		_, err = r.engine.Rescope(ctx, tx, schemaScope(current.SchemaID), to, id, order)
		return err
	}
	if err := r.detach(ctx, tx, id, current); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO form_components (id, schema_id, node_id) VALUES (?, ?, ?)`,
		uuid.NewString(), dest.SchemaID, id); err != nil {
		return fmt.Errorf("repository: add %s to schema %s: %w", id, dest.SchemaID, err)
	}
	_, err = r.engine.Place(ctx, tx, to, id, order)
	return err
}

// detach compacts the node's current scope and removes the edge placing it
// there.
func (r *Repository) detach(ctx context.Context, tx *store.Tx, id string, current placement) error {
	switch {
	case current.ParentID != "":
		if err := r.engine.Remove(ctx, tx, childScope(current.ParentID), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM node_children WHERE parent_id = ? AND child_id = ?`,
			current.ParentID, id); err != nil {
			return fmt.Errorf("repository: unlink %s: %w", id, err)
		}
	case current.SchemaID != "":
		if err := r.engine.Remove(ctx, tx, schemaScope(current.SchemaID), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM form_components WHERE schema_id = ? AND node_id = ?`,
			current.SchemaID, id); err != nil {
			return fmt.Errorf("repository: remove %s from schema: %w", id, err)
		}
	}
	return nil
}

// siblingNames collects the input names already active in dest, except the
// node being saved.
func (r *Repository) siblingNames(ctx context.Context, q store.Querier, dest destination, exclude string) (map[string]struct{}, error) {
	taken := make(map[string]struct{})
	var query, scopeID string
	switch {
	case dest.ParentID != "":
		query = `SELECT n.id, n.payload FROM schema_nodes n JOIN node_children e ON e.child_id = n.id
			WHERE e.parent_id = ? AND e."order" IS NOT NULL AND n.node_type = ?`
		scopeID = dest.ParentID
	case dest.SchemaID != "":
		query = `SELECT n.id, n.payload FROM schema_nodes n JOIN form_components f ON f.node_id = n.id
			WHERE f.schema_id = ? AND f."order" IS NOT NULL AND n.node_type = ?`
		scopeID = dest.SchemaID
	default:
		return taken, nil
	}

	rows, err := q.QueryContext(ctx, query, scopeID, string(node.VariantInput))
	if err != nil {
		return nil, fmt.Errorf("repository: sibling names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("repository: scan sibling: %w", err)
		}
		if id == exclude {
			continue
		}
		fields, err := decodeMap([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("repository: sibling %s payload: %w", id, err)
		}
		if name, ok := fields["name"].(string); ok && name != "" {
			taken[name] = struct{}{}
		}
	}
	return taken, rows.Err()
}

// ancestorsOf walks parent edges upwards from id.
func ancestorsOf(ctx context.Context, q store.Querier, id string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{id: {}}
	current := id
	for {
		var parent string
		err := q.QueryRowContext(ctx, `SELECT parent_id FROM node_children WHERE child_id = ?`, current).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("repository: ancestors of %s: %w", id, err)
		}
		if _, loop := seen[parent]; loop {
			return nil, fmt.Errorf("%w: existing edges loop at %s", ErrCycle, parent)
		}
		seen[parent] = struct{}{}
		out = append(out, parent)
		current = parent
	}
}

func holdsChildren(v node.Variant) bool {
	switch v {
	case node.VariantElement, node.VariantComponent, node.VariantInput:
		return true
	}
	return false
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullBytes(value []byte) sql.NullString {
	return sql.NullString{String: string(value), Valid: len(value) > 0}
}
