package repository

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/store"
)

// Deactivate hides a node from tree loads and compacts the scope it sat in.
// The row and its edge are kept so Activate can bring it back.
func (r *Repository) Deactivate(ctx context.Context, id string) (err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.deactivate", Node: id})
	defer func() { done(err) }()

	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		row, err := loadRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.Protected {
			return &ProtectedError{ID: id, Op: "deactivate"}
		}
		if err := r.touch(ctx, tx, id, `is_active = ?`, false); err != nil {
			return err
		}
		current, err := loadPlacement(ctx, tx, id)
		if err != nil {
			return err
		}
		if scope, ok := current.scope(); ok {
			return r.engine.Remove(ctx, tx, scope, id)
		}
		return nil
	})
}

// Activate marks a node active again and appends it to the scope it was
// deactivated in. Protected nodes are refused.
func (r *Repository) Activate(ctx context.Context, id string) (err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.activate", Node: id})
	defer func() { done(err) }()

	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		row, err := loadRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.Protected {
			return &ProtectedError{ID: id, Op: "activate"}
		}
		if err := r.touch(ctx, tx, id, `is_active = ?`, true); err != nil {
			return err
		}
		current, err := loadPlacement(ctx, tx, id)
		if err != nil {
			return err
		}
		if scope, ok := current.scope(); ok && current.Order == 0 {
			_, err = r.engine.Place(ctx, tx, scope, id, nil)
			return err
		}
		return nil
	})
}

// Delete removes a node row. Its own edge is removed and its scope
// compacted; its children lose their parent edge but stay stored. Protected
// nodes cannot be deleted.
func (r *Repository) Delete(ctx context.Context, id string) (err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.delete", Node: id})
	defer func() { done(err) }()

	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		row, err := loadRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.Protected {
			return &ProtectedError{ID: id, Op: "delete"}
		}
		current, err := loadPlacement(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := r.detach(ctx, tx, id, current); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM node_children WHERE parent_id = ?`, id); err != nil {
			return fmt.Errorf("repository: unlink children of %s: %w", id, err)
		}
		if err := dropOwnedGroups(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_nodes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("repository: delete node %s: %w", id, err)
		}
		return nil
	})
}

// Protect marks a node protected.
func (r *Repository) Protect(ctx context.Context, id string) error {
	return r.setProtected(ctx, id, true)
}

// Unprotect clears the protected flag so the node can be changed or deleted.
func (r *Repository) Unprotect(ctx context.Context, id string) error {
	return r.setProtected(ctx, id, false)
}

func (r *Repository) setProtected(ctx context.Context, id string, protected bool) (err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.set_protected", Node: id})
	defer func() { done(err) }()

	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := loadRow(ctx, tx, id); err != nil {
			return err
		}
		return r.touch(ctx, tx, id, `protected = ?`, protected)
	})
}

// MoveTarget is the destination of Move. ParentID wins over SchemaID.
type MoveTarget struct {
	ParentID string
	SchemaID string
	Order    *int
}

// Move places an existing node under a new parent or schema, or at a new
// position in its current scope. Both the old and the new scope stay
// contiguous. Protected nodes are refused.
func (r *Repository) Move(ctx context.Context, id string, target MoveTarget) (err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.move", Node: id, Scope: target.ParentID, Schema: target.SchemaID})
	defer func() { done(err) }()

	if target.ParentID == "" && target.SchemaID == "" {
		return fmt.Errorf("repository: move target needs a parent or a schema")
	}
	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		row, err := loadRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.Protected {
			return &ProtectedError{ID: id, Op: "move"}
		}
		dest := destination{ParentID: target.ParentID}
		if target.ParentID != "" {
			parent, err := loadRow(ctx, tx, target.ParentID)
			if err != nil {
				return err
			}
			if !holdsChildren(parent.Variant) {
				return fmt.Errorf("repository: node %s (%s) cannot hold children", parent.ID, parent.Variant)
			}
			if target.ParentID == id {
				return fmt.Errorf("%w: node %s under itself", ErrCycle, id)
			}
			ancestors, err := ancestorsOf(ctx, tx, target.ParentID)
			if err != nil {
				return err
			}
			for _, ancestor := range ancestors {
				if ancestor == id {
					return fmt.Errorf("%w: node %s under its own descendant %s", ErrCycle, id, target.ParentID)
				}
			}
		} else {
			if _, err := r.getSchema(ctx, tx, target.SchemaID); err != nil {
				return err
			}
			dest.SchemaID = target.SchemaID
		}
		if err := r.attach(ctx, tx, id, dest, target.Order); err != nil {
			return err
		}
		return r.touch(ctx, tx, id, `is_active = ?`, true)
	})
}

// touch updates one column of a node and stamps the next change number.
func (r *Repository) touch(ctx context.Context, tx *store.Tx, id, assignment string, value any) error {
	change, err := tx.NextChange(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE schema_nodes SET `+assignment+`, track_change = ?, updated_at = ? WHERE id = ?`,
		value, change, store.Now(), id)
	if err != nil {
		return fmt.Errorf("repository: update node %s: %w", id, err)
	}
	return nil
}
