package repository

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstore/pkg/node"
)

// Change is a node written after a given change number. Node is nil for
// inactive rows and never carries children.
type Change struct {
	ID          string
	TrackChange int64
	Active      bool
	Protected   bool
	SchemaID    string
	Node        node.Node
}

// ChangesSince lists nodes whose change number is greater than since, oldest
// first. Clients keep the highest TrackChange they saw and pass it back.
func (r *Repository) ChangesSince(ctx context.Context, since int64) ([]Change, error) {
	rows, err := r.store.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM schema_nodes WHERE track_change > ? ORDER BY track_change ASC, id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("repository: changes since %d: %w", since, err)
	}
	defer rows.Close()

	var loaded []NodeRow
	for rows.Next() {
		row, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: scan change: %w", err)
		}
		loaded = append(loaded, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: changes since %d: %w", since, err)
	}

	out := make([]Change, 0, len(loaded))
	for _, row := range loaded {
		change := Change{
			ID:          row.ID,
			TrackChange: row.TrackChange,
			Active:      row.Active,
			Protected:   row.Protected,
			SchemaID:    row.SchemaID,
		}
		if row.Active {
			if change.Node, _, err = r.decode(row); err != nil {
				return nil, err
			}
		}
		out = append(out, change)
	}
	return out, nil
}
