package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/store"
)

// Schema is a named root container for top-level nodes.
type Schema struct {
	ID        string
	Label     string
	CreatedAt time.Time
}

// CreateSchema registers a schema under a unique label.
func (r *Repository) CreateSchema(ctx context.Context, label string) (created Schema, err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.create_schema"})
	defer func() { done(err) }()

	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		created, err = createSchema(ctx, tx, label)
		return err
	})
	if err != nil {
		return Schema{}, err
	}
	return created, nil
}

func createSchema(ctx context.Context, tx *store.Tx, label string) (Schema, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Schema{}, fmt.Errorf("repository: schema label is required")
	}
	now := store.Now()
	out := Schema{ID: uuid.NewString(), Label: label}
	out.CreatedAt, _ = store.ParseTime(now)
	_, err := tx.ExecContext(ctx, `INSERT INTO schemas (id, label, created_at) VALUES (?, ?, ?)`, out.ID, label, now)
	if errors.Is(err, store.ErrConstraint) {
		return Schema{}, fmt.Errorf("%w: %q", ErrSchemaExists, label)
	}
	if err != nil {
		return Schema{}, fmt.Errorf("repository: create schema %q: %w", label, err)
	}
	return out, nil
}

// ImportSchema creates a schema and saves nodes as its top-level nodes, in
// order, in a single transaction.
func (r *Repository) ImportSchema(ctx context.Context, label string, nodes []node.Node) (created Schema, err error) {
	done := logging.Timer(r.logger, logging.Event{Op: "repository.import_schema"})
	defer func() { done(err) }()

	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		if created, err = createSchema(ctx, tx, label); err != nil {
			return err
		}
		for _, n := range nodes {
			if _, err := r.saveTree(ctx, tx, n, SaveTarget{SchemaID: created.ID}, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Schema{}, err
	}
	return created, nil
}

// GetSchema loads a schema by id.
func (r *Repository) GetSchema(ctx context.Context, id string) (Schema, error) {
	return r.getSchema(ctx, r.store, id)
}

func (r *Repository) getSchema(ctx context.Context, q store.Querier, id string) (Schema, error) {
	return scanSchema(q.QueryRowContext(ctx, `SELECT id, label, created_at FROM schemas WHERE id = ?`, id), id)
}

// SchemaByLabel loads a schema by its label.
func (r *Repository) SchemaByLabel(ctx context.Context, label string) (Schema, error) {
	return scanSchema(r.store.QueryRowContext(ctx, `SELECT id, label, created_at FROM schemas WHERE label = ?`, label), label)
}

// ListSchemas returns every schema ordered by label.
func (r *Repository) ListSchemas(ctx context.Context) ([]Schema, error) {
	rows, err := r.store.QueryContext(ctx, `SELECT id, label, created_at FROM schemas ORDER BY label ASC`)
	if err != nil {
		return nil, fmt.Errorf("repository: list schemas: %w", err)
	}
	defer rows.Close()

	var out []Schema
	for rows.Next() {
		var (
			s       Schema
			created string
		)
		if err := rows.Scan(&s.ID, &s.Label, &created); err != nil {
			return nil, fmt.Errorf("repository: scan schema: %w", err)
		}
		s.CreatedAt, _ = store.ParseTime(created)
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSchema(row *sql.Row, key string) (Schema, error) {
	var (
		s       Schema
		created string
	)
	err := row.Scan(&s.ID, &s.Label, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Schema{}, notFound("schema", key)
	}
	if err != nil {
		return Schema{}, fmt.Errorf("repository: load schema %q: %w", key, err)
	}
	s.CreatedAt, _ = store.ParseTime(created)
	return s, nil
}
