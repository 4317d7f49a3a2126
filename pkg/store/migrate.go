package store

import (
	"context"
	"fmt"
)

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS schemas (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS option_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT,
		branch_path TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES option_groups(id) ON DELETE CASCADE,
		value TEXT NOT NULL,
		label TEXT NOT NULL,
		"order" INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS schema_nodes (
		id TEXT PRIMARY KEY,
		node_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		extra_props TEXT,
		text_content TEXT,
		label TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		protected BOOLEAN NOT NULL DEFAULT FALSE,
		schema_id TEXT REFERENCES schemas(id) ON DELETE SET NULL,
		option_group_id TEXT REFERENCES option_groups(id) ON DELETE SET NULL,
		track_change BIGINT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS node_children (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL REFERENCES schema_nodes(id) ON DELETE CASCADE,
		child_id TEXT NOT NULL REFERENCES schema_nodes(id) ON DELETE CASCADE,
		"order" INTEGER,
		UNIQUE (parent_id, child_id)
	)`,
	`CREATE TABLE IF NOT EXISTS form_components (
		id TEXT PRIMARY KEY,
		schema_id TEXT NOT NULL REFERENCES schemas(id) ON DELETE CASCADE,
		node_id TEXT NOT NULL REFERENCES schema_nodes(id) ON DELETE CASCADE,
		"order" INTEGER,
		UNIQUE (schema_id, node_id)
	)`,
	`CREATE TABLE IF NOT EXISTS published_forms (
		id TEXT PRIMARY KEY,
		schema_id TEXT NOT NULL REFERENCES schemas(id) ON DELETE CASCADE,
		version INTEGER NOT NULL,
		snapshot TEXT NOT NULL,
		status TEXT NOT NULL,
		published_at TEXT,
		replaced_at TEXT,
		UNIQUE (schema_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_node_children_child ON node_children(child_id)`,
	`CREATE INDEX IF NOT EXISTS idx_node_children_parent ON node_children(parent_id, "order")`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_form_components_node ON form_components(node_id)`,
	`CREATE INDEX IF NOT EXISTS idx_form_components_schema ON form_components(schema_id, "order")`,
	`CREATE INDEX IF NOT EXISTS idx_options_group ON options(group_id, "order")`,
	`CREATE INDEX IF NOT EXISTS idx_option_groups_owner ON option_groups(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schema_nodes_change ON schema_nodes(track_change)`,
	`CREATE INDEX IF NOT EXISTS idx_published_forms_status ON published_forms(schema_id, status)`,
}

// Migrate creates the tables when missing. Open runs it unless SkipMigrate is
// set.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaDDL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", classify(err))
		}
	}
	return nil
}
