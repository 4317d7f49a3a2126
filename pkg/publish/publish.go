// Package publish freezes a schema's live tree into immutable, versioned
// snapshots.
package publish

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formstore/internal/wire"
	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/ordering"
	"github.com/goliatone/go-formstore/pkg/repository"
	"github.com/goliatone/go-formstore/pkg/schema"
	"github.com/goliatone/go-formstore/pkg/store"
)

// Status is the lifecycle state of a snapshot.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusReplaced  Status = "replaced"
)

var (
	// ErrPublishConflict reports a concurrent publish of the same schema.
	// Retrying the call unmodified is safe.
	ErrPublishConflict = errors.New("publish: conflict")
	// ErrNotFound reports a missing schema or snapshot.
	ErrNotFound = store.ErrNotFound
)

// PublishedForm is one frozen version of a schema.
type PublishedForm struct {
	ID          string
	SchemaID    string
	Version     int
	Snapshot    []byte
	Status      Status
	PublishedAt *time.Time
	ReplacedAt  *time.Time
}

// Service publishes schemas stored by a repository.
type Service struct {
	store      *store.Store
	repo       *repository.Repository
	serializer *wire.Serializer
	logger     logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches an event logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service over repo's store.
func New(repo *repository.Repository, opts ...Option) *Service {
	s := &Service{
		store:      repo.Store(),
		repo:       repo,
		serializer: wire.NewSerializer(repo.Registry()),
		logger:     repo.Store().Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// Publish serializes the schema's active tree, options included, as the next
// version and makes it the only published snapshot of the schema.
func (s *Service) Publish(ctx context.Context, schemaID string) (PublishedForm, error) {
	return s.freeze(ctx, "publish.publish", schemaID, StatusPublished)
}

// Draft stores the next version without touching the published snapshot.
func (s *Service) Draft(ctx context.Context, schemaID string) (PublishedForm, error) {
	return s.freeze(ctx, "publish.draft", schemaID, StatusDraft)
}

func (s *Service) freeze(ctx context.Context, op, schemaID string, status Status) (form PublishedForm, err error) {
	start := time.Now()
	defer func() {
		s.logger.Log(logging.Event{Op: op, Schema: schemaID, Version: form.Version, Duration: time.Since(start), Err: err})
	}()

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.LockScope(ctx, "publish:"+schemaID); err != nil {
			return err
		}
		nodes, err := s.repo.SchemaNodes(ctx, tx, schemaID, repository.WithOptions(true))
		if err != nil {
			return err
		}
		snapshot, err := s.serializer.MarshalSchema(nodes, schema.WithOptions(true))
		if err != nil {
			return fmt.Errorf("publish: serialize schema %s: %w", schemaID, err)
		}

		var latest sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(version) FROM published_forms WHERE schema_id = ?`, schemaID).Scan(&latest); err != nil {
			return fmt.Errorf("publish: latest version of %s: %w", schemaID, err)
		}

		now := store.Now()
		stamp, _ := store.ParseTime(now)
		form = PublishedForm{
			ID:       uuid.NewString(),
			SchemaID: schemaID,
			Version:  int(latest.Int64) + 1,
			Snapshot: snapshot,
			Status:   status,
		}
		var publishedAt sql.NullString
		if status == StatusPublished {
			if _, err := tx.ExecContext(ctx,
				`UPDATE published_forms SET status = ?, replaced_at = ? WHERE schema_id = ? AND status = ?`,
				string(StatusReplaced), now, schemaID, string(StatusPublished)); err != nil {
				return fmt.Errorf("publish: replace previous version of %s: %w", schemaID, err)
			}
			publishedAt = sql.NullString{String: now, Valid: true}
			form.PublishedAt = &stamp
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO published_forms (id, schema_id, version, snapshot, status, published_at) VALUES (?, ?, ?, ?, ?, ?)`,
			form.ID, schemaID, form.Version, string(snapshot), string(status), publishedAt); err != nil {
			return fmt.Errorf("publish: store version %d of %s: %w", form.Version, schemaID, err)
		}
		return nil
	})
	if err != nil {
		return PublishedForm{}, conflict(err)
	}
	return form, nil
}

// GetActive returns the published snapshot of a schema.
func (s *Service) GetActive(ctx context.Context, schemaID string) (PublishedForm, error) {
	row := s.store.QueryRowContext(ctx, `SELECT `+formColumns+` FROM published_forms
		WHERE schema_id = ? AND status = ?`, schemaID, string(StatusPublished))
	return scanForm(row, fmt.Sprintf("published form of schema %q", schemaID))
}

// Get returns one version of a schema.
func (s *Service) Get(ctx context.Context, schemaID string, version int) (PublishedForm, error) {
	row := s.store.QueryRowContext(ctx, `SELECT `+formColumns+` FROM published_forms
		WHERE schema_id = ? AND version = ?`, schemaID, version)
	return scanForm(row, fmt.Sprintf("version %d of schema %q", version, schemaID))
}

// List returns every version of a schema, oldest first.
func (s *Service) List(ctx context.Context, schemaID string) ([]PublishedForm, error) {
	rows, err := s.store.QueryContext(ctx, `SELECT `+formColumns+` FROM published_forms
		WHERE schema_id = ? ORDER BY version ASC`, schemaID)
	if err != nil {
		return nil, fmt.Errorf("publish: list %s: %w", schemaID, err)
	}
	defer rows.Close()

	var out []PublishedForm
	for rows.Next() {
		form, err := scanFormRow(rows)
		if err != nil {
			return nil, fmt.Errorf("publish: scan version: %w", err)
		}
		out = append(out, form)
	}
	return out, rows.Err()
}

const formColumns = `id, schema_id, version, snapshot, status, published_at, replaced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row *sql.Row, what string) (PublishedForm, error) {
	form, err := scanFormRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PublishedForm{}, fmt.Errorf("publish: %s: %w", what, ErrNotFound)
	}
	if err != nil {
		return PublishedForm{}, fmt.Errorf("publish: load %s: %w", what, err)
	}
	return form, nil
}

func scanFormRow(scanner rowScanner) (PublishedForm, error) {
	var (
		form                  PublishedForm
		snapshot, status      string
		publishedAt, replaced sql.NullString
	)
	if err := scanner.Scan(&form.ID, &form.SchemaID, &form.Version, &snapshot, &status, &publishedAt, &replaced); err != nil {
		return PublishedForm{}, err
	}
	form.Snapshot = []byte(snapshot)
	form.Status = Status(status)
	form.PublishedAt = parseStamp(publishedAt)
	form.ReplacedAt = parseStamp(replaced)
	return form, nil
}

func parseStamp(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	stamp, err := store.ParseTime(value.String)
	if err != nil {
		return nil
	}
	return &stamp
}

// conflict folds contention errors into ErrPublishConflict, keeping the
// cause in the chain.
func conflict(err error) error {
	switch {
	case errors.Is(err, store.ErrBusy),
		errors.Is(err, store.ErrConstraint),
		errors.Is(err, ordering.ErrOrderingConflict):
		return fmt.Errorf("%w: %w", ErrPublishConflict, err)
	}
	return err
}
