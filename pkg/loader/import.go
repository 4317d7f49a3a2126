package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/publish"
	"github.com/goliatone/go-formstore/pkg/repository"
	"github.com/goliatone/go-formstore/pkg/schema"
)

// SchemaStore is the part of the repository the importer writes through.
type SchemaStore interface {
	SchemaByLabel(ctx context.Context, label string) (repository.Schema, error)
	ImportSchema(ctx context.Context, label string, nodes []node.Node) (repository.Schema, error)
}

// Publisher freezes imported schemas.
type Publisher interface {
	Publish(ctx context.Context, schemaID string) (publish.PublishedForm, error)
}

// ImportOptions control Import.
type ImportOptions struct {
	// Publish publishes each newly imported schema.
	Publish bool
}

// Result reports what happened to one document.
type Result struct {
	Location string
	Label    string
	SchemaID string
	Skipped  bool
	Version  int
}

// Importer creates one schema per document, labelled with the file stem.
type Importer struct {
	parser    schema.Parser
	schemas   SchemaStore
	publisher Publisher
	logger    logging.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger attaches an event logger.
func WithLogger(logger logging.Logger) Option {
	return func(i *Importer) { i.logger = logger }
}

// WithPublisher enables ImportOptions.Publish.
func WithPublisher(publisher Publisher) Option {
	return func(i *Importer) { i.publisher = publisher }
}

// NewImporter constructs an Importer.
func NewImporter(parser schema.Parser, schemas SchemaStore, opts ...Option) *Importer {
	i := &Importer{parser: parser, schemas: schemas}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	i.logger = logging.OrNop(i.logger)
	return i
}

// Import parses every document up front, so one malformed file imports
// nothing, then creates a schema per document. Labels that already exist are
// skipped.
func (i *Importer) Import(ctx context.Context, docs []schema.Document, opts ImportOptions) ([]Result, error) {
	if i.parser == nil || i.schemas == nil {
		return nil, errors.New("loader: importer requires a parser and a schema store")
	}
	if opts.Publish && i.publisher == nil {
		return nil, errors.New("loader: publish requested without a publisher")
	}

	parsed := make([][]node.Node, len(docs))
	seen := make(map[string]string, len(docs))
	for idx, doc := range docs {
		label := doc.Label()
		if label == "" {
			return nil, fmt.Errorf("loader: %s has no usable label", doc.Location())
		}
		if other, dup := seen[label]; dup {
			return nil, fmt.Errorf("loader: %s and %s both import as %q", other, doc.Location(), label)
		}
		seen[label] = doc.Location()

		nodes, err := i.parser.ParseSchema(doc.Raw())
		if err != nil {
			return nil, fmt.Errorf("loader: %s: %w", doc.Location(), err)
		}
		parsed[idx] = nodes
	}

	results := make([]Result, 0, len(docs))
	for idx, doc := range docs {
		result, err := i.importOne(ctx, doc, parsed[idx], opts)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (i *Importer) importOne(ctx context.Context, doc schema.Document, nodes []node.Node, opts ImportOptions) (result Result, err error) {
	result = Result{Location: doc.Location(), Label: doc.Label()}
	done := logging.Timer(i.logger, logging.Event{Op: "loader.import", Scope: result.Label})
	defer func() { done(err) }()

	existing, err := i.schemas.SchemaByLabel(ctx, result.Label)
	switch {
	case err == nil:
		result.SchemaID = existing.ID
		result.Skipped = true
		return result, nil
	case !errors.Is(err, repository.ErrNotFound):
		return result, fmt.Errorf("loader: %s: %w", doc.Location(), err)
	}

	created, err := i.schemas.ImportSchema(ctx, result.Label, nodes)
	if err != nil {
		return result, fmt.Errorf("loader: import %s: %w", doc.Location(), err)
	}
	result.SchemaID = created.ID

	if opts.Publish {
		form, err := i.publisher.Publish(ctx, created.ID)
		if err != nil {
			return result, fmt.Errorf("loader: publish %s: %w", doc.Location(), err)
		}
		result.Version = form.Version
	}
	return result, nil
}
