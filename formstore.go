// Package formstore stores FormKit form schemas as relational rows, keeps
// sibling order contiguous under concurrent edits, and publishes immutable
// versioned snapshots.
//
// The root package wires the store, repository and publisher together for
// callers that do not need to assemble them by hand.
package formstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstore/internal/wire"
	"github.com/goliatone/go-formstore/pkg/loader"
	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/ordering"
	"github.com/goliatone/go-formstore/pkg/publish"
	"github.com/goliatone/go-formstore/pkg/repository"
	"github.com/goliatone/go-formstore/pkg/schema"
	"github.com/goliatone/go-formstore/pkg/store"
)

// Aliases for the types callers handle most.
type (
	Node          = node.Node
	Schema        = repository.Schema
	PublishedForm = publish.PublishedForm
	StoreOptions  = store.Options
)

// Error taxonomy re-exported for errors.Is checks.
var (
	ErrNodeTypeUnresolved = node.ErrNodeTypeUnresolved
	ErrVariantValidation  = node.ErrVariantValidation
	ErrInvalidIdentifier  = repository.ErrInvalidIdentifier
	ErrOrderingConflict   = ordering.ErrOrderingConflict
	ErrProtectedNode      = repository.ErrProtectedNode
	ErrPublishConflict    = publish.ErrPublishConflict
	ErrCycle              = repository.ErrCycle
	ErrNotFound           = store.ErrNotFound
)

// NewParser constructs a parser backed by the internal wire codec. A nil
// registry uses the built-in input kinds.
func NewParser(registry *node.Registry) schema.Parser {
	return wire.NewParser(registry)
}

// NewSerializer constructs a serializer backed by the internal wire codec.
func NewSerializer(registry *node.Registry) schema.Serializer {
	return wire.NewSerializer(registry)
}

// Service bundles an open store with the repository and publisher built on
// it.
type Service struct {
	Store      *store.Store
	Repository *repository.Repository
	Publisher  *publish.Service
	Parser     schema.Parser
	Serializer schema.Serializer
}

// Config configures Open.
type Config struct {
	Store    store.Options
	Registry *node.Registry
	Logger   logging.Logger
}

// Open opens the store described by cfg and wires the services on top.
func Open(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.Logger != nil {
		cfg.Store.Logger = cfg.Logger
	}
	s, err := store.OpenWithOptions(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("formstore: %w", err)
	}
	return New(s, cfg.Registry), nil
}

// New wires the services over an already open store.
func New(s *store.Store, registry *node.Registry) *Service {
	repo := repository.New(s, repository.WithRegistry(registry))
	return &Service{
		Store:      s,
		Repository: repo,
		Publisher:  publish.New(repo),
		Parser:     wire.NewParser(repo.Registry()),
		Serializer: wire.NewSerializer(repo.Registry()),
	}
}

// Importer returns a schema file importer writing through the service.
func (s *Service) Importer() *loader.Importer {
	return loader.NewImporter(s.Parser, s.Repository,
		loader.WithPublisher(s.Publisher),
		loader.WithLogger(s.Store.Logger()))
}

// Close releases the store.
func (s *Service) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
