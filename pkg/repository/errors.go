package repository

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formstore/pkg/store"
)

var (
	// ErrNotFound reports a missing node or schema.
	ErrNotFound = store.ErrNotFound
	// ErrInvalidIdentifier reports an explicit or derived input name that
	// cannot be used as an identifier.
	ErrInvalidIdentifier = errors.New("repository: invalid identifier")
	// ErrProtectedNode reports a forbidden change to a protected node.
	ErrProtectedNode = errors.New("repository: protected node")
	// ErrCycle reports a node that would contain itself.
	ErrCycle = errors.New("repository: cycle")
	// ErrSchemaExists reports a duplicate schema label.
	ErrSchemaExists = errors.New("repository: schema exists")
)

// IdentifierError names the offending node and candidate.
type IdentifierError struct {
	Path  string
	Name  string
	Label string
	Err   error
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("repository: %s: invalid identifier %q (label %q): %v", e.Path, e.Name, e.Label, e.Err)
}

func (e *IdentifierError) Unwrap() []error { return []error{ErrInvalidIdentifier, e.Err} }

// ProtectedError names the protected node and the refused operation.
type ProtectedError struct {
	ID string
	Op string
}

func (e *ProtectedError) Error() string {
	return fmt.Sprintf("repository: %s refused: node %s is protected", e.Op, e.ID)
}

func (e *ProtectedError) Unwrap() error { return ErrProtectedNode }

func notFound(kind, id string) error {
	return fmt.Errorf("repository: %s %q: %w", kind, id, ErrNotFound)
}
