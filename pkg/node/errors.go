package node

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNodeTypeUnresolved reports an object that carries no discriminator key.
	ErrNodeTypeUnresolved = errors.New("node: type unresolved")
	// ErrVariantValidation reports a known field with an unusable value.
	ErrVariantValidation = errors.New("node: variant validation failed")
)

// UnresolvedError lists the keys found on an object that matched no variant.
type UnresolvedError struct {
	Keys []string
}

func (e *UnresolvedError) Error() string {
	if e == nil {
		return ErrNodeTypeUnresolved.Error()
	}
	if len(e.Keys) == 0 {
		return "node: type unresolved: no discriminator key"
	}
	return fmt.Sprintf("node: type unresolved: no discriminator among keys [%s]", strings.Join(e.Keys, ", "))
}

func (e *UnresolvedError) Unwrap() error { return ErrNodeTypeUnresolved }

// ValidationError names the variant and field whose value failed its shape
// check.
type ValidationError struct {
	Variant Variant
	Kind    InputKind
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrVariantValidation.Error()
	}
	subject := string(e.Variant)
	if e.Kind != "" {
		subject = fmt.Sprintf("%s:%s", e.Variant, e.Kind)
	}
	return fmt.Sprintf("node: %s field %q: %s", subject, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrVariantValidation }
