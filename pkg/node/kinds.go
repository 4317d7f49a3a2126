package node

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// InputKind is the value of an input's $formkit marker.
type InputKind string

// Built-in input kinds.
const (
	KindForm         InputKind = "form"
	KindText         InputKind = "text"
	KindTextarea     InputKind = "textarea"
	KindNumber       InputKind = "number"
	KindCheckbox     InputKind = "checkbox"
	KindPassword     InputKind = "password"
	KindSelect       InputKind = "select"
	KindAutocomplete InputKind = "autocomplete"
	KindEmail        InputKind = "email"
	KindRadio        InputKind = "radio"
	KindGroup        InputKind = "group"
	KindDate         InputKind = "date"
	KindDatepicker   InputKind = "datepicker"
	KindDropdown     InputKind = "dropdown"
	KindRepeater     InputKind = "repeater"
	KindTel          InputKind = "tel"
	KindCurrency     InputKind = "currency"
	KindHidden       InputKind = "hidden"
	KindUUID         InputKind = "uuid"
)

// Wire keys with meaning on more than one variant.
const (
	KeyChildren        = "children"
	KeyAdditionalProps = "additional_props"
	KeyOptions         = "options"
)

// CommonKeys are handled by Element, Component and Input.
var CommonKeys = []string{
	KeyChildren, "key", "if", "for", "bind", "meta", "id", "name", "label", "help",
	"validation", "validation-label", "validation-visibility", "validation-messages",
	"placeholder", "value", "prefix-icon", "classes", KeyAdditionalProps,
}

// InputFieldKeys are the kind specific keys an InputKind may claim.
var InputFieldKeys = []string{
	"text", "min", "max", "step", KeyOptions,
	"empty-message", "selectIcon",
	"upControl", "downControl", "addLabel",
	"calendarIcon", "format", "nextIcon", "prevIcon",
}

// Discriminator keys. The marker keys are also accepted without the leading
// dollar sign.
const (
	MarkerElement   = "$el"
	MarkerInput     = "$formkit"
	MarkerComponent = "$cmp"
)

// Discriminate picks the variant for an object given a key lookup. It does not
// handle strings or empty objects; callers map those to Text first.
func Discriminate(keys []string) (Variant, error) {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	has := func(names ...string) bool {
		for _, name := range names {
			if _, ok := set[name]; ok {
				return true
			}
		}
		return false
	}
	switch {
	case has(MarkerElement, "el"):
		return VariantElement, nil
	case has(MarkerInput, "formkit"):
		return VariantInput, nil
	case has(MarkerComponent, "cmp"):
		return VariantComponent, nil
	case has("if", "then", "else"):
		return VariantCondition, nil
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return "", &UnresolvedError{Keys: sorted}
}

// KindSpec declares the kind specific keys an input kind handles.
type KindSpec struct {
	Kind   InputKind
	Fields []string
}

// Registry is the set of input kinds and reserved identifier words a parser,
// serializer or repository works against. The zero value is empty; use
// NewRegistry for the built-in kinds.
type Registry struct {
	mu       sync.RWMutex
	kinds    map[InputKind]KindSpec
	reserved map[string]struct{}
}

// NewRegistry constructs a registry with the built-in input kinds and reserved
// words registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// RegisterKind adds or replaces an input kind. Every field must be one of
// InputFieldKeys.
func (r *Registry) RegisterKind(spec KindSpec) error {
	if r == nil {
		return fmt.Errorf("node: nil registry")
	}
	kind := InputKind(strings.TrimSpace(string(spec.Kind)))
	if kind == "" {
		return fmt.Errorf("node: input kind is required")
	}
	fields := make([]string, 0, len(spec.Fields))
	for _, field := range spec.Fields {
		if !isInputFieldKey(field) {
			return fmt.Errorf("node: input kind %q: unknown field %q", kind, field)
		}
		fields = append(fields, field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kinds == nil {
		r.kinds = make(map[InputKind]KindSpec)
	}
	r.kinds[kind] = KindSpec{Kind: kind, Fields: fields}
	return nil
}

// Kind returns the registered spec for kind.
func (r *Registry) Kind(kind InputKind) (KindSpec, bool) {
	if r == nil {
		return KindSpec{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.kinds[kind]
	return spec, ok
}

// Kinds lists registered kinds in lexical order.
func (r *Registry) Kinds() []InputKind {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]InputKind, 0, len(r.kinds))
	for kind := range r.kinds {
		out = append(out, kind)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Handles reports whether the kind claims the given kind specific key.
func (s KindSpec) Handles(key string) bool {
	for _, field := range s.Fields {
		if field == key {
			return true
		}
	}
	return false
}

// Reserve marks words as unusable identifiers.
func (r *Registry) Reserve(words ...string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved == nil {
		r.reserved = make(map[string]struct{}, len(words))
	}
	for _, word := range words {
		if word = strings.TrimSpace(word); word != "" {
			r.reserved[word] = struct{}{}
		}
	}
}

// Reserved reports whether word may not be used as an identifier.
func (r *Registry) Reserved(word string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.reserved[word]
	return ok
}

func isInputFieldKey(key string) bool {
	for _, candidate := range InputFieldKeys {
		if candidate == key {
			return true
		}
	}
	return false
}

func (r *Registry) registerBuiltins() {
	builtins := []KindSpec{
		{Kind: KindForm},
		{Kind: KindText, Fields: []string{"text"}},
		{Kind: KindTextarea, Fields: []string{"text"}},
		{Kind: KindGroup, Fields: []string{"text"}},
		{Kind: KindNumber, Fields: []string{"text", "min", "max", "step"}},
		{Kind: KindCheckbox},
		{Kind: KindPassword},
		{Kind: KindEmail},
		{Kind: KindDate},
		{Kind: KindTel},
		{Kind: KindCurrency},
		{Kind: KindHidden},
		{Kind: KindUUID},
		{Kind: KindRadio, Fields: []string{KeyOptions}},
		{Kind: KindSelect, Fields: []string{KeyOptions}},
		{Kind: KindAutocomplete, Fields: []string{KeyOptions}},
		{Kind: KindDropdown, Fields: []string{KeyOptions, "empty-message", "selectIcon"}},
		{Kind: KindRepeater, Fields: []string{"upControl", "downControl", "addLabel", "min", "max"}},
		{Kind: KindDatepicker, Fields: []string{"calendarIcon", "format", "nextIcon", "prevIcon"}},
	}
	for _, spec := range builtins {
		_ = r.RegisterKind(spec)
	}
	r.Reserve(goKeywords...)
	r.Reserve(pythonKeywords...)
}

var goKeywords = []string{
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
	"map", "package", "range", "return", "select", "struct", "switch", "type", "var",
}

// Generated models are also emitted as Python, so its keywords are off limits.
var pythonKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await", "class",
	"def", "del", "elif", "except", "finally", "from", "global", "in", "is",
	"lambda", "nonlocal", "not", "or", "pass", "raise", "try", "while", "with", "yield",
}
