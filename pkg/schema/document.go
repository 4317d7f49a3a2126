package schema

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// SourceKind says what kind of location a document was read from.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceFS   SourceKind = "fs"
)

// Source records where a schema document came from.
type Source struct {
	Kind     SourceKind
	Location string
}

// FileSource points at a path on disk.
func FileSource(path string) Source {
	return Source{Kind: SourceFile, Location: filepath.Clean(path)}
}

// FSSource points at an entry inside an fs.FS.
func FSSource(name string) Source {
	return Source{Kind: SourceFS, Location: name}
}

// Stem is the base name of the location without its extension.
func (s Source) Stem() string {
	base := path.Base(filepath.ToSlash(s.Location))
	return strings.TrimSuffix(base, path.Ext(base))
}

func (s Source) String() string {
	return string(s.Kind) + ":" + s.Location
}

// Format is the file format a document was written in. Raw payloads are
// always JSON; YAML files are converted on load.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is a raw JSON schema payload plus where it came from and the label
// it imports under.
type Document struct {
	source Source
	format Format
	label  string
	raw    []byte
}

// DocumentOption configures NewDocument.
type DocumentOption func(*Document)

// WithFormat records the original file format.
func WithFormat(format Format) DocumentOption {
	return func(d *Document) { d.format = format }
}

// WithLabel overrides the label derived from the source stem.
func WithLabel(label string) DocumentOption {
	return func(d *Document) { d.label = strings.TrimSpace(label) }
}

// NewDocument copies raw into a Document.
func NewDocument(src Source, raw []byte, opts ...DocumentOption) (Document, error) {
	if src.Location == "" {
		return Document{}, errors.New("schema: source location is required")
	}
	if len(raw) == 0 {
		return Document{}, errors.New("schema: raw document is empty")
	}
	doc := Document{source: src, format: FormatJSON, raw: append([]byte(nil), raw...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&doc)
		}
	}
	return doc, nil
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte, opts ...DocumentOption) Document {
	doc, err := NewDocument(src, raw, opts...)
	if err != nil {
		panic(err)
	}
	return doc
}

func (d Document) Source() Source   { return d.source }
func (d Document) Location() string { return d.source.Location }
func (d Document) Format() Format   { return d.format }

// Raw returns a copy of the JSON payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// Label is the schema label the document imports under: the explicit label
// when set, otherwise the source stem.
func (d Document) Label() string {
	if d.label != "" {
		return d.label
	}
	return d.source.Stem()
}
