// Package loader reads schema documents from JSON and YAML files and imports
// them into a repository.
package loader

import (
	"bytes"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstore/pkg/schema"
)

// LoadFS walks fsys and returns one document per *.json, *.yaml or *.yml
// file, in lexical path order. YAML files are converted to JSON with mapping
// order preserved. A nil fsys yields no documents.
func LoadFS(fsys fs.FS) ([]schema.Document, error) {
	if fsys == nil {
		return nil, nil
	}

	var docs []schema.Document
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isSchemaFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("loader: read %s: %w", path, err)
		}
		doc, err := newDocument(schema.FSSource(path), data)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// LoadFile reads a single schema file from disk.
func LoadFile(path string) (schema.Document, error) {
	if !isSchemaFile(path) {
		return schema.Document{}, fmt.Errorf("loader: %s is not a .json, .yaml or .yml file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Document{}, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return newDocument(schema.FileSource(path), data)
}

func newDocument(src schema.Source, data []byte) (schema.Document, error) {
	location := src.Location
	if len(bytes.TrimSpace(data)) == 0 {
		return schema.Document{}, fmt.Errorf("loader: file %s is empty", location)
	}

	if ext := strings.ToLower(filepath.Ext(location)); ext == ".yaml" || ext == ".yml" {
		converted, err := yamlToJSON(data)
		if err != nil {
			return schema.Document{}, fmt.Errorf("loader: parse %s: %w", location, err)
		}
		return schema.NewDocument(src, converted, schema.WithFormat(schema.FormatYAML))
	}
	if !json.Valid(data) {
		return schema.Document{}, fmt.Errorf("loader: parse %s: invalid JSON", location)
	}
	return schema.NewDocument(src, data)
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// yamlToJSON re-encodes a YAML document as JSON. It walks the node tree
// rather than decoding into maps so mapping keys keep their file order.
func yamlToJSON(data []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeYAMLNode(&buf, &root, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const maxYAMLDepth = 256

func writeYAMLNode(buf *bytes.Buffer, n *yaml.Node, depth int) error {
	if depth > maxYAMLDepth {
		return fmt.Errorf("document nested deeper than %d levels", maxYAMLDepth)
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeYAMLNode(buf, n.Content[0], depth+1)
	case yaml.AliasNode:
		return writeYAMLNode(buf, n.Alias, depth+1)
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for idx, item := range n.Content {
			if idx > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLNode(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.MappingNode:
		buf.WriteByte('{')
		for idx := 0; idx+1 < len(n.Content); idx += 2 {
			key, value := n.Content[idx], n.Content[idx+1]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if idx > 0 {
				buf.WriteByte(',')
			}
			encoded, err := json.Marshal(key.Value)
			if err != nil {
				return err
			}
			buf.Write(encoded)
			buf.WriteByte(':')
			if err := writeYAMLNode(buf, value, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.ScalarNode:
		return writeYAMLScalar(buf, n)
	}
	return fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func writeYAMLScalar(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool":
		var value bool
		if err := n.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.WriteString(strconv.FormatBool(value))
		return nil
	case "!!int":
		var value int64
		if err := n.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.WriteString(strconv.FormatInt(value, 10))
		return nil
	case "!!float":
		var value float64
		if err := n.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		if math.IsInf(value, 0) || math.IsNaN(value) {
			return fmt.Errorf("line %d: %s has no JSON form", n.Line, n.Value)
		}
		buf.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
		return nil
	}
	encoded, err := json.Marshal(n.Value)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}
