package main

import (
	"fmt"

	"github.com/goliatone/go-formstore/internal/naming"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/schema"
)

type violation struct {
	file     string
	location string
	message  string
}

func lintDocument(parser schema.Parser, registry *node.Registry, doc schema.Document) []violation {
	nodes, err := parser.ParseSchema(doc.Raw())
	if err != nil {
		return []violation{{file: doc.Location(), location: "$", message: err.Error()}}
	}
	var result []violation
	_ = node.Walk("$", nodes, func(path string, siblings []node.Node) error {
		seen := make(map[string]int)
		for idx, n := range siblings {
			if in, ok := n.(*node.Input); ok {
				location := fmt.Sprintf("%s[%d]", path, idx)
				result = append(result, lintName(doc.Location(), location, in, registry, seen)...)
			}
		}
		return nil
	})
	return result
}

// lintName reports an input name the repository would reject or rename.
func lintName(file, location string, in *node.Input, registry *node.Registry, seen map[string]int) []violation {
	name := in.Name
	if name == "" {
		if in.Label == "" {
			return []violation{{file: file, location: location, message: fmt.Sprintf("%s input has neither name nor label", in.Kind)}}
		}
		name = naming.Fold(in.Label)
	}
	if err := naming.Validate(name, registry.Reserved); err != nil {
		return []violation{{file: file, location: location, message: fmt.Sprintf("name %q: %v", name, err)}}
	}
	seen[name]++
	if seen[name] > 1 {
		return []violation{{file: file, location: location, message: fmt.Sprintf("name %q repeats a sibling and will be renamed", name)}}
	}
	return nil
}
