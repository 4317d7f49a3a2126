package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goliatone/go-formstore"
	"github.com/goliatone/go-formstore/pkg/loader"
	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/schema"
)

func main() {
	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [files or directories...]\n", filepath.Base(os.Args[0])); err != nil {
			panic(err)
		}
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "\nLint FormKit schema files before importing them.\n"); err != nil {
			panic(err)
		}
	}
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{"schemas"}
	}

	registry := node.NewRegistry()
	parser := formstore.NewParser(registry)

	var violations []violation
	for _, path := range paths {
		docs, err := load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lint %s: %v\n", path, err)
			os.Exit(1)
		}
		for _, doc := range docs {
			violations = append(violations, lintDocument(parser, registry, doc)...)
		}
	}

	if len(violations) > 0 {
		sort.Slice(violations, func(i, j int) bool {
			if violations[i].file == violations[j].file {
				if violations[i].location == violations[j].location {
					return violations[i].message < violations[j].message
				}
				return violations[i].location < violations[j].location
			}
			return violations[i].file < violations[j].file
		})
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "%s: %s -> %s\n", v.file, v.location, v.message)
		}
		os.Exit(1)
	}
}

func load(path string) ([]schema.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		doc, err := loader.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return []schema.Document{doc}, nil
	}
	docs, err := loader.LoadFS(os.DirFS(path))
	if err != nil {
		return nil, err
	}
	out := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		full := filepath.Join(path, filepath.FromSlash(doc.Location()))
		relocated, err := schema.NewDocument(schema.FileSource(full), doc.Raw(), schema.WithFormat(doc.Format()))
		if err != nil {
			return nil, err
		}
		out = append(out, relocated)
	}
	return out, nil
}
