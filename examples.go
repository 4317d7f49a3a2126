package formstore

import (
	"embed"
	"io/fs"
)

//go:embed schemas/*.json schemas/*.yaml
var embeddedSchemas embed.FS

// ExampleSchemasFS exposes the bundled starter schemas so callers can seed a
// fresh store:
//
//	docs, _ := loader.LoadFS(formstore.ExampleSchemasFS())
//	svc.Importer().Import(ctx, docs, loader.ImportOptions{Publish: true})
func ExampleSchemasFS() fs.FS {
	sub, err := fs.Sub(embeddedSchemas, "schemas")
	if err != nil {
		return embeddedSchemas
	}
	return sub
}
