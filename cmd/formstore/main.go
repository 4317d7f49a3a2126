package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/goliatone/go-formstore"
	"github.com/goliatone/go-formstore/pkg/loader"
	"github.com/goliatone/go-formstore/pkg/logging"
	"github.com/goliatone/go-formstore/pkg/schema"
	"github.com/goliatone/go-formstore/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	dir := flag.String("dir", "", "directory of schema files to import")
	examples := flag.Bool("examples", false, "import the bundled example schemas")
	publishFlag := flag.Bool("publish", false, "publish every imported schema")
	export := flag.String("export", "", "print the published snapshot of the schema with this label")
	output := flag.String("output", "", "output file for -export (stdout if empty)")
	verbose := flag.Bool("v", false, "log storage events")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Store.Dialect = store.DialectSQLite
		cfg.Store.Path = *dbPath
	}
	if *dir != "" {
		cfg.Import.Dir = *dir
	}
	cfg.Import.Examples = cfg.Import.Examples || *examples
	cfg.Import.Publish = cfg.Import.Publish || *publishFlag

	var logger logging.Logger
	if *verbose {
		logger = logging.LoggerFunc(func(event logging.Event) {
			log.Printf("formstore: %s", event)
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, err := formstore.Open(ctx, formstore.Config{Store: cfg.Store, Logger: logger})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer svc.Close()

	var docs []schema.Document
	if cfg.Import.Examples {
		bundled, err := loader.LoadFS(formstore.ExampleSchemasFS())
		if err != nil {
			log.Fatalf("Failed to load example schemas: %v", err)
		}
		docs = append(docs, bundled...)
	}
	if cfg.Import.Dir != "" {
		loaded, err := loader.LoadFS(os.DirFS(cfg.Import.Dir))
		if err != nil {
			log.Fatalf("Failed to load schemas from %s: %v", cfg.Import.Dir, err)
		}
		docs = append(docs, loaded...)
	}
	if len(docs) > 0 {
		results, err := svc.Importer().Import(ctx, docs, loader.ImportOptions{Publish: cfg.Import.Publish})
		for _, result := range results {
			switch {
			case result.Skipped:
				fmt.Printf("skipped %s: schema %q exists\n", result.Location, result.Label)
			case result.Version > 0:
				fmt.Printf("imported %s as %q, published version %d\n", result.Location, result.Label, result.Version)
			default:
				fmt.Printf("imported %s as %q\n", result.Location, result.Label)
			}
		}
		if err != nil {
			log.Fatalf("Failed to import schemas: %v", err)
		}
	}

	if *export != "" {
		if err := exportSnapshot(ctx, svc, *export, *output); err != nil {
			log.Fatalf("Failed to export %q: %v", *export, err)
		}
	}
}

func exportSnapshot(ctx context.Context, svc *formstore.Service, label, output string) error {
	target, err := svc.Repository.SchemaByLabel(ctx, label)
	if err != nil {
		return err
	}
	active, err := svc.Publisher.GetActive(ctx, target.ID)
	if err != nil {
		return err
	}
	if output == "" {
		fmt.Println(string(active.Snapshot))
		return nil
	}
	if err := os.WriteFile(output, active.Snapshot, 0o644); err != nil {
		return err
	}
	fmt.Printf("Version %d of %q written to %s\n", active.Version, label, output)
	return nil
}
