package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstore/pkg/store"
)

// config is the YAML config file layout.
//
//	store:
//	  dialect: sqlite
//	  path: forms.db
//	  busy_timeout: 5s
//	import:
//	  dir: schemas
//	  publish: true
type config struct {
	Store  store.Options `yaml:"store"`
	Import importConfig  `yaml:"import"`
}

type importConfig struct {
	Dir      string `yaml:"dir"`
	Examples bool   `yaml:"examples"`
	Publish  bool   `yaml:"publish"`
}

func loadConfig(path string) (config, error) {
	cfg := config{Store: store.NewOptions()}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(raw, cfg)
}

func parseConfig(raw []byte, cfg config) (config, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Store = store.NewOptions(func(o *store.Options) { *o = cfg.Store })
	return cfg, nil
}
