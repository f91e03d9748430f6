package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
storage:
  database_path: ./data/db.sqlite
embedding:
  model: nomic-embed-text
  dimensions: 768
autotag:
  threshold: 0.6
  skip_tags: [misc]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug not set")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.AutoTag.Threshold != 0.6 {
		t.Errorf("threshold = %v", cfg.AutoTag.Threshold)
	}
	want := filepath.Join(dir, "data/db.sqlite")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.AutoTag.Threshold != 0.45 {
		t.Errorf("threshold = %v", cfg.AutoTag.Threshold)
	}
	if cfg.AutoTag.MaxTags != 5 {
		t.Errorf("max_tags = %d", cfg.AutoTag.MaxTags)
	}
	set := cfg.AutoTag.SkipSet()
	if _, ok := set["conversation"]; !ok {
		t.Errorf("skip set missing default: %v", cfg.AutoTag.SkipTags)
	}
	if !cfg.Import.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Import.Directories = []string{"/tmp/inbox"}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Import.Directories) != 1 || loaded.Import.Directories[0] != "/tmp/inbox" {
		t.Errorf("directories = %v", loaded.Import.Directories)
	}
}
