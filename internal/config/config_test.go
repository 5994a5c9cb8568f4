package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "search_paths:\n  - lib\n  - /opt/luma\nlog_level: debug\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if len(cfg.SearchPaths) != 2 {
		t.Fatalf("search paths = %v", cfg.SearchPaths)
	}
	if want := filepath.Join(dir, "lib"); cfg.SearchPaths[0] != want {
		t.Fatalf("relative path not anchored: %q, want %q", cfg.SearchPaths[0], want)
	}
	if cfg.SearchPaths[1] != "/opt/luma" {
		t.Fatalf("absolute path rewritten: %q", cfg.SearchPaths[1])
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "search_paths:\n  - lib\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level should default to warn, got %q", cfg.LogLevel)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "search_paths: {not a list\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "log_level: error\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Discover(nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("discovery missed the root config: %q", cfg.LogLevel)
	}
}

func TestDiscoverPrefersNearest(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "log_level: error\n")
	nested := filepath.Join(root, "sub")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, nested, "log_level: info\n")

	cfg, err := Discover(nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("nearest config should win, got %q", cfg.LogLevel)
	}
}

func TestDiscoverDefault(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "warn" || len(cfg.SearchPaths) != 0 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := LoadExplicit(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
