package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DataDir == "" {
		t.Error("expected default data_directory")
	}

	if !cfg.EnableCompression {
		t.Error("expected compression enabled by default")
	}

	if cfg.MaxMemoryPoints <= 0 {
		t.Error("expected positive max_memory_points")
	}

	if cfg.Query.Timeout != 30*time.Second {
		t.Errorf("expected 30s query timeout, got %v", cfg.Query.Timeout)
	}
}

func TestValidate(t *testing.T) {
	// Valid config
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	// Invalid: empty data_directory
	cfg = Default()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty data_directory")
	}

	// Invalid: non-positive max_memory_points
	cfg = Default()
	cfg.MaxMemoryPoints = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_memory_points")
	}

	// Invalid: bad export compression algorithm
	cfg = Default()
	cfg.Export.Compression = "invalid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid export compression")
	}

	// Invalid: zero query timeout
	cfg = Default()
	cfg.Query.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero query timeout")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
data_directory: /tmp/findata
memory_cache_size_mb: 128
enable_compression: false
max_memory_points: 5000
disk:
  enable_compression: false
query:
  memory_limit: 1GB
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/tmp/findata" {
		t.Errorf("expected /tmp/findata, got %s", cfg.DataDir)
	}
	if cfg.MemoryCacheSizeMB != 128 {
		t.Errorf("expected 128, got %d", cfg.MemoryCacheSizeMB)
	}
	if cfg.EnableCompression {
		t.Error("expected compression disabled")
	}
	if cfg.MaxMemoryPoints != 5000 {
		t.Errorf("expected 5000, got %d", cfg.MaxMemoryPoints)
	}
	if cfg.Disk.EnableCompression {
		t.Error("expected disk compression disabled")
	}
	if cfg.Query.MemoryLimit != "1GB" {
		t.Errorf("expected 1GB, got %s", cfg.Query.MemoryLimit)
	}

	// Unset fields keep their defaults.
	if cfg.BatchSize != 1000 {
		t.Errorf("expected default batch_size 1000, got %d", cfg.BatchSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExportDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	if got := cfg.ExportDir(); got != "/data/exports" {
		t.Errorf("expected /data/exports, got %s", got)
	}

	cfg.Export.Dir = "/elsewhere"
	if got := cfg.ExportDir(); got != "/elsewhere" {
		t.Errorf("expected /elsewhere, got %s", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.ExportDir()} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}
}
