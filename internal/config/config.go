// Package config defines the storage engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	// DataDir is the directory holding the segment files. One engine
	// instance exclusively owns its data directory.
	DataDir string `yaml:"data_directory"`

	// MemoryCacheSizeMB is the advisory size of the in-memory tier.
	// The hard flush threshold is MaxMemoryPoints.
	MemoryCacheSizeMB int `yaml:"memory_cache_size_mb"`

	// EnableCompression is loaded and defaulted but not read by the
	// engine; the segment payload format follows Disk.EnableCompression.
	EnableCompression bool `yaml:"enable_compression"`

	// BatchSize is the advisory write batch size.
	BatchSize int `yaml:"batch_size"`

	// MaxSegmentSizeMB is the advisory maximum segment file size.
	MaxSegmentSizeMB int `yaml:"max_segment_size_mb"`

	// MaxMemoryPoints is the hard threshold: when the in-memory tier
	// exceeds this many points, a flush is triggered on the writer's
	// thread.
	MaxMemoryPoints int `yaml:"max_memory_points"`

	// Disk configures the on-disk segment store.
	Disk DiskConfig `yaml:"disk"`

	// Export configures Parquet snapshot export.
	Export ExportConfig `yaml:"export"`

	// Query configures the SQL analytics service.
	Query QueryConfig `yaml:"query"`
}

// DiskConfig configures the on-disk segment store.
type DiskConfig struct {
	// EnableCompression selects the segment payload format.
	EnableCompression bool `yaml:"enable_compression"`

	// BatchSize is the advisory write batch size.
	BatchSize int `yaml:"batch_size"`

	// MaxSegmentSizeMB is the advisory maximum segment file size.
	MaxSegmentSizeMB int `yaml:"max_segment_size_mb"`
}

// ExportConfig configures Parquet snapshot export.
type ExportConfig struct {
	// Dir is the snapshot directory. Defaults to {DataDir}/exports.
	Dir string `yaml:"dir"`

	// Compression is the Parquet compression algorithm:
	// snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`
}

// QueryConfig configures the SQL analytics service.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit (e.g., "2GB").
	MemoryLimit string `yaml:"memory_limit"`

	// Timeout is the query timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows is the maximum number of rows returned.
	MaxRows int `yaml:"max_rows"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir:           "data",
		MemoryCacheSizeMB: 256,
		EnableCompression: true,
		BatchSize:         1000,
		MaxSegmentSizeMB:  64,
		MaxMemoryPoints:   1_000_000,
		Disk: DiskConfig{
			EnableCompression: true,
			BatchSize:         1000,
			MaxSegmentSizeMB:  64,
		},
		Export: ExportConfig{
			Compression: "zstd",
		},
		Query: QueryConfig{
			MemoryLimit: "2GB",
			Timeout:     30 * time.Second,
			MaxRows:     1_000_000,
		},
	}
}

// ExportDir returns the snapshot directory, defaulting to a subdirectory
// of the data directory.
func (c *Config) ExportDir() string {
	if c.Export.Dir != "" {
		return c.Export.Dir
	}
	return c.DataDir + "/exports"
}
