// Package config defines the per-map configuration consumed when wiring a
// record store, loadable from YAML with environment-variable overrides in
// the demo binary.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/partmap/internal/cluster"
)

// Store modes accepted in configuration files.
const (
	StoreModeNone         = "none"
	StoreModeWriteThrough = "write-through"
	StoreModeWriteBehind  = "write-behind"
)

// StoreConfig selects and tunes the persistence strategy for a map.
type StoreConfig struct {
	// Mode is one of none, write-through, write-behind.
	Mode string `yaml:"mode"`

	// Path is the backing file for the file backend.
	Path string `yaml:"path"`

	// WriteDelay holds write-behind entries in the buffer before the
	// background flusher drains them.
	WriteDelay time.Duration `yaml:"writeDelay"`

	// WriteBatchSize caps the write-behind buffer before a synchronous
	// drain kicks in.
	WriteBatchSize int `yaml:"writeBatchSize"`
}

// MapConfig configures one distributed map.
type MapConfig struct {
	// Name identifies the map.
	Name string `yaml:"name"`

	// PartitionCount fixes the key-space sharding.
	PartitionCount int `yaml:"partitionCount"`

	// DefaultTTL applies to writes that pass no TTL. Zero = no expiry.
	DefaultTTL time.Duration `yaml:"defaultTTL"`

	// MaxIdle expires records unread for this long. Zero = no idle expiry.
	MaxIdle time.Duration `yaml:"maxIdle"`

	// MaxSizePerPartition arms the eviction pressure gate. Zero = never.
	MaxSizePerPartition int `yaml:"maxSizePerPartition"`

	// SchemaPath points at a JSON schema; when set, writes are validated
	// against it.
	SchemaPath string `yaml:"schemaPath"`

	Store StoreConfig `yaml:"store"`
}

// Default returns the configuration used when no file is given.
func Default(name string) MapConfig {
	return MapConfig{
		Name:           name,
		PartitionCount: cluster.DefaultPartitionCount,
		Store:          StoreConfig{Mode: StoreModeNone},
	}
}

// Load reads and validates a MapConfig from a YAML file.
func Load(path string) (MapConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return MapConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default("")
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return MapConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return MapConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c MapConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("map name is required")
	}
	if c.PartitionCount <= 0 {
		return fmt.Errorf("partitionCount must be positive, got %d", c.PartitionCount)
	}
	switch c.Store.Mode {
	case StoreModeNone:
	case StoreModeWriteThrough, StoreModeWriteBehind:
		if c.Store.Path == "" {
			return fmt.Errorf("store mode %q requires store.path", c.Store.Mode)
		}
	default:
		return fmt.Errorf("unknown store mode %q", c.Store.Mode)
	}
	if c.Store.WriteDelay < 0 {
		return fmt.Errorf("store.writeDelay must not be negative")
	}
	if c.DefaultTTL < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("defaultTTL and maxIdle must not be negative")
	}
	return nil
}
