package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default("sessions")

	assert.Equal(t, "sessions", cfg.Name)
	assert.Equal(t, 271, cfg.PartitionCount)
	assert.Equal(t, StoreModeNone, cfg.Store.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
name: sessions
partitionCount: 16
defaultTTL: 30m
maxIdle: 10m
maxSizePerPartition: 5000
store:
  mode: write-behind
  path: /tmp/sessions.json
  writeDelay: 2s
  writeBatchSize: 512
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "sessions", cfg.Name)
		assert.Equal(t, 16, cfg.PartitionCount)
		assert.Equal(t, 30*time.Minute, cfg.DefaultTTL)
		assert.Equal(t, 10*time.Minute, cfg.MaxIdle)
		assert.Equal(t, 5000, cfg.MaxSizePerPartition)
		assert.Equal(t, StoreModeWriteBehind, cfg.Store.Mode)
		assert.Equal(t, "/tmp/sessions.json", cfg.Store.Path)
		assert.Equal(t, 2*time.Second, cfg.Store.WriteDelay)
		assert.Equal(t, 512, cfg.Store.WriteBatchSize)
	})

	t.Run("sparse config falls back to defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "name: cache\n"))
		require.NoError(t, err)

		assert.Equal(t, 271, cfg.PartitionCount)
		assert.Equal(t, StoreModeNone, cfg.Store.Mode)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("broken yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "name: [unclosed"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MapConfig)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(c *MapConfig) { c.Name = "" },
			wantErr: "name",
		},
		{
			name:    "non-positive partition count",
			mutate:  func(c *MapConfig) { c.PartitionCount = 0 },
			wantErr: "partitionCount",
		},
		{
			name:    "unknown store mode",
			mutate:  func(c *MapConfig) { c.Store.Mode = "write-around" },
			wantErr: "store mode",
		},
		{
			name: "persistent mode without a path",
			mutate: func(c *MapConfig) {
				c.Store.Mode = StoreModeWriteThrough
				c.Store.Path = ""
			},
			wantErr: "store.path",
		},
		{
			name:    "negative write delay",
			mutate:  func(c *MapConfig) { c.Store.WriteDelay = -time.Second },
			wantErr: "writeDelay",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *MapConfig) { c.DefaultTTL = -time.Minute },
			wantErr: "defaultTTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("m")
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
