package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "hierarchical", cfg.Topology.Type)
	assert.Equal(t, 15, cfg.MaxAgents)
	assert.Equal(t, int64(5000), cfg.HeartbeatIntervalMs)
	assert.Equal(t, int64(10000), cfg.HealthCheckIntervalMs)
	assert.Equal(t, 0.66, cfg.Consensus.Threshold)
	assert.Equal(t, 10000, cfg.MessageBus.MaxQueueSize)
	assert.Equal(t, 3, cfg.MessageBus.RetryAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Swarm)
		wantErr bool
	}{
		{"defaults are valid", func(*Swarm) {}, false},
		{"bad topology type", func(s *Swarm) { s.Topology.Type = "ring" }, true},
		{"bad partition strategy", func(s *Swarm) { s.Topology.PartitionStrategy = "random" }, true},
		{"bad consensus algorithm", func(s *Swarm) { s.Consensus.Algorithm = "pbft" }, true},
		{"threshold zero", func(s *Swarm) { s.Consensus.Threshold = 0 }, true},
		{"threshold above one", func(s *Swarm) { s.Consensus.Threshold = 1.5 }, true},
		{"zero queue size", func(s *Swarm) { s.MessageBus.MaxQueueSize = 0 }, true},
		{"zero max agents", func(s *Swarm) { s.MaxAgents = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")
	contents := []byte(`
name: research-swarm
topology:
  type: mesh
consensus:
  algorithm: byzantine
  threshold: 0.75
`)
	require.NoError(t, os.WriteFile(path, contents, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "research-swarm", cfg.Name)
	assert.Equal(t, "mesh", cfg.Topology.Type)
	assert.Equal(t, "byzantine", cfg.Consensus.Algorithm)
	assert.Equal(t, 0.75, cfg.Consensus.Threshold)
	// untouched fields still carry defaults
	assert.Equal(t, 15, cfg.MaxAgents)
	assert.Equal(t, 10000, cfg.MessageBus.MaxQueueSize)
}

func TestLoadRejectsInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("topology:\n  type: star\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
