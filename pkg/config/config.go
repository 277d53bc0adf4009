// Package config loads and validates the swarm's runtime configuration from
// YAML, applying the defaults documented for each subsystem.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Topology configures the Topology Manager.
type Topology struct {
	Type              string `yaml:"type"`
	MaxAgents         int    `yaml:"maxAgents"`
	ReplicationFactor int    `yaml:"replicationFactor"`
	PartitionStrategy string `yaml:"partitionStrategy"`
	FailoverEnabled   bool   `yaml:"failoverEnabled"`
	AutoRebalance     bool   `yaml:"autoRebalance"`
}

// Consensus configures the Consensus Engine.
type Consensus struct {
	Algorithm     string  `yaml:"algorithm"`
	Threshold     float64 `yaml:"threshold"`
	TimeoutMs     int64   `yaml:"timeoutMs"`
	MaxRounds     int     `yaml:"maxRounds"`
	RequireQuorum bool    `yaml:"requireQuorum"`
}

// MessageBus configures queueing, acking and retry behavior of the bus.
// PersistencePath names the file queued messages are flushed to when
// EnablePersistence is set; empty keeps persistence in memory only.
type MessageBus struct {
	MaxQueueSize         int    `yaml:"maxQueueSize"`
	ProcessingIntervalMs int64  `yaml:"processingIntervalMs"`
	AckTimeoutMs         int64  `yaml:"ackTimeoutMs"`
	RetryAttempts        int    `yaml:"retryAttempts"`
	EnablePersistence    bool   `yaml:"enablePersistence"`
	PersistencePath      string `yaml:"persistencePath"`
	CompressionEnabled   bool   `yaml:"compressionEnabled"`
}

// Federation configures the Federation Hub.
type Federation struct {
	MaxEphemeralAgents     int     `yaml:"maxEphemeralAgents"`
	DefaultTTLMs           int64   `yaml:"defaultTTLMs"`
	SyncIntervalMs         int64   `yaml:"syncIntervalMs"`
	AutoCleanup            bool    `yaml:"autoCleanup"`
	CleanupIntervalMs      int64   `yaml:"cleanupIntervalMs"`
	CommunicationTimeoutMs int64   `yaml:"communicationTimeoutMs"`
	EnableConsensus        bool    `yaml:"enableConsensus"`
	ConsensusQuorum        float64 `yaml:"consensusQuorum"`
}

// Pool configures an Agent Pool's sizing and health-replacement behavior.
type Pool struct {
	MinSize               int     `yaml:"minSize"`
	MaxSize               int     `yaml:"maxSize"`
	ScaleUpThreshold      float64 `yaml:"scaleUpThreshold"`
	ScaleDownThreshold    float64 `yaml:"scaleDownThreshold"`
	CooldownMs            int64   `yaml:"cooldownMs"`
	HealthCheckIntervalMs int64   `yaml:"healthCheckIntervalMs"`
}

// Swarm is the coordinator's top-level configuration, loaded from a YAML
// manifest and passed to coordinator.Initialize.
type Swarm struct {
	Name        string `yaml:"name"`
	Namespace   string `yaml:"namespace"`
	LogLevel    string `yaml:"logLevel"`
	MetricsAddr string `yaml:"metricsAddr"`

	MaxAgents             int   `yaml:"maxAgents"`
	MaxTasks              int   `yaml:"maxTasks"`
	HeartbeatIntervalMs   int64 `yaml:"heartbeatIntervalMs"`
	HealthCheckIntervalMs int64 `yaml:"healthCheckIntervalMs"`
	TaskTimeoutMs         int64 `yaml:"taskTimeoutMs"`
	AutoScaling           bool  `yaml:"autoScaling"`
	AutoRecovery          bool  `yaml:"autoRecovery"`

	Topology   Topology   `yaml:"topology"`
	Consensus  Consensus  `yaml:"consensus"`
	MessageBus MessageBus `yaml:"messageBus"`
	Federation Federation `yaml:"federation"`
	Pool       Pool       `yaml:"pool"`
}

// Default returns the configuration with every documented default applied.
func Default() *Swarm {
	return &Swarm{
		Name:                  "swarm",
		Namespace:             "default",
		LogLevel:              "info",
		MaxAgents:             15,
		MaxTasks:              1000,
		HeartbeatIntervalMs:   5000,
		HealthCheckIntervalMs: 10000,
		TaskTimeoutMs:         int64(5 * time.Minute / time.Millisecond),
		AutoScaling:           true,
		AutoRecovery:          true,
		Topology: Topology{
			Type:              "hierarchical",
			MaxAgents:         15,
			ReplicationFactor: 1,
			PartitionStrategy: "hash",
			FailoverEnabled:   true,
			AutoRebalance:     true,
		},
		Consensus: Consensus{
			Algorithm:     "raft",
			Threshold:     0.66,
			TimeoutMs:     int64(30 * time.Second / time.Millisecond),
			MaxRounds:     10,
			RequireQuorum: true,
		},
		MessageBus: MessageBus{
			MaxQueueSize:         10000,
			ProcessingIntervalMs: 50,
			AckTimeoutMs:         int64(60 * time.Second / time.Millisecond),
			RetryAttempts:        3,
			EnablePersistence:    false,
			CompressionEnabled:   false,
		},
		Federation: Federation{
			MaxEphemeralAgents:     50,
			DefaultTTLMs:           int64(5 * time.Minute / time.Millisecond),
			SyncIntervalMs:         10000,
			AutoCleanup:            true,
			CleanupIntervalMs:      30000,
			CommunicationTimeoutMs: 5000,
			EnableConsensus:        false,
			ConsensusQuorum:        0.66,
		},
		Pool: Pool{
			MinSize:               1,
			MaxSize:               10,
			ScaleUpThreshold:      0.8,
			ScaleDownThreshold:    0.2,
			CooldownMs:            30000,
			HealthCheckIntervalMs: 10000,
		},
	}
}

// Load reads a YAML manifest from path, applying defaults for any field the
// file omits; a field set explicitly in the file, even to zero, is kept.
func Load(path string) (*Swarm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and numeric bounds documented for each
// subsystem.
func (s *Swarm) Validate() error {
	switch s.Topology.Type {
	case "mesh", "hierarchical", "centralized", "hybrid":
	default:
		return fmt.Errorf("config: invalid topology.type %q", s.Topology.Type)
	}
	switch s.Topology.PartitionStrategy {
	case "hash", "range", "round-robin":
	default:
		return fmt.Errorf("config: invalid topology.partitionStrategy %q", s.Topology.PartitionStrategy)
	}
	switch s.Consensus.Algorithm {
	case "raft", "byzantine", "gossip", "paxos":
	default:
		return fmt.Errorf("config: invalid consensus.algorithm %q", s.Consensus.Algorithm)
	}
	if s.Consensus.Threshold <= 0 || s.Consensus.Threshold > 1 {
		return fmt.Errorf("config: consensus.threshold must be in (0,1], got %f", s.Consensus.Threshold)
	}
	if s.MessageBus.MaxQueueSize <= 0 {
		return fmt.Errorf("config: messageBus.maxQueueSize must be positive")
	}
	if s.MaxAgents <= 0 {
		return fmt.Errorf("config: maxAgents must be positive")
	}
	if s.Pool.MinSize < 0 || s.Pool.MaxSize < s.Pool.MinSize {
		return fmt.Errorf("config: pool.minSize/maxSize out of range (min=%d, max=%d)", s.Pool.MinSize, s.Pool.MaxSize)
	}
	if s.Pool.ScaleUpThreshold <= s.Pool.ScaleDownThreshold {
		return fmt.Errorf("config: pool.scaleUpThreshold must exceed pool.scaleDownThreshold")
	}
	return nil
}
