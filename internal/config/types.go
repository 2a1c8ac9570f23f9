// Package config loads the aggregator's process configuration: the
// Postgres DSN backing the registry and tool store, the vector-index
// dimension, embedding and classifier provider settings, health-loop
// tuning, and the set of servers to auto-register at startup.
package config

import "time"

// AggregatorConfig is the top-level configuration structure.
type AggregatorConfig struct {
	Postgres  PostgresConfig   `yaml:"postgres"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	Classify  ClassifierConfig `yaml:"classifier"`
	Health    HealthConfig     `yaml:"health"`
	Retry     RetryConfig      `yaml:"retry"`
	Servers   []ServerConfig   `yaml:"servers"`
}

// PostgresConfig configures the relational + vector store. Leaving
// DSN empty selects the in-memory fallback implementations.
type PostgresConfig struct {
	DSN             string `yaml:"dsn"`
	DSNFile         string `yaml:"dsnFile"`
	VectorDimension int    `yaml:"vectorDimension"`
}

// EmbeddingConfig configures the optional OpenAI-compatible embedding
// client. An empty APIKey selects the zero-vector null implementation.
type EmbeddingConfig struct {
	APIKey     string `yaml:"apiKey"`
	APIKeyFile string `yaml:"apiKeyFile"`
	BaseURL    string `yaml:"baseUrl"`
	Model      string `yaml:"model"`
}

// ClassifierConfig configures the optional skill classifier. An empty
// APIKey selects the no-op classifier (tools stay unclassified).
type ClassifierConfig struct {
	APIKey     string `yaml:"apiKey"`
	APIKeyFile string `yaml:"apiKeyFile"`
	Model      string `yaml:"model"`
	BatchSize  int    `yaml:"batchSize"`
}

// HealthConfig tunes the facade's background health loop.
type HealthConfig struct {
	Interval          time.Duration `yaml:"interval"`
	FailureThreshold  int           `yaml:"failureThreshold"`
}

// RetryConfig tunes Session Manager connect retries.
type RetryConfig struct {
	MaxAttempts     int             `yaml:"maxAttempts"`
	BackoffSchedule []time.Duration `yaml:"backoffSchedule"`
	ConnectTimeout  time.Duration   `yaml:"connectTimeout"`
	CallTimeout     time.Duration   `yaml:"callTimeout"`
}

// ServerConfig describes one backend to auto-register at startup.
type ServerConfig struct {
	Name               string            `yaml:"name"`
	Description        string            `yaml:"description"`
	Transport          string            `yaml:"transport"`
	Command            string            `yaml:"command"`
	Args               []string          `yaml:"args"`
	Env                map[string]string `yaml:"env"`
	URL                string            `yaml:"url"`
	Headers            map[string]string `yaml:"headers"`
	HealthCheckAddress string            `yaml:"healthCheckAddress"`
	OrgID              string            `yaml:"orgId"`
	IsGlobal           bool              `yaml:"isGlobal"`
	AutoConnect        bool              `yaml:"autoConnect"`
}

// Default returns the built-in defaults, used as the base that a
// config file's fields are unmarshalled on top of.
func Default() AggregatorConfig {
	return AggregatorConfig{
		Postgres: PostgresConfig{VectorDimension: 1536},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Classify: ClassifierConfig{
			BatchSize: 10,
		},
		Health: HealthConfig{
			Interval:         30 * time.Second,
			FailureThreshold: 3,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			BackoffSchedule: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
			ConnectTimeout:  30 * time.Second,
			CallTimeout:     60 * time.Second,
		},
	}
}
