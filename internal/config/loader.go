package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// Load reads an AggregatorConfig from the YAML file at path, layered
// on top of Default(). A missing file is not an error: the defaults
// are returned as-is, matching the pack's layered-config idiom.
func Load(path string) (AggregatorConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "no config file at %s, using defaults", path)
			return cfg, nil
		}
		return AggregatorConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AggregatorConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	logging.Info("ConfigLoader", "loaded configuration from %s", path)

	if err := resolveSecretFiles(&cfg); err != nil {
		return AggregatorConfig{}, fmt.Errorf("resolve secret files: %w", err)
	}

	return cfg, nil
}

// resolveSecretFiles reads secrets from the *File-suffixed fields when
// the corresponding plain field is empty, keeping credentials out of
// the checked-in config file itself.
func resolveSecretFiles(cfg *AggregatorConfig) error {
	if cfg.Postgres.DSNFile != "" && cfg.Postgres.DSN == "" {
		secret, err := readSecretFile(cfg.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("read postgres dsn file %s: %w", cfg.Postgres.DSNFile, err)
		}
		cfg.Postgres.DSN = secret
	}

	if cfg.Embedding.APIKeyFile != "" && cfg.Embedding.APIKey == "" {
		secret, err := readSecretFile(cfg.Embedding.APIKeyFile)
		if err != nil {
			return fmt.Errorf("read embedding api key file %s: %w", cfg.Embedding.APIKeyFile, err)
		}
		cfg.Embedding.APIKey = secret
	}

	if cfg.Classify.APIKeyFile != "" && cfg.Classify.APIKey == "" {
		secret, err := readSecretFile(cfg.Classify.APIKeyFile)
		if err != nil {
			return fmt.Errorf("read classifier api key file %s: %w", cfg.Classify.APIKeyFile, err)
		}
		cfg.Classify.APIKey = secret
	}

	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
