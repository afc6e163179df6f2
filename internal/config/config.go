// Package config provides configuration loading and structs for the Ruiji engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Vault     VaultConfig     `yaml:"vault"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Query     QueryConfig     `yaml:"query"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Reindex   ReindexConfig   `yaml:"reindex"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// VaultConfig holds the watched document tree settings.
type VaultConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	Host       string `yaml:"host"`
	Collection string `yaml:"collection"`
}

// QueryConfig holds related-document query defaults.
type QueryConfig struct {
	Limit int `yaml:"limit"`
	// MinScore is the default similarity threshold. Set to a negative
	// value to disable thresholding.
	MinScore float64 `yaml:"min_score"`
}

// CatalogConfig holds the index-state database path.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ReindexConfig holds bulk reindex settings.
type ReindexConfig struct {
	Workers int `yaml:"workers"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	if cfg.Vault.Dir != "" {
		cfg.Vault.Dir = expandPath(cfg.Vault.Dir, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
