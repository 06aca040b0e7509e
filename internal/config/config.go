// Package config provides configuration loading and structs for the Mihari server.
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
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Review    ReviewConfig    `yaml:"review"`
	Index     IndexConfig     `yaml:"index"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the whitelist store, reports database,
// catalog index, and batch report output.
type StorageConfig struct {
	StorePath        string `yaml:"store_path"`
	ReportsDBPath    string `yaml:"reports_db_path"`
	CatalogIndexPath string `yaml:"catalog_index_path"`
	ReportDir        string `yaml:"report_dir"`
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath      string `yaml:"model_path"`
	Dimensions     int    `yaml:"dimensions"`
	CacheSize      int    `yaml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ReviewConfig holds decision thresholds and search settings.
type ReviewConfig struct {
	AutoPassThreshold   float64 `yaml:"auto_pass_threshold"`
	AutoRejectThreshold float64 `yaml:"auto_reject_threshold"`
	TopK                int     `yaml:"top_k"`
	FormatCheck         *bool   `yaml:"format_check"`
}

// FormatCheckOrDefault returns whether format checking is enabled; defaults to true.
func (r *ReviewConfig) FormatCheckOrDefault() bool {
	if r.FormatCheck != nil {
		return *r.FormatCheck
	}
	return true
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Kind   string `yaml:"kind"`
	NList  int    `yaml:"nlist"`
	NProbe int    `yaml:"nprobe"`
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
	cfg.Storage.StorePath = expandPath(cfg.Storage.StorePath, configDir)
	cfg.Storage.ReportsDBPath = expandPath(cfg.Storage.ReportsDBPath, configDir)
	cfg.Storage.CatalogIndexPath = expandPath(cfg.Storage.CatalogIndexPath, configDir)
	cfg.Storage.ReportDir = expandPath(cfg.Storage.ReportDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if cfg.Review.AutoRejectThreshold >= cfg.Review.AutoPassThreshold {
		return nil, fmt.Errorf("invalid thresholds: auto_reject %.2f must be below auto_pass %.2f",
			cfg.Review.AutoRejectThreshold, cfg.Review.AutoPassThreshold)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
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
