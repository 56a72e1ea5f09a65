package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment EnvironmentConfig `json:"environment"`
	Store       StoreConfig       `json:"store"`
	Vision      VisionConfig      `json:"vision"`
	Output      OutputConfig      `json:"output"`
	LogLevel    string            `json:"log_level"`
}

// EnvironmentConfig mirrors the host flags that decide whether a legacy
// ROI position is trusted when converting to the server model.
type EnvironmentConfig struct {
	MacroMode        bool `json:"macro_mode"`
	ShowAllSliceOnly bool `json:"show_all_slice_only"`
}

// StoreConfig holds configuration for the ROI database
type StoreConfig struct {
	DatabasePath string `json:"database_path"`
}

// VisionConfig holds configuration for ROI suggestions
type VisionConfig struct {
	Backend       string  `json:"backend"`
	BackendURL    string  `json:"backend_url"`
	Model         string  `json:"model"`
	MaxDim        int     `json:"max_dim"`
	JPEGQuality   int     `json:"jpeg_quality"`
	MinConfidence float64 `json:"min_confidence"`
	MaxRegions    int     `json:"max_regions"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Directory  string `json:"directory"`
	MaskFormat string `json:"mask_format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			DatabasePath: "./data/rois.db",
		},
		Vision: VisionConfig{
			Backend:       "ollama",
			BackendURL:    "http://localhost:11434",
			Model:         "openbmb/minicpm-v4.5",
			MaxDim:        1536,
			JPEGQuality:   85,
			MinConfidence: 0.2,
			MaxRegions:    10,
		},
		Output: OutputConfig{
			Directory:  "./out",
			MaskFormat: "png",
		},
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path cannot be empty")
	}

	switch c.Vision.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("vision.backend must be ollama or llamacpp, got %q", c.Vision.Backend)
	}

	if c.Vision.JPEGQuality < 1 || c.Vision.JPEGQuality > 100 {
		return fmt.Errorf("vision.jpeg_quality must be between 1 and 100")
	}

	if c.Vision.MaxDim < 0 {
		return fmt.Errorf("vision.max_dim must not be negative")
	}

	if c.Vision.MinConfidence < 0 || c.Vision.MinConfidence > 1 {
		return fmt.Errorf("vision.min_confidence must be between 0 and 1")
	}

	switch c.Output.MaskFormat {
	case "png", "webp":
	default:
		return fmt.Errorf("output.mask_format must be png or webp, got %q", c.Output.MaskFormat)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLevel maps a log_level value to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q is not one of debug, info, warn, error", s)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "roi-bridge", "config.json")
}
