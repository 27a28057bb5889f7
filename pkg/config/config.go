// Package config handles loading and saving av configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/av/config.yaml
//   - Data:    ~/.local/share/av/ (network exports, element cache)
//   - State:   ~/.local/state/av/ (snapshots, view state cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SyncConfig controls table refresh timing.
type SyncConfig struct {
	DebounceMS   int `yaml:"debounce_ms,omitempty"`   // Delay before a refresh after a graph change
	TransitionMS int `yaml:"transition_ms,omitempty"` // Settling time before rows swap in
}

// PredictionConfig controls the prediction request defaults.
type PredictionConfig struct {
	Threshold float64           `yaml:"threshold,omitempty"` // Minimum score to keep a prediction
	Models    map[string]string `yaml:"models,omitempty"`    // Model name -> MIE target label
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	LabelSize   int    `yaml:"label_size,omitempty"`   // Node label font size step
	DefaultView string `yaml:"default_view,omitempty"` // graph, split
}

// Config is the top-level configuration for av.
type Config struct {
	ServiceURL string           `yaml:"service_url,omitempty"` // Prediction service base URL
	DataDir    string           `yaml:"data_dir,omitempty"`    // Directory with network exports and cache
	Network    string           `yaml:"network,omitempty"`     // Explicit network JSON path, overrides discovery
	Sync       SyncConfig       `yaml:"sync,omitempty"`
	Prediction PredictionConfig `yaml:"prediction,omitempty"`
	UI         UIConfig         `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServiceURL: "http://localhost:5000",
		Sync: SyncConfig{
			DebounceMS:   500,
			TransitionMS: 100,
		},
		Prediction: PredictionConfig{
			Threshold: 6.5,
		},
		UI: UIConfig{
			LabelSize:   12,
			DefaultView: "split",
		},
	}
}

// Debounce returns the configured refresh debounce as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMS) * time.Millisecond
}

// Transition returns the configured row transition delay as a duration.
func (c Config) Transition() time.Duration {
	return time.Duration(c.Sync.TransitionMS) * time.Millisecond
}

// ConfigDir returns the XDG config directory for av.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "av")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "av")
}

// DataDir returns the XDG data directory for av.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "av")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "av")
}

// StateDir returns the XDG state directory for av.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "av")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "av")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist. AV_SERVICE_URL and
// AV_DATA_DIR override the file in either case.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Network = expandHome(cfg.Network)
	applyEnv(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if url := os.Getenv("AV_SERVICE_URL"); url != "" {
		cfg.ServiceURL = url
	}
	if dir := os.Getenv("AV_DATA_DIR"); dir != "" {
		cfg.DataDir = expandHome(dir)
	}
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ModelTarget returns the MIE target label configured for a model name,
// falling back to the model name itself.
func (c Config) ModelTarget(model string) string {
	if target, ok := c.Prediction.Models[model]; ok && target != "" {
		return target
	}
	return model
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
