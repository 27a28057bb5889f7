package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceURL != "http://localhost:5000" {
		t.Errorf("expected default service URL, got %q", cfg.ServiceURL)
	}
	if cfg.Sync.DebounceMS != 500 {
		t.Errorf("expected debounce 500ms, got %d", cfg.Sync.DebounceMS)
	}
	if cfg.Sync.TransitionMS != 100 {
		t.Errorf("expected transition 100ms, got %d", cfg.Sync.TransitionMS)
	}
	if cfg.Prediction.Threshold != 6.5 {
		t.Errorf("expected threshold 6.5, got %f", cfg.Prediction.Threshold)
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce() = %v, want 500ms", cfg.Debounce())
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.ServiceURL != "http://localhost:5000" {
		t.Errorf("expected default config, got service URL %q", cfg.ServiceURL)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
service_url: http://aop.example.org:8080
data_dir: ~/aop/data
network: /data/liver-network.json

sync:
  debounce_ms: 250
  transition_ms: 50

prediction:
  threshold: 7.0
  models:
    ahr_binding: "Activation, AhR"
    er_agonism: "Agonism, Estrogen receptor"

ui:
  label_size: 14
  default_view: graph
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServiceURL != "http://aop.example.org:8080" {
		t.Errorf("service URL = %q", cfg.ServiceURL)
	}
	// Data dir should have ~ expanded
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, "aop/data")
	if cfg.DataDir != expected {
		t.Errorf("expected expanded data dir %q, got %q", expected, cfg.DataDir)
	}
	if cfg.Network != "/data/liver-network.json" {
		t.Errorf("expected absolute network path preserved, got %q", cfg.Network)
	}
	if cfg.Debounce() != 250*time.Millisecond {
		t.Errorf("Debounce() = %v, want 250ms", cfg.Debounce())
	}
	if cfg.Transition() != 50*time.Millisecond {
		t.Errorf("Transition() = %v, want 50ms", cfg.Transition())
	}
	if cfg.Prediction.Threshold != 7.0 {
		t.Errorf("threshold = %f, want 7.0", cfg.Prediction.Threshold)
	}
	if got := cfg.ModelTarget("ahr_binding"); got != "Activation, AhR" {
		t.Errorf("ModelTarget(ahr_binding) = %q", got)
	}
	if cfg.UI.LabelSize != 14 {
		t.Errorf("label size = %d, want 14", cfg.UI.LabelSize)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("service_url: [not, a, string"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AV_SERVICE_URL", "http://override:9999")
	t.Setenv("AV_DATA_DIR", "/srv/aop")

	cfg, err := LoadFrom("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.ServiceURL != "http://override:9999" {
		t.Errorf("env service URL not applied, got %q", cfg.ServiceURL)
	}
	if cfg.DataDir != "/srv/aop" {
		t.Errorf("env data dir not applied, got %q", cfg.DataDir)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.ServiceURL = "http://saved:1234"
	cfg.Prediction.Models = map[string]string{"ahr_binding": "Activation, AhR"}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.ServiceURL != "http://saved:1234" {
		t.Errorf("round trip lost service URL: %q", got.ServiceURL)
	}
	if got.ModelTarget("ahr_binding") != "Activation, AhR" {
		t.Errorf("round trip lost models: %v", got.Prediction.Models)
	}
}

func TestModelTargetFallback(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ModelTarget("unknown_model"); got != "unknown_model" {
		t.Errorf("ModelTarget fallback = %q, want model name", got)
	}
}
