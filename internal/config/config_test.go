package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Pipeline.TargetTriangles != 500 {
		t.Errorf("expected target 500, got %d", cfg.Pipeline.TargetTriangles)
	}
	if !cfg.Pipeline.ExtractGeometry {
		t.Error("expected extract_geometry to be true by default")
	}
	if cfg.Step.Timeout != 5*time.Minute {
		t.Errorf("expected timeout 5m, got %v", cfg.Step.Timeout)
	}
	if cfg.Step.Tolerance != 1.0 {
		t.Errorf("expected tolerance 1.0, got %v", cfg.Step.Tolerance)
	}
	if cfg.Step.Format != "stl" {
		t.Errorf("expected format stl, got %s", cfg.Step.Format)
	}
	if cfg.Step.PlaceholderOnUnavailable {
		t.Error("expected placeholder mode to be off by default")
	}
	if got := strings.Join(cfg.Step.Backends, ","); got != "service,docker,local,cloudconvert" {
		t.Errorf("unexpected backend order %s", got)
	}
	if cfg.Step.Docker.Image != "freecad-converter:latest" {
		t.Errorf("expected default image, got %s", cfg.Step.Docker.Image)
	}
	if cfg.Server.Listen != ":8001" {
		t.Errorf("expected listen :8001, got %s", cfg.Server.Listen)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cadmesh.yaml")

	yamlContent := `
pipeline:
  target_triangles: 1000
  work_dir: /var/tmp/cadmesh

step:
  backends: [local, docker]
  tolerance: 0.1
  timeout: 90s
  format: obj
  placeholder_on_unavailable: true
  local:
    command: [python3, /opt/freecad_converter.py]

logging:
  level: "debug"
  log_file: "cadmesh.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pipeline.TargetTriangles != 1000 {
		t.Errorf("expected target 1000, got %d", cfg.Pipeline.TargetTriangles)
	}
	if cfg.Pipeline.WorkDir != "/var/tmp/cadmesh" {
		t.Errorf("unexpected work dir %s", cfg.Pipeline.WorkDir)
	}
	if !cfg.Pipeline.ExtractGeometry {
		t.Error("keys absent from the file should keep their defaults")
	}
	if got := strings.Join(cfg.Step.Backends, ","); got != "local,docker" {
		t.Errorf("unexpected backends %s", got)
	}
	if cfg.Step.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.Step.Timeout)
	}
	if cfg.Step.Format != "obj" {
		t.Errorf("expected format obj, got %s", cfg.Step.Format)
	}
	if !cfg.Step.PlaceholderOnUnavailable {
		t.Error("expected placeholder mode on")
	}
	if len(cfg.Step.Local.Command) != 2 || cfg.Step.Local.Command[0] != "python3" {
		t.Errorf("unexpected local command %v", cfg.Step.Local.Command)
	}
	if cfg.Step.Docker.Image != "freecad-converter:latest" {
		t.Errorf("docker image default lost: %s", cfg.Step.Docker.Image)
	}
	if cfg.Logging.LogFile != "cadmesh.log" {
		t.Errorf("expected log file 'cadmesh.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
pipeline:
  target_triangles: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for an explicit path that does not exist")
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cadmesh.yaml")
	yamlContent := `
step:
  service:
    url: http://from-file:8001
  docker:
    image: from-file:1
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("CADMESH_STEP_SERVICE_URL", "http://from-env:8001")
	t.Setenv("FREECAD_DOCKER_IMAGE", "legacy:2")
	t.Setenv("CLOUDCONVERT_API_KEY", "secret")
	t.Setenv("CADMESH_S3_ACCESS_KEY_ID", "AKID")
	t.Setenv("CADMESH_LOG_LEVEL", "warn")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Step.Service.URL != "http://from-env:8001" {
		t.Errorf("env should override file, got %s", cfg.Step.Service.URL)
	}
	if cfg.Step.Docker.Image != "legacy:2" {
		t.Errorf("legacy env alias should apply, got %s", cfg.Step.Docker.Image)
	}
	if cfg.Step.CloudConvert.APIKey != "secret" {
		t.Errorf("expected api key from env, got %q", cfg.Step.CloudConvert.APIKey)
	}
	if cfg.Storage.S3.AccessKeyID != "AKID" {
		t.Errorf("expected access key from env, got %q", cfg.Storage.S3.AccessKeyID)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level from env, got %s", cfg.Logging.Level)
	}
}

func TestEnvPrimaryBeatsAlias(t *testing.T) {
	t.Setenv("CADMESH_DOCKER_IMAGE", "primary:1")
	t.Setenv("FREECAD_DOCKER_IMAGE", "legacy:1")

	cfg := Default()
	applyEnv(cfg)
	if cfg.Step.Docker.Image != "primary:1" {
		t.Errorf("expected primary variable to win, got %s", cfg.Step.Docker.Image)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero target", func(c *Config) { c.Pipeline.TargetTriangles = 0 }, "target_triangles"},
		{"negative timeout", func(c *Config) { c.Step.Timeout = -time.Second }, "step.timeout"},
		{"zero tolerance", func(c *Config) { c.Step.Tolerance = 0 }, "step.tolerance"},
		{"bad format", func(c *Config) { c.Step.Format = "3mf" }, "step.format"},
		{"unknown backend", func(c *Config) { c.Step.Backends = []string{"occ"} }, "unknown backend"},
		{"duplicate backend", func(c *Config) { c.Step.Backends = []string{"local", "local"} }, "listed twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
