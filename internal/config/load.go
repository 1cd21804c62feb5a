package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < environment.
// Command line flags are applied by the caller on the returned Config.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{"./cadmesh.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "cadmesh", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnv applies environment overrides. Secrets are expected here rather
// than in the config file.
func applyEnv(cfg *Config) {
	if v := env("CADMESH_STEP_SERVICE_URL", "FREECAD_DOCKER_URL"); v != "" {
		cfg.Step.Service.URL = v
	}
	if v := env("CADMESH_DOCKER_IMAGE", "FREECAD_DOCKER_IMAGE"); v != "" {
		cfg.Step.Docker.Image = v
	}
	if v := env("CADMESH_CLOUDCONVERT_API_KEY", "CLOUDCONVERT_API_KEY"); v != "" {
		cfg.Step.CloudConvert.APIKey = v
	}
	if v := env("CADMESH_S3_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.S3.AccessKeyID = v
	}
	if v := env("CADMESH_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.SecretAccessKey = v
	}
	if v := env("CADMESH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// env returns the first non-empty variable among names.
func env(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
