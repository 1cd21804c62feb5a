// Package config handles cadmesh configuration loading and management.
package config

import "time"

// Config holds all pipeline, converter and service settings.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Step     StepConfig     `yaml:"step"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Server   ServerConfig   `yaml:"server"`
}

// PipelineConfig holds mesh processing settings.
type PipelineConfig struct {
	TargetTriangles int    `yaml:"target_triangles"`
	WorkDir         string `yaml:"work_dir"` // Parent of per-invocation dirs, OS temp when empty
	ExtractGeometry bool   `yaml:"extract_geometry"`
}

// StepConfig holds STEP converter backend settings.
type StepConfig struct {
	Backends                 []string           `yaml:"backends"` // Priority order
	Tolerance                float64            `yaml:"tolerance"`
	Timeout                  time.Duration      `yaml:"timeout"`
	Format                   string             `yaml:"format"`
	PlaceholderOnUnavailable bool               `yaml:"placeholder_on_unavailable"`
	Service                  ServiceConfig      `yaml:"service"`
	Docker                   DockerConfig       `yaml:"docker"`
	Local                    LocalConfig        `yaml:"local"`
	CloudConvert             CloudConvertConfig `yaml:"cloudconvert"`
}

// ServiceConfig points at an HTTP converter service.
type ServiceConfig struct {
	URL string `yaml:"url"`
}

// DockerConfig holds the sandboxed converter container settings.
type DockerConfig struct {
	Image  string `yaml:"image"`
	Binary string `yaml:"binary"`
}

// LocalConfig holds the host CAD kernel command.
type LocalConfig struct {
	Command []string `yaml:"command"`
}

// CloudConvertConfig holds hosted conversion credentials.
type CloudConvertConfig struct {
	APIKey string `yaml:"api_key"`
	APIURL string `yaml:"api_url"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config holds S3 compatible storage settings.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// MetricsConfig holds the Prometheus listener.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Disabled when empty
}

// ServerConfig holds the converter service listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			TargetTriangles: 500,
			WorkDir:         "",
			ExtractGeometry: true,
		},
		Step: StepConfig{
			Backends:  []string{"service", "docker", "local", "cloudconvert"},
			Tolerance: 1.0,
			Timeout:   5 * time.Minute,
			Format:    "stl",
			Docker: DockerConfig{
				Image:  "freecad-converter:latest",
				Binary: "docker",
			},
			Local: LocalConfig{
				Command: []string{"freecadcmd-convert"},
			},
			CloudConvert: CloudConvertConfig{
				APIURL: "https://api.cloudconvert.com/v2",
			},
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: true,
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Server: ServerConfig{
			Listen: ":8001",
		},
	}
}
