package config

import (
	"errors"
	"fmt"
)

var knownBackends = map[string]bool{
	"service":      true,
	"docker":       true,
	"local":        true,
	"cloudconvert": true,
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.TargetTriangles <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.target_triangles must be positive, got %d", c.Pipeline.TargetTriangles))
	}
	if c.Step.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("step.timeout must be positive, got %v", c.Step.Timeout))
	}
	if c.Step.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("step.tolerance must be positive, got %v", c.Step.Tolerance))
	}
	if c.Step.Format != "stl" && c.Step.Format != "obj" {
		errs = append(errs, fmt.Errorf("step.format must be stl or obj, got %q", c.Step.Format))
	}
	seen := make(map[string]bool)
	for _, b := range c.Step.Backends {
		if !knownBackends[b] {
			errs = append(errs, fmt.Errorf("step.backends: unknown backend %q", b))
		}
		if seen[b] {
			errs = append(errs, fmt.Errorf("step.backends: %q listed twice", b))
		}
		seen[b] = true
	}
	return errors.Join(errs...)
}
