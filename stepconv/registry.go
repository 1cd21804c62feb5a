package stepconv

import (
	"fmt"

	cadmesh "github.com/flywave/go-cadmesh"
	"github.com/flywave/go-cadmesh/internal/config"
	"go.uber.org/zap"
)

// FromConfig builds the configured backends in priority order. Backends are
// not probed here; pass the result to cadmesh.ProbeCapabilities.
func FromConfig(cfg config.StepConfig, log *zap.Logger) ([]cadmesh.StepConverter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []Option{
		WithTimeout(cfg.Timeout),
		WithTolerance(cfg.Tolerance),
	}
	var out []cadmesh.StepConverter
	for _, name := range cfg.Backends {
		bopts := append(opts[:len(opts):len(opts)], WithLogger(log.Named(name)))
		switch name {
		case "service":
			out = append(out, NewService(cfg.Service.URL, bopts...))
		case "docker":
			d := NewDocker(cfg.Docker.Image, bopts...)
			if cfg.Docker.Binary != "" {
				d.Binary = cfg.Docker.Binary
			}
			out = append(out, d)
		case "local":
			out = append(out, NewLocal(cfg.Local.Command, bopts...))
		case "cloudconvert":
			c := NewCloudConvert(cfg.CloudConvert.APIKey, bopts...)
			if cfg.CloudConvert.APIURL != "" {
				c.APIURL = cfg.CloudConvert.APIURL
			}
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown step backend %q", name)
		}
	}
	return out, nil
}
