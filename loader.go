package cadmesh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Loader turns any supported input file into one flattened Mesh. STEP files
// are converted by the first working backend in Capabilities.
type Loader struct {
	caps       *Capabilities
	workDir    string
	stepFormat string
	log        *zap.Logger
}

func NewLoader(caps *Capabilities, workDir, stepFormat string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	if stepFormat == "" {
		stepFormat = STL
	}
	return &Loader{caps: caps, workDir: workDir, stepFormat: stepFormat, log: log}
}

// Load reads path and returns its geometry as a single mesh.
func (l *Loader) Load(ctx context.Context, path string) (*Mesh, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	l.log.Debug("dispatching loader", zap.String("format", format), zap.String("path", path))
	if isStep(format) {
		return l.loadStep(ctx, path)
	}
	reader := FormatFactory(format)
	if reader == nil {
		return nil, newError(ErrUnsupportedFormat, "load", path, nil)
	}
	return reader.Read(path)
}

func (l *Loader) loadStep(ctx context.Context, path string) (*Mesh, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(ErrFileNotFound, "load", path, err)
		}
		return nil, newError(ErrLoad, "load", path, err)
	}
	if !l.caps.HasStep() && l.caps != nil && l.caps.Placeholder {
		l.log.Warn("no step backend available, substituting placeholder geometry",
			zap.String("path", path), zap.String("placeholder", "unit_cube"))
		return unitCube(), nil
	}

	dir, err := l.invocationDir()
	if err != nil {
		return nil, newError(ErrConversionFailed, "convert", path, err)
	}
	defer os.RemoveAll(dir)

	art, err := l.caps.Convert(ctx, path, l.stepFormat, dir, l.log)
	if err != nil {
		return nil, err
	}
	reader := FormatFactory(art.Format)
	if reader == nil {
		return nil, NewConversionError(art.Backend, path, fmt.Errorf("backend produced unsupported format %q", art.Format))
	}
	mesh, err := reader.Read(art.Path)
	if err != nil {
		return nil, NewConversionError(art.Backend, path, err)
	}
	l.log.Info("step file converted",
		zap.String("backend", art.Backend),
		zap.String("path", path),
		zap.Int("triangles", mesh.TriangleCount()))
	return mesh, nil
}

// invocationDir creates a work directory unique to one Load call.
func (l *Loader) invocationDir() (string, error) {
	base := l.workDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "cadmesh-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
