// Package stepconv provides the STEP tessellation backends: a CAD kernel run
// on the host, an HTTP converter service, a sandboxed container and the
// CloudConvert job API.
package stepconv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cadmesh "github.com/flywave/go-cadmesh"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the hard ceiling on one conversion.
	DefaultTimeout = 5 * time.Minute
	// DefaultTolerance is the tessellation deviation passed to CAD kernels.
	DefaultTolerance = 1.0

	probeTimeout = 5 * time.Second
	maxErrorText = 4 << 10
)

type options struct {
	timeout   time.Duration
	tolerance float64
	log       *zap.Logger
}

type Option func(*options)

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithTolerance(t float64) Option {
	return func(o *options) { o.tolerance = t }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func newOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout, tolerance: DefaultTolerance, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

func checkFormat(format string) error {
	switch format {
	case cadmesh.STL, cadmesh.OBJ:
		return nil
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// artifactPath names the converter output for stepPath inside outDir.
func artifactPath(stepPath, format, outDir string) string {
	stem := strings.TrimSuffix(filepath.Base(stepPath), filepath.Ext(stepPath))
	return filepath.Join(outDir, stem+"_converted."+format)
}

// finish checks the file a backend produced. A missing or empty file is a
// failed conversion and is removed.
func finish(backend, stepPath, out, format string) (*cadmesh.ConversionArtifact, error) {
	info, err := os.Stat(out)
	if err != nil {
		os.Remove(out)
		return nil, cadmesh.NewConversionError(backend, stepPath, fmt.Errorf("no output produced: %w", err))
	}
	if info.Size() == 0 {
		os.Remove(out)
		return nil, cadmesh.NewConversionError(backend, stepPath, errors.New("converter produced an empty file"))
	}
	return &cadmesh.ConversionArtifact{Path: out, Format: format, Backend: backend}, nil
}

// fail removes any partial output and classifies err. A context error takes
// precedence over the error it caused.
func fail(ctx context.Context, backend, stepPath, out string, err error) error {
	if out != "" {
		os.Remove(out)
	}
	if cerr := ctx.Err(); cerr != nil {
		err = fmt.Errorf("%w: %v", cerr, err)
	}
	return cadmesh.NewConversionError(backend, stepPath, err)
}

// writeFile streams r into path, removing the file if the copy fails.
func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// errorText reads at most maxErrorText bytes of a failed response or
// process output.
func errorText(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorText))
	return strings.TrimSpace(string(b))
}

func tailText(b []byte) string {
	if len(b) > maxErrorText {
		b = b[len(b)-maxErrorText:]
	}
	return strings.TrimSpace(string(b))
}

var (
	_ cadmesh.StepConverter = (*Local)(nil)
	_ cadmesh.StepConverter = (*Service)(nil)
	_ cadmesh.StepConverter = (*Docker)(nil)
	_ cadmesh.StepConverter = (*CloudConvert)(nil)
)
