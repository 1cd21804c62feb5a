package stepconv

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	cadmesh "github.com/flywave/go-cadmesh"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultDockerImage  = "freecad-converter:latest"
	DefaultDockerBinary = "docker"
	containerScript     = "/app/freecad_converter.py"
)

// Docker runs the converter inside a throwaway container. The STEP file's
// directory is mounted read-only and the output directory read-write.
type Docker struct {
	Binary string
	Image  string
	opts   options
}

func NewDocker(image string, opts ...Option) *Docker {
	if image == "" {
		image = DefaultDockerImage
	}
	return &Docker{Binary: DefaultDockerBinary, Image: image, opts: newOptions(opts)}
}

func (d *Docker) Name() string { return "docker" }

// Probe checks that the docker CLI answers.
func (d *Docker) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, d.binary(), "--version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s --version: %w: %s", d.binary(), err, tailText(out))
	}
	return nil
}

func (d *Docker) Convert(ctx context.Context, stepPath, format, outDir string) (*cadmesh.ConversionArtifact, error) {
	if err := checkFormat(format); err != nil {
		return nil, cadmesh.NewConversionError(d.Name(), stepPath, err)
	}
	inDir, err := filepath.Abs(filepath.Dir(stepPath))
	if err != nil {
		return nil, cadmesh.NewConversionError(d.Name(), stepPath, err)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return nil, cadmesh.NewConversionError(d.Name(), stepPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.timeout)
	defer cancel()

	out := artifactPath(stepPath, format, absOut)
	container := "cadmesh-" + uuid.NewString()
	args := []string{
		"run", "--rm", "--name", container,
		"-v", inDir + ":/input:ro",
		"-v", absOut + ":/output:rw",
		d.Image,
		"python3", containerScript,
		"/input/" + filepath.Base(stepPath),
		"/output/" + filepath.Base(out),
		"--format", format,
		"--quality", strconv.FormatFloat(d.opts.tolerance, 'f', -1, 64),
	}
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	cmd.WaitDelay = 5 * time.Second

	d.opts.log.Debug("running converter container", zap.String("image", d.Image), zap.String("container", container))
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			d.kill(container)
		}
		return nil, fail(ctx, d.Name(), stepPath, out,
			fmt.Errorf("%w: %s (image %s)", err, tailText(output), d.Image))
	}
	return finish(d.Name(), stepPath, out, format)
}

// kill stops a container whose client was killed; removing the client alone
// leaves the container running.
func (d *Docker) kill(container string) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if out, err := exec.CommandContext(ctx, d.binary(), "kill", container).CombinedOutput(); err != nil {
		d.opts.log.Warn("failed to kill converter container",
			zap.String("container", container), zap.Error(errors.Join(err, errors.New(tailText(out)))))
	}
}

func (d *Docker) binary() string {
	if d.Binary == "" {
		return DefaultDockerBinary
	}
	return d.Binary
}
