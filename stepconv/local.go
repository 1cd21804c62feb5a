package stepconv

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	cadmesh "github.com/flywave/go-cadmesh"
	"go.uber.org/zap"
)

// Local runs a CAD kernel command on the host:
//
//	<command...> <input.step> <output> --format <stl|obj> --quality <tolerance>
type Local struct {
	Command []string
	opts    options
}

func NewLocal(command []string, opts ...Option) *Local {
	return &Local{Command: command, opts: newOptions(opts)}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Probe(ctx context.Context) error {
	if len(l.Command) == 0 {
		return errors.New("no converter command configured")
	}
	if _, err := exec.LookPath(l.Command[0]); err != nil {
		return err
	}
	return nil
}

func (l *Local) Convert(ctx context.Context, stepPath, format, outDir string) (*cadmesh.ConversionArtifact, error) {
	if err := checkFormat(format); err != nil {
		return nil, cadmesh.NewConversionError(l.Name(), stepPath, err)
	}
	if len(l.Command) == 0 {
		return nil, cadmesh.NewConversionError(l.Name(), stepPath, errors.New("no converter command configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, l.opts.timeout)
	defer cancel()

	out := artifactPath(stepPath, format, outDir)
	args := append(append([]string{}, l.Command[1:]...),
		stepPath, out,
		"--format", format,
		"--quality", strconv.FormatFloat(l.opts.tolerance, 'f', -1, 64))
	cmd := exec.CommandContext(ctx, l.Command[0], args...)
	cmd.WaitDelay = 5 * time.Second

	l.opts.log.Debug("running local converter", zap.Strings("args", cmd.Args))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fail(ctx, l.Name(), stepPath, out, fmt.Errorf("%w: %s", err, tailText(output)))
	}
	return finish(l.Name(), stepPath, out, format)
}
