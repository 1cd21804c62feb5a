// Package cadmesh normalizes CAD and mesh files (STEP, STL, OBJ, glTF/GLB)
// into one triangle mesh, simplifies it to a triangle budget, derives
// placement metadata and writes a GLB for web viewers.
package cadmesh

import (
	"context"
	"errors"
	"os"

	"github.com/flywave/go-cadmesh/internal/metrics"
	"go.uber.org/zap"
)

// Result is what one Process call hands back. Either field is empty when
// the caller did not ask for it.
type Result struct {
	GeometryData *GeometryData `json:"geometry_data"`
	GLBPath      string        `json:"glb_path,omitempty"`
}

// Pipeline processes one file per call and holds no state between calls, so
// a single Pipeline may serve concurrent callers.
type Pipeline struct {
	caps     *Capabilities
	loader   *Loader
	analyzer *Analyzer
	target   int
	workDir  string
	stepFmt  string
	log      *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithTargetTriangles overrides DefaultTargetTriangles.
func WithTargetTriangles(n int) Option {
	return func(p *Pipeline) { p.target = n }
}

// WithWorkDir sets the parent of the per-invocation work directories.
func WithWorkDir(dir string) Option {
	return func(p *Pipeline) { p.workDir = dir }
}

// WithStepFormat selects the intermediate format requested from STEP
// backends, "stl" or "obj".
func WithStepFormat(format string) Option {
	return func(p *Pipeline) { p.stepFmt = format }
}

func WithExtractor(e ConnectionPointExtractor) Option {
	return func(p *Pipeline) { p.analyzer.Extractor = e }
}

// New builds a pipeline over the probed capabilities. A nil caps means no
// STEP support.
func New(caps *Capabilities, opts ...Option) *Pipeline {
	if caps == nil {
		caps = &Capabilities{}
	}
	p := &Pipeline{
		caps:     caps,
		analyzer: &Analyzer{Extractor: BoundsExtractor{}},
		target:   DefaultTargetTriangles,
		stepFmt:  STL,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.analyzer.Logger = p.log
	p.loader = NewLoader(p.caps, p.workDir, p.stepFmt, p.log)
	return p
}

func (p *Pipeline) Capabilities() *Capabilities {
	return p.caps
}

// Process loads filePath, simplifies it and returns geometry metadata when
// extractGeometry is set and a GLB at exportGLBTo when that is non-empty.
// GLB and glTF inputs are copied byte for byte instead of re-encoded.
func (p *Pipeline) Process(ctx context.Context, filePath string, extractGeometry bool, exportGLBTo string) (res *Result, err error) {
	timer := metrics.NewTimer()
	format, err := FormatOf(filePath)
	defer func() {
		label := format
		if errors.Is(err, ErrUnsupportedFormat) {
			label = "unsupported"
		}
		metrics.RecordPipeline(label, KindName(err), timer.Duration())
	}()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(ErrFileNotFound, "process", filePath, err)
		}
		return nil, newError(ErrLoad, "process", filePath, err)
	}
	if info.IsDir() {
		return nil, newError(ErrLoad, "process", filePath, errors.New("is a directory"))
	}

	log := p.log.With(zap.String("path", filePath), zap.String("format", format))
	res = &Result{}
	if !extractGeometry && exportGLBTo == "" {
		log.Warn("nothing requested, returning empty result")
		return res, nil
	}

	if isGltf(format) && exportGLBTo != "" {
		out, cerr := CopyFile(filePath, exportGLBTo)
		if cerr != nil {
			return nil, cerr
		}
		log.Info("glb pass-through copy", zap.String("glb_path", out))
		res.GLBPath = out
		if !extractGeometry {
			return res, nil
		}
		// A failed load must not leave the copy behind.
		defer func() {
			if err != nil {
				os.Remove(out)
			}
		}()
	}

	mesh, err := p.loader.Load(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	simplified, serr := Simplify(mesh, p.target)
	if serr != nil {
		metrics.SimplifyFallbacks.Inc()
		log.Warn("simplification failed, keeping original mesh",
			zap.Int("triangles", mesh.TriangleCount()), zap.Error(serr))
	} else if simplified != mesh {
		log.Info("mesh simplified",
			zap.Int("from", mesh.TriangleCount()), zap.Int("to", simplified.TriangleCount()))
	}
	metrics.TrianglesOut.Observe(float64(simplified.TriangleCount()))

	if extractGeometry {
		res.GeometryData = p.analyzer.Analyze(simplified)
		if res.GeometryData.IsFallback() {
			metrics.AnalysisFallbacks.Inc()
		}
	}
	if exportGLBTo != "" && res.GLBPath == "" {
		out, err := Export(simplified, exportGLBTo)
		if err != nil {
			return nil, err
		}
		log.Info("glb exported", zap.String("glb_path", out), zap.Int("triangles", simplified.TriangleCount()))
		res.GLBPath = out
	}
	return res, nil
}
