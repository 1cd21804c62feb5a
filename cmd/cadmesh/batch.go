package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cadmesh "github.com/flywave/go-cadmesh"
	"github.com/flywave/go-cadmesh/internal/logger"
)

var (
	batchOutDir string
	batchJobs   int
)

var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Process many files in parallel",
	Long:  "Process every file with bounded parallelism. One JSON line is printed per input; a GLB named after the input is written to --out-dir when set.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "Directory (or s3://bucket/prefix) for GLB outputs")
	batchCmd.Flags().IntVar(&batchJobs, "jobs", runtime.NumCPU(), "Maximum files processed at once")
	rootCmd.AddCommand(batchCmd)
}

type batchLine struct {
	Input string `json:"input"`
	*cadmesh.Result
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	defer serveMetrics()()

	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	store, err := newStore(append([]string{batchOutDir}, args...)...)
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		failed int
		enc    = json.NewEncoder(cmd.OutOrStdout())
	)
	g := new(errgroup.Group)
	g.SetLimit(max(batchJobs, 1))
	for _, input := range args {
		input := input
		g.Go(func() error {
			res, err := processOne(ctx, p, store, input, batchOutput(input), cfg.Pipeline.ExtractGeometry)
			line := batchLine{Input: input, Result: res}
			if err != nil {
				logger.Error("batch item failed", zap.String("input", input), zap.Error(err))
				line.Error = err.Error()
				line.ErrorKind = cadmesh.KindName(err)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			}
			return enc.Encode(line)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// batchOutput names the GLB for input inside batchOutDir.
func batchOutput(input string) string {
	if batchOutDir == "" {
		return ""
	}
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".glb"
	if strings.HasPrefix(batchOutDir, "s3://") {
		return strings.TrimRight(batchOutDir, "/") + "/" + name
	}
	return filepath.Join(batchOutDir, name)
}
