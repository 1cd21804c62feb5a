package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cadmesh "github.com/flywave/go-cadmesh"
	"github.com/flywave/go-cadmesh/internal/objstore"
)

var (
	processGLB        string
	processNoGeometry bool
)

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Process one file and print its result as JSON",
	Long:  "Load a CAD or mesh file (local path or s3://bucket/key), simplify it, print geometry metadata and optionally write a GLB (local path or s3://bucket/key).",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processGLB, "glb", "", "Write the GLB preview here")
	processCmd.Flags().BoolVar(&processNoGeometry, "no-geometry", false, "Skip geometry extraction")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	defer serveMetrics()()

	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	store, err := newStore(args[0], processGLB)
	if err != nil {
		return err
	}
	extract := cfg.Pipeline.ExtractGeometry && !processNoGeometry
	res, err := processOne(ctx, p, store, args[0], processGLB, extract)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// processOne runs the pipeline on input, staging object storage locations
// through a private scratch directory.
func processOne(ctx context.Context, p *cadmesh.Pipeline, store *objstore.Client, input, glbOut string, extract bool) (*cadmesh.Result, error) {
	if store == nil {
		return p.Process(ctx, input, extract, glbOut)
	}

	scratch, err := os.MkdirTemp(cfg.Pipeline.WorkDir, "cadmesh-io-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	local := input
	if objstore.IsURI(input) {
		// Reject unsupported extensions before downloading anything.
		if _, err := cadmesh.FormatOf(input); err != nil {
			return nil, err
		}
		if local, err = store.Download(ctx, input, scratch); err != nil {
			return nil, err
		}
	}
	localGLB := glbOut
	if objstore.IsURI(glbOut) {
		localGLB = filepath.Join(scratch, "out.glb")
	}

	res, err := p.Process(ctx, local, extract, localGLB)
	if err != nil {
		return nil, err
	}
	if res.GLBPath != "" && objstore.IsURI(glbOut) {
		if err := store.Upload(ctx, localGLB, glbOut, "model/gltf-binary"); err != nil {
			return nil, err
		}
		res.GLBPath = glbOut
	}
	return res, nil
}
