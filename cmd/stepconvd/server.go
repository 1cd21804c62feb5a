package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	cadmesh "github.com/flywave/go-cadmesh"
)

const maxMemory = 32 << 20

type server struct {
	caps    *cadmesh.Capabilities
	workDir string
	log     *zap.Logger
}

func newServer(caps *cadmesh.Capabilities, workDir string, log *zap.Logger) *server {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &server{caps: caps, workDir: workDir, log: log}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/convert", s.handleConvert)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.caps.HasStep() {
		http.Error(w, "no converter backend available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ok %s\n", strings.Join(s.caps.BackendNames(), ","))
}

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	format := r.FormValue("output_format")
	if format == "" {
		format = cadmesh.STL
	}
	if format != cadmesh.STL && format != cadmesh.OBJ {
		http.Error(w, fmt.Sprintf("output_format must be stl or obj, got %q", format), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	dir := filepath.Join(s.workDir, "stepconvd-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.fail(w, err)
		return
	}
	defer os.RemoveAll(dir)

	stepPath, err := saveUpload(dir, header.Filename, file)
	if err != nil {
		s.fail(w, err)
		return
	}
	art, err := s.caps.Convert(r.Context(), stepPath, format, dir, s.log)
	if err != nil {
		s.fail(w, err)
		return
	}
	out, err := os.Open(art.Path)
	if err != nil {
		s.fail(w, err)
		return
	}
	defer out.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(art.Path)))
	w.Header().Set("X-Converter-Backend", art.Backend)
	if _, err := io.Copy(w, out); err != nil {
		s.log.Warn("response write failed", zap.Error(err))
	}
}

// saveUpload writes the uploaded file under dir, keeping only its base name
// and forcing a STEP extension.
func saveUpload(dir, name string, file multipart.File) (string, error) {
	name = filepath.Base(filepath.Clean("/" + name))
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".step" && ext != ".stp" {
		name += ".step"
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, file); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func (s *server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cadmesh.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, cadmesh.ErrConversionTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, cadmesh.ErrConversionFailed):
		status = http.StatusUnprocessableEntity
	}
	s.log.Warn("conversion request failed", zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}
