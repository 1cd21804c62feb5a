package stepconv

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	cadmesh "github.com/flywave/go-cadmesh"
	"go.uber.org/zap"
)

// Service talks to a converter service:
//
//	POST {url}/convert  multipart file + output_format -> converted bytes
//	GET  {url}/health   200 when ready
type Service struct {
	URL    string
	Client *http.Client
	opts   options
}

func NewService(url string, opts ...Option) *Service {
	return &Service{URL: strings.TrimRight(url, "/"), Client: http.DefaultClient, opts: newOptions(opts)}
}

func (s *Service) Name() string { return "service" }

func (s *Service) Probe(ctx context.Context) error {
	if s.URL == "" {
		return fmt.Errorf("no service url configured")
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s: %s", resp.Status, errorText(resp.Body))
	}
	return nil
}

func (s *Service) Convert(ctx context.Context, stepPath, format, outDir string) (*cadmesh.ConversionArtifact, error) {
	if err := checkFormat(format); err != nil {
		return nil, cadmesh.NewConversionError(s.Name(), stepPath, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	file, err := os.Open(stepPath)
	if err != nil {
		return nil, cadmesh.NewConversionError(s.Name(), stepPath, err)
	}
	defer file.Close()

	body, contentType := multipartBody(file, filepath.Base(stepPath), map[string]string{"output_format": format})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL+"/convert", body)
	if err != nil {
		return nil, cadmesh.NewConversionError(s.Name(), stepPath, err)
	}
	req.Header.Set("Content-Type", contentType)

	s.opts.log.Debug("posting step file to converter service", zap.String("url", s.URL))
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fail(ctx, s.Name(), stepPath, "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(ctx, s.Name(), stepPath, "",
			fmt.Errorf("service returned %s: %s", resp.Status, errorText(resp.Body)))
	}

	out := artifactPath(stepPath, format, outDir)
	if err := writeFile(out, resp.Body); err != nil {
		return nil, fail(ctx, s.Name(), stepPath, out, err)
	}
	return finish(s.Name(), stepPath, out, format)
}

func (s *Service) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}

// multipartBody streams fields followed by a "file" part without buffering
// the file in memory.
func multipartBody(file io.Reader, name string, fields map[string]string) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()
	return pr, mw.FormDataContentType()
}
