package stepconv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	cadmesh "github.com/flywave/go-cadmesh"
	"go.uber.org/zap"
)

const (
	DefaultCloudConvertURL = "https://api.cloudconvert.com/v2"
	defaultPollInterval    = 2 * time.Second
)

// CloudConvert converts through the CloudConvert job API: create a job with
// import, convert and export tasks, upload the file to the import form,
// poll the job, then download the export URL.
type CloudConvert struct {
	APIKey       string
	APIURL       string
	Client       *http.Client
	PollInterval time.Duration
	opts         options
}

func NewCloudConvert(apiKey string, opts ...Option) *CloudConvert {
	return &CloudConvert{
		APIKey:       apiKey,
		APIURL:       DefaultCloudConvertURL,
		Client:       http.DefaultClient,
		PollInterval: defaultPollInterval,
		opts:         newOptions(opts),
	}
}

func (c *CloudConvert) Name() string { return "cloudconvert" }

// Probe only checks configuration; the API is not contacted at startup.
func (c *CloudConvert) Probe(ctx context.Context) error {
	if c.APIKey == "" {
		return errors.New("cloudconvert api key not configured")
	}
	return nil
}

type ccTask struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Result    struct {
		Form *struct {
			URL        string                 `json:"url"`
			Parameters map[string]interface{} `json:"parameters"`
		} `json:"form"`
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"files"`
	} `json:"result"`
}

type ccJob struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Tasks   []ccTask `json:"tasks"`
}

func (j *ccJob) task(name, operation string) *ccTask {
	for i := range j.Tasks {
		if j.Tasks[i].Name == name || j.Tasks[i].Operation == operation {
			return &j.Tasks[i]
		}
	}
	return nil
}

func (c *CloudConvert) Convert(ctx context.Context, stepPath, format, outDir string) (*cadmesh.ConversionArtifact, error) {
	if err := checkFormat(format); err != nil {
		return nil, cadmesh.NewConversionError(c.Name(), stepPath, err)
	}
	if c.APIKey == "" {
		return nil, cadmesh.NewConversionError(c.Name(), stepPath, errors.New("cloudconvert api key not configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	job, err := c.createJob(ctx, format)
	if err != nil {
		return nil, fail(ctx, c.Name(), stepPath, "", err)
	}
	c.opts.log.Info("cloudconvert job created", zap.String("job", job.ID))

	if err := c.upload(ctx, job, stepPath); err != nil {
		return nil, fail(ctx, c.Name(), stepPath, "", err)
	}
	url, err := c.wait(ctx, job.ID)
	if err != nil {
		return nil, fail(ctx, c.Name(), stepPath, "", err)
	}

	out := artifactPath(stepPath, format, outDir)
	if err := c.download(ctx, url, out); err != nil {
		return nil, fail(ctx, c.Name(), stepPath, out, err)
	}
	return finish(c.Name(), stepPath, out, format)
}

func (c *CloudConvert) createJob(ctx context.Context, format string) (*ccJob, error) {
	payload := map[string]interface{}{
		"tasks": map[string]interface{}{
			"import-step": map[string]string{"operation": "import/upload"},
			"convert-step": map[string]string{
				"operation":     "convert",
				"input":         "import-step",
				"input_format":  "step",
				"output_format": format,
			},
			"export-result": map[string]string{
				"operation": "export/url",
				"input":     "convert-step",
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var job ccJob
	if err := c.api(ctx, http.MethodPost, "/jobs", body, &job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if job.ID == "" {
		return nil, errors.New("create job: response has no job id")
	}
	return &job, nil
}

func (c *CloudConvert) upload(ctx context.Context, job *ccJob, stepPath string) error {
	task := job.task("import-step", "import/upload")
	if task == nil || task.Result.Form == nil || task.Result.Form.URL == "" {
		return errors.New("job has no upload form")
	}
	file, err := os.Open(stepPath)
	if err != nil {
		return err
	}
	defer file.Close()

	fields := make(map[string]string, len(task.Result.Form.Parameters))
	for k, v := range task.Result.Form.Parameters {
		fields[k] = fmt.Sprint(v)
	}
	body, contentType := multipartBody(file, filepath.Base(stepPath), fields)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.Result.Form.URL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload returned %s: %s", resp.Status, errorText(resp.Body))
	}
	return nil
}

// wait polls the job until it finishes and returns the export file URL.
func (c *CloudConvert) wait(ctx context.Context, id string) (string, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var job ccJob
		if err := c.api(ctx, http.MethodGet, "/jobs/"+id, nil, &job); err != nil {
			return "", fmt.Errorf("job status: %w", err)
		}
		switch job.Status {
		case "finished":
			task := job.task("export-result", "export/url")
			if task == nil || len(task.Result.Files) == 0 || task.Result.Files[0].URL == "" {
				return "", errors.New("finished job has no export file")
			}
			return task.Result.Files[0].URL, nil
		case "error":
			msg := job.Message
			if msg == "" {
				msg = "unknown error"
			}
			return "", fmt.Errorf("job failed: %s", msg)
		case "waiting", "processing":
		default:
			return "", fmt.Errorf("unexpected job status %q", job.Status)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *CloudConvert) download(ctx context.Context, url, out string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %s: %s", resp.Status, errorText(resp.Body))
	}
	return writeFile(out, resp.Body)
}

// api calls a JSON endpoint and decodes the "data" envelope into v.
func (c *CloudConvert) api(ctx context.Context, method, path string, body []byte, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.APIURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned %s: %s", method, path, resp.Status, errorText(resp.Body))
	}
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(envelope.Data, v)
}

func (c *CloudConvert) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}
