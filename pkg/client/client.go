// Package client is the HTTP gateway to a Slidecast server. The watch
// package polls through it and the CLI drives generation with it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/pkg/models"
)

// Sentinel errors for gateway failures.
var (
	ErrUnreachable = errors.New("server unreachable")
	ErrTimeout     = errors.New("request timeout")
	ErrNotFound    = errors.New("resource not found")
	ErrConflict    = errors.New("operation not allowed in current state")
)

// Client talks to the Slidecast HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a gateway client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// PollResult is the poll contract: Finished is authoritative, pollers stop
// on it rather than interpreting the job status themselves.
type PollResult struct {
	Finished bool        `json:"finished"`
	Job      *models.Job `json:"job"`
}

// Job fetches the current snapshot of one job.
func (c *Client) Job(ctx context.Context, id uuid.UUID) (*PollResult, error) {
	var result PollResult
	if err := c.get(ctx, "/api/v1/jobs/"+id.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunningJobs lists jobs that are currently executing.
func (c *Client) RunningJobs(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	if err := c.get(ctx, "/api/v1/jobs/running", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CancelJob cancels a pending or running job and returns its final snapshot.
func (c *Client) CancelJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodDelete, "/api/v1/jobs/"+id.String(), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateProject creates a named project.
func (c *Client) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	var project models.Project
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", body, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Project fetches one project with its pages.
func (c *Client) Project(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := c.get(ctx, "/api/v1/projects/"+id.String(), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	if err := c.get(ctx, "/api/v1/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// UploadPDF uploads the deck at path as the project's source PDF.
func (c *Client) UploadPDF(ctx context.Context, projectID uuid.UUID, path string) (*models.Project, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	fw, err := mpw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	if err := mpw.Close(); err != nil {
		return nil, fmt.Errorf("finishing multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/projects/"+projectID.String()+"/pdf", &buf)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mpw.FormDataContentType())

	var project models.Project
	if err := c.send(req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// SplitPages starts the page-split stage and returns the tracking job.
func (c *Client) SplitPages(ctx context.Context, projectID uuid.UUID) (*models.Job, error) {
	return c.startStage(ctx, projectID, "split")
}

// GenerateScripts starts the script-generation stage.
func (c *Client) GenerateScripts(ctx context.Context, projectID uuid.UUID) (*models.Job, error) {
	return c.startStage(ctx, projectID, "scripts")
}

// GenerateAudio starts the audio-generation stage.
func (c *Client) GenerateAudio(ctx context.Context, projectID uuid.UUID) (*models.Job, error) {
	return c.startStage(ctx, projectID, "audio")
}

// Scripts fetches all generated scripts for a project.
func (c *Client) Scripts(ctx context.Context, projectID uuid.UUID) ([]*models.Script, error) {
	var scripts []*models.Script
	if err := c.get(ctx, "/api/v1/projects/"+projectID.String()+"/scripts", &scripts); err != nil {
		return nil, err
	}
	return scripts, nil
}

func (c *Client) startStage(ctx context.Context, projectID uuid.UUID, stage string) (*models.Job, error) {
	var job models.Job
	path := "/api/v1/projects/" + projectID.String() + "/" + stage
	if err := c.do(ctx, http.MethodPost, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// decodeError maps the server's error envelope onto sentinel errors.
func decodeError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	msg := envelope.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	default:
		return fmt.Errorf("server error %s: %s", envelope.Error.Code, msg)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
