package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

// TokenHeader carries a per-request credential to the relay.
const TokenHeader = "X-Replicate-Token"

const maxResponseBytes = 8 << 20

// Options configures the relay client.
type Options struct {
	BaseURL string
	// Token is optional; without it the relay's own credential is used.
	Token      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client speaks the relay HTTP surface.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *infra.Logger
}

// RunResult is the relay's successful /run response.
type RunResult struct {
	Output     jobs.Output     `json:"output"`
	Prediction json.RawMessage `json:"prediction"`
}

// NewClient constructs a relay client. The HTTP timeout must outlast the
// relay's own job timeout, so the default is generous.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("relay: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("relay: parse base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 6 * time.Minute}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		logger:     infra.OrDiscard(opts.Logger),
	}, nil
}

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	status, body, err := c.call(ctx, http.MethodGet, "/api/health", nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("relay: health: http %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

// CheckToken calls GET /api/check-token.
func (c *Client) CheckToken(ctx context.Context) error {
	status, body, err := c.call(ctx, http.MethodGet, "/api/check-token", nil, "")
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized:
		return &domain.AuthError{Reason: errorField(body)}
	default:
		return fmt.Errorf("relay: check token: http %d: %s", status, strings.TrimSpace(string(body)))
	}
}

// Upload relays file through POST /api/files and returns its remote URL.
func (c *Client) Upload(ctx context.Context, file domain.File) (string, error) {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		name = "upload.bin"
	}
	mime := strings.TrimSpace(file.MIME)
	if mime == "" {
		mime = replicate.DetectMIME(file.Data)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, replicate.UploadField, name))
	header.Set("Content-Type", mime)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", &domain.UploadError{Err: err}
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", &domain.UploadError{Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &domain.UploadError{Err: err}
	}

	status, body, err := c.call(ctx, http.MethodPost, "/api/files", &buf, mw.FormDataContentType())
	if err != nil {
		return "", &domain.UploadError{Err: err}
	}
	if status == http.StatusUnauthorized {
		return "", &domain.AuthError{Reason: errorField(body)}
	}
	if status < 200 || status >= 300 {
		return "", &domain.UploadError{StatusCode: status, Body: body}
	}
	var obj replicate.FileObject
	if err := json.Unmarshal(body, &obj); err != nil || obj.URLs.Get == "" {
		return "", &domain.UploadError{StatusCode: status, Body: body, Err: errors.New("relay: upload response missing urls.get")}
	}
	return obj.URLs.Get, nil
}

// Run performs a full submit-and-wait on the relay and returns the output.
func (c *Client) Run(ctx context.Context, req jobs.Request) (jobs.Output, error) {
	res, err := c.RunJob(ctx, req)
	if err != nil {
		return jobs.Output{}, err
	}
	return res.Output, nil
}

// RunJob is Run keeping the relay's last prediction.
func (c *Client) RunJob(ctx context.Context, req jobs.Request) (*RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("relay: encode request: %w", err)
	}
	status, body, err := c.call(ctx, http.MethodPost, "/api/run", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	if status >= 200 && status < 300 {
		var res RunResult
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, fmt.Errorf("relay: decode run response: %w", err)
		}
		return &res, nil
	}
	return nil, runError(status, body)
}

// Prediction fetches GET /api/predictions/{id} and returns the body verbatim.
func (c *Client) Prediction(ctx context.Context, id string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("relay: prediction id required: %w", domain.ErrInvalidRequest)
	}
	status, body, err := c.call(ctx, http.MethodGet, "/api/predictions/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	switch {
	case status >= 200 && status < 300:
		return body, nil
	case status == http.StatusUnauthorized:
		return nil, &domain.AuthError{Reason: errorField(body)}
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("relay: prediction %s: %w", id, domain.ErrNotFound)
	}
	return nil, &replicate.APIError{StatusCode: status, Body: body}
}

func (c *Client) call(ctx context.Context, method, path string, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("relay: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("relay: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("relay: read response: %w", err)
	}
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("relay: response")
	return resp.StatusCode, raw, nil
}

// runError maps a failed /api/run response back onto the error taxonomy.
func runError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return &domain.AuthError{Reason: errorField(body)}
	case http.StatusBadRequest:
		return fmt.Errorf("relay: %s: %w", errorField(body), domain.ErrInvalidRequest)
	case http.StatusGatewayTimeout:
		return &domain.TimeoutError{LastStatus: string(domain.JobStatusProcessing)}
	}
	var pred replicate.Prediction
	if status == http.StatusInternalServerError && json.Unmarshal(body, &pred) == nil && pred.Status != "" {
		return &domain.JobError{
			PredictionID: pred.ID,
			Status:       string(pred.Status),
			Message:      pred.ErrorMessage(),
			Prediction:   body,
		}
	}
	return &domain.SubmissionError{StatusCode: status, Body: body}
}

func errorField(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
