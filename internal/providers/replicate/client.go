package replicate

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

	"github.com/gabriel-vasile/mimetype"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
)

const (
	// DefaultBaseURL is the public Replicate API root.
	DefaultBaseURL = "https://api.replicate.com/v1"

	// UploadField is the multipart field name the files endpoint expects.
	UploadField = "content"

	defaultUploadName = "upload.bin"
	maxResponseBytes  = 8 << 20
)

// APIError is a non-2xx provider response. Body is kept verbatim.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate: http %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Options configures the Replicate client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Replicate API. It holds no
// credential: every call takes the token to attach, so the same client
// serves a relay-held token and a caller-supplied one.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     infra.OrDiscard(opts.Logger),
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreatePrediction submits a job. A model name targets the model-scoped
// endpoint with {input}; a version id targets /predictions with
// {version, input}.
func (c *Client) CreatePrediction(ctx context.Context, token string, ref ModelRef, input map[string]any) (*Prediction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &domain.AuthError{}
	}
	var (
		endpoint string
		payload  createRequest
	)
	switch {
	case ref.Model != "" && ref.Version == "":
		endpoint = c.baseURL + "/models/" + escapeModel(ref.Model) + "/predictions"
		payload = createRequest{Input: input}
	case ref.Version != "" && ref.Model == "":
		endpoint = c.baseURL + "/predictions"
		payload = createRequest{Version: ref.Version, Input: input}
	default:
		return nil, fmt.Errorf("replicate: exactly one of model or version is required: %w", domain.ErrInvalidRequest)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out Prediction
	if err := c.do(req, token, &out); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("model", ref.String()).Str("prediction_id", out.ID).Str("status", string(out.Status)).Msg("replicate: prediction created")
	return &out, nil
}

// GetPrediction fetches a prediction by its self-describing polling URL.
func (c *Client) GetPrediction(ctx context.Context, token, statusURL string) (*Prediction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &domain.AuthError{}
	}
	if strings.TrimSpace(statusURL) == "" {
		return nil, fmt.Errorf("replicate: status url required: %w", domain.ErrInvalidRequest)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	var out Prediction
	if err := c.do(req, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPredictionByID fetches a prediction by id.
func (c *Client) GetPredictionByID(ctx context.Context, token, id string) (*Prediction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("replicate: prediction id required: %w", domain.ErrInvalidRequest)
	}
	return c.GetPrediction(ctx, token, c.baseURL+"/predictions/"+url.PathEscape(id))
}

// Account validates a token against /account.
func (c *Client) Account(ctx context.Context, token string) (*Account, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &domain.AuthError{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account", nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	var out Account
	if err := c.do(req, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile relays a binary file to the provider's file store and returns
// the stored object; URLs.Get is usable as model input. Empty payloads are
// sent as-is and left for the provider to reject.
func (c *Client) UploadFile(ctx context.Context, token string, file domain.File) (*FileObject, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &domain.AuthError{}
	}
	name := strings.TrimSpace(file.Name)
	if name == "" {
		name = defaultUploadName
	}
	mime := strings.TrimSpace(file.MIME)
	if mime == "" {
		mime = DetectMIME(file.Data)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, name))
	header.Set("Content-Type", mime)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, &domain.UploadError{Err: fmt.Errorf("build multipart: %w", err)}
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, &domain.UploadError{Err: fmt.Errorf("write multipart: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return nil, &domain.UploadError{Err: fmt.Errorf("close multipart: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return nil, &domain.UploadError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out FileObject
	if err := c.do(req, token, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &domain.UploadError{StatusCode: apiErr.StatusCode, Body: apiErr.Body}
		}
		return nil, &domain.UploadError{Err: err}
	}
	if out.URLs.Get == "" {
		return nil, &domain.UploadError{StatusCode: http.StatusBadGateway, Body: out.Raw, Err: errors.New("replicate: upload response missing urls.get")}
	}
	c.logger.Debug().Str("file_id", out.ID).Int("bytes", file.Size()).Str("mime", mime).Msg("replicate: file uploaded")
	return &out, nil
}

// DetectMIME sniffs a content type, falling back to application/octet-stream.
func DetectMIME(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(data).String()
}

// do sends req with the bearer token and decodes a 2xx JSON body into out.
// out must be a *Prediction, *FileObject or *Account so Raw can be kept.
func (c *Client) do(req *http.Request, token string, out any) error {
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().Int("status", resp.StatusCode).Str("url", req.URL.Redacted()).Msg("replicate: non-success response")
		return &APIError{StatusCode: resp.StatusCode, Body: raw}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	switch v := out.(type) {
	case *Prediction:
		v.Raw = raw
	case *FileObject:
		v.Raw = raw
	case *Account:
		v.Raw = raw
	}
	return nil
}

// escapeModel escapes each path segment of an "owner/name" model reference.
func escapeModel(model string) string {
	parts := strings.Split(strings.Trim(model, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
