package replicate

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
)

// ModelRef addresses a job either by model name ("owner/name") or by an
// explicit version id. Exactly one of the two must be set.
type ModelRef struct {
	Model   string
	Version string
}

// String renders the reference for logs.
func (r ModelRef) String() string {
	if r.Model != "" {
		return r.Model
	}
	return "version:" + r.Version
}

// PredictionURLs are the self-describing endpoints returned with a prediction.
type PredictionURLs struct {
	Get    string `json:"get"`
	Cancel string `json:"cancel,omitempty"`
	Stream string `json:"stream,omitempty"`
}

// Prediction is the provider's job representation. Raw holds the response
// body exactly as received so it can be relayed verbatim.
type Prediction struct {
	ID          string           `json:"id"`
	Model       string           `json:"model,omitempty"`
	Version     string           `json:"version,omitempty"`
	Status      domain.JobStatus `json:"status"`
	Input       map[string]any   `json:"input,omitempty"`
	Output      json.RawMessage  `json:"output,omitempty"`
	Error       json.RawMessage  `json:"error,omitempty"`
	Logs        string           `json:"logs,omitempty"`
	URLs        PredictionURLs   `json:"urls"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ErrorMessage flattens the provider error field, which may be a string or
// an arbitrary JSON value.
func (p *Prediction) ErrorMessage() string {
	if p == nil || len(p.Error) == 0 || string(p.Error) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Error, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(p.Error)
}

type createRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

// FileObject is the provider's response to a file upload.
type FileObject struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	URLs        struct {
		Get string `json:"get"`
	} `json:"urls"`

	Raw json.RawMessage `json:"-"`
}

// Account is the subset of /account the relay cares about.
type Account struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`

	Raw json.RawMessage `json:"-"`
}
