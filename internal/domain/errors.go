package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrMissingCredential = errors.New("missing replicate token")
	ErrFrameEmpty        = errors.New("frame is empty")
)

// AuthError reports that no usable credential was available. It is raised
// before any network call and is never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "auth: " + ErrMissingCredential.Error()
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return ErrMissingCredential }

// SubmissionError carries the provider's rejection of a job creation request.
// Body is the provider response verbatim.
type SubmissionError struct {
	StatusCode int
	Body       []byte
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected: http %d: %s", e.StatusCode, truncate(e.Body))
}

// TimeoutError means the wait budget ran out. The remote job may still be
// running; StatusURL can be polled again to keep waiting.
type TimeoutError struct {
	PredictionID string
	StatusURL    string
	LastStatus   string
	Waited       time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting prediction %s after %s (last status %q)", e.PredictionID, e.Waited, e.LastStatus)
}

// JobError is a terminal, unsuccessful job. Prediction holds the last
// provider response verbatim.
type JobError struct {
	PredictionID string
	Status       string
	Message      string
	Prediction   []byte
}

func (e *JobError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prediction %s %s: %s", e.PredictionID, e.Status, e.Message)
	}
	return fmt.Sprintf("prediction %s %s", e.PredictionID, e.Status)
}

// UploadError is a failed file relay. Either StatusCode/Body (provider
// rejection) or Err (transport failure) is set.
type UploadError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return "upload failed: " + e.Err.Error()
	}
	return fmt.Sprintf("upload failed: %d %s", e.StatusCode, truncate(e.Body))
}

func (e *UploadError) Unwrap() error { return e.Err }

// DecodeError reports an unreadable image source.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode image: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "…"
	}
	return string(body)
}
