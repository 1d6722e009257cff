package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

const (
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultTimeout      = 300 * time.Second
)

// Provider is the part of the Replicate client the runner drives.
type Provider interface {
	CreatePrediction(ctx context.Context, token string, ref replicate.ModelRef, input map[string]any) (*replicate.Prediction, error)
	GetPrediction(ctx context.Context, token, statusURL string) (*replicate.Prediction, error)
}

// Options configures a Runner.
type Options struct {
	Provider     Provider
	Clock        Clock
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *infra.Logger
}

// Runner submits jobs and waits for them to reach a terminal state.
type Runner struct {
	provider Provider
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	logger   *infra.Logger
}

// Job is the local view of one remote prediction.
type Job struct {
	ID          string
	Ref         replicate.ModelRef
	Status      domain.JobStatus
	StatusURL   string
	Output      Output
	Prediction  *replicate.Prediction
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// NewRunner builds a runner. Zero durations fall back to the defaults.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Provider == nil {
		return nil, errors.New("jobs: provider is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		provider: opts.Provider,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		logger:   infra.OrDiscard(opts.Logger),
	}, nil
}

// SubmitAndWait creates a prediction and polls it until it leaves the
// starting/processing states or the timeout budget runs out. On failure the
// returned Job, when non-nil, carries the last prediction seen.
func (r *Runner) SubmitAndWait(ctx context.Context, token string, req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, &domain.AuthError{}
	}

	ref := req.Ref()
	job := &Job{Ref: ref, Status: domain.JobStatusCreated, SubmittedAt: r.clock.Now()}
	pred, err := r.provider.CreatePrediction(ctx, token, ref, req.Input)
	if err != nil {
		var apiErr *replicate.APIError
		if errors.As(err, &apiErr) {
			r.logger.Warn().Str("model", ref.String()).Int("status", apiErr.StatusCode).Msg("jobs: submission rejected")
			return job, &domain.SubmissionError{StatusCode: apiErr.StatusCode, Body: apiErr.Body}
		}
		return job, fmt.Errorf("jobs: submit %s: %w", ref, err)
	}
	r.logger.Info().Str("model", ref.String()).Str("prediction_id", pred.ID).Msg("jobs: prediction submitted")
	return r.wait(ctx, token, job, pred)
}

// Resume keeps waiting on a known prediction, typically one that timed out
// earlier, with a fresh budget.
func (r *Runner) Resume(ctx context.Context, token, statusURL string) (*Job, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &domain.AuthError{}
	}
	if strings.TrimSpace(statusURL) == "" {
		return nil, fmt.Errorf("jobs: status url required: %w", domain.ErrInvalidRequest)
	}
	job := &Job{StatusURL: statusURL, Status: domain.JobStatusCreated, SubmittedAt: r.clock.Now()}
	pred, err := r.provider.GetPrediction(ctx, token, statusURL)
	if err != nil {
		return job, fmt.Errorf("jobs: resume %s: %w", statusURL, err)
	}
	return r.wait(ctx, token, job, pred)
}

func (r *Runner) wait(ctx context.Context, token string, job *Job, pred *replicate.Prediction) (*Job, error) {
	job.observe(pred)
	for job.Status.Pending() {
		waited := r.clock.Now().Sub(job.SubmittedAt)
		if waited > r.timeout {
			last := job.Status
			job.Status = domain.JobStatusTimedOut
			job.FinishedAt = r.clock.Now()
			r.logger.Warn().Str("prediction_id", job.ID).Dur("waited", waited).Msg("jobs: timeout waiting prediction")
			return job, &domain.TimeoutError{
				PredictionID: job.ID,
				StatusURL:    job.StatusURL,
				LastStatus:   string(last),
				Waited:       waited,
			}
		}
		if job.StatusURL == "" {
			return job, fmt.Errorf("jobs: prediction %s has no status url", job.ID)
		}
		if err := r.clock.Sleep(ctx, r.interval); err != nil {
			return job, err
		}
		next, err := r.provider.GetPrediction(ctx, token, job.StatusURL)
		if err != nil {
			return job, fmt.Errorf("jobs: poll prediction %s: %w", job.ID, err)
		}
		if next.Status != job.Status {
			r.logger.Debug().Str("prediction_id", job.ID).Str("from", string(job.Status)).Str("to", string(next.Status)).Msg("jobs: status changed")
		}
		job.observe(next)
	}

	job.FinishedAt = r.clock.Now()
	if !job.Status.Terminal() {
		r.logger.Warn().Str("prediction_id", job.ID).Str("status", string(job.Status)).Msg("jobs: unexpected prediction status")
	}
	if job.Status != domain.JobStatusSucceeded {
		r.logger.Info().Str("prediction_id", job.ID).Str("status", string(job.Status)).Msg("jobs: prediction did not succeed")
		return job, &domain.JobError{
			PredictionID: job.ID,
			Status:       string(job.Status),
			Message:      job.Prediction.ErrorMessage(),
			Prediction:   job.Prediction.Raw,
		}
	}
	job.Output = ParseOutput(job.Prediction.Output)
	r.logger.Info().Str("prediction_id", job.ID).Dur("took", job.FinishedAt.Sub(job.SubmittedAt)).Msg("jobs: prediction succeeded")
	return job, nil
}

func (j *Job) observe(pred *replicate.Prediction) {
	j.Prediction = pred
	if pred.ID != "" {
		j.ID = pred.ID
	}
	if pred.URLs.Get != "" {
		j.StatusURL = pred.URLs.Get
	}
	j.Status = pred.Status
}
