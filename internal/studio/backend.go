package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

// Backend runs uploads and jobs. The direct backend holds the credential
// itself; the relay client leaves it to the relay.
type Backend interface {
	Upload(ctx context.Context, file domain.File) (string, error)
	Run(ctx context.Context, req jobs.Request) (jobs.Output, error)
	CheckToken(ctx context.Context) error
}

// DirectBackend talks to Replicate with a client-held token.
type DirectBackend struct {
	client *replicate.Client
	runner *jobs.Runner
	token  string
}

// NewDirectBackend wires a replicate client and runner around token.
func NewDirectBackend(client *replicate.Client, runner *jobs.Runner, token string) (*DirectBackend, error) {
	if client == nil || runner == nil {
		return nil, errors.New("studio: client and runner are required")
	}
	return &DirectBackend{client: client, runner: runner, token: strings.TrimSpace(token)}, nil
}

func (b *DirectBackend) Upload(ctx context.Context, file domain.File) (string, error) {
	obj, err := b.client.UploadFile(ctx, b.token, file)
	if err != nil {
		return "", err
	}
	return obj.URLs.Get, nil
}

func (b *DirectBackend) Run(ctx context.Context, req jobs.Request) (jobs.Output, error) {
	job, err := b.runner.SubmitAndWait(ctx, b.token, req)
	if err != nil {
		return jobs.Output{}, err
	}
	return job.Output, nil
}

func (b *DirectBackend) CheckToken(ctx context.Context) error {
	if _, err := b.client.Account(ctx, b.token); err != nil {
		var apiErr *replicate.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
			return &domain.AuthError{Reason: "token rejected by provider"}
		}
		return fmt.Errorf("studio: check token: %w", err)
	}
	return nil
}

var _ Backend = (*DirectBackend)(nil)
