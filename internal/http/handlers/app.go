package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/middleware"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

// Provider is the subset of the Replicate client the relay forwards to.
type Provider interface {
	Account(ctx context.Context, token string) (*replicate.Account, error)
	UploadFile(ctx context.Context, token string, file domain.File) (*replicate.FileObject, error)
	GetPredictionByID(ctx context.Context, token, id string) (*replicate.Prediction, error)
}

// Runner performs the submit-and-wait cycle.
type Runner interface {
	SubmitAndWait(ctx context.Context, token string, req jobs.Request) (*jobs.Job, error)
}

type App struct {
	Provider       Provider
	Runner         Runner
	Logger         *infra.Logger
	MaxUploadBytes int64
}

func NewApp(provider Provider, runner Runner, logger *infra.Logger, maxUploadBytes int64) *App {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &App{
		Provider:       provider,
		Runner:         runner,
		Logger:         infra.OrDiscard(logger),
		MaxUploadBytes: maxUploadBytes,
	}
}

func (a *App) json(w http.ResponseWriter, r *http.Request, code int, v any) {
	render.Status(r, code)
	render.JSON(w, r, v)
}

// raw relays a provider body verbatim with its status.
func (a *App) raw(w http.ResponseWriter, code int, body []byte) {
	if json.Valid(body) {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// error writes {"error": <localized message>}.
func (a *App) error(w http.ResponseWriter, r *http.Request, code int, key string) {
	a.json(w, r, code, map[string]string{"error": message(r.Context(), key)})
}

// credential returns the resolved token or writes a 401.
func (a *App) credential(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, _ := middleware.CredentialFromContext(r.Context())
	if token == "" {
		a.error(w, r, http.StatusUnauthorized, msgMissingToken)
		return "", false
	}
	return token, true
}

// log prefers the request-scoped logger set by the RequestID middleware.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.Logger
}
