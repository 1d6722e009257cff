package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/jobs"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

type runResponse struct {
	Output     jobs.Output     `json:"output"`
	Prediction json.RawMessage `json:"prediction"`
}

// Run submits a job and holds the request open until it finishes.
func (a *App) Run(w http.ResponseWriter, r *http.Request) {
	token, ok := a.credential(w, r)
	if !ok {
		return
	}
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if err := req.Validate(); err != nil {
		a.error(w, r, http.StatusBadRequest, msgInvalidRun)
		return
	}

	job, err := a.Runner.SubmitAndWait(r.Context(), token, req)
	if err != nil {
		a.runError(w, r, err)
		return
	}
	a.log(r).Info().Str("prediction_id", job.ID).Str("model", job.Ref.String()).Msg("run finished")
	a.json(w, r, http.StatusOK, runResponse{Output: job.Output, Prediction: job.Prediction.Raw})
}

func (a *App) runError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		authErr    *domain.AuthError
		subErr     *domain.SubmissionError
		timeoutErr *domain.TimeoutError
		jobErr     *domain.JobError
		apiErr     *replicate.APIError
	)
	switch {
	case errors.As(err, &authErr):
		a.error(w, r, http.StatusUnauthorized, msgMissingToken)
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, r, http.StatusBadRequest, msgInvalidRun)
	case errors.As(err, &subErr):
		a.raw(w, subErr.StatusCode, subErr.Body)
	case errors.As(err, &timeoutErr):
		a.log(r).Warn().Str("prediction_id", timeoutErr.PredictionID).Str("status_url", timeoutErr.StatusURL).Msg("run timed out")
		a.error(w, r, http.StatusGatewayTimeout, msgTimeout)
	case errors.As(err, &jobErr):
		body := jobErr.Prediction
		if len(body) == 0 {
			body, _ = json.Marshal(map[string]string{"id": jobErr.PredictionID, "status": jobErr.Status, "error": jobErr.Message})
		}
		a.raw(w, http.StatusInternalServerError, body)
	case errors.As(err, &apiErr):
		a.raw(w, apiErr.StatusCode, apiErr.Body)
	default:
		a.log(r).Error().Err(err).Msg("run failed")
		a.json(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
