package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

// Prediction passes a status fetch for a known id through to the provider.
func (a *App) Prediction(w http.ResponseWriter, r *http.Request) {
	token, ok := a.credential(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	pred, err := a.Provider.GetPredictionByID(r.Context(), token, id)
	if err != nil {
		var apiErr *replicate.APIError
		if errors.As(err, &apiErr) {
			a.raw(w, apiErr.StatusCode, apiErr.Body)
			return
		}
		a.log(r).Error().Err(err).Str("prediction_id", id).Msg("prediction fetch failed")
		a.json(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	a.raw(w, http.StatusOK, pred.Raw)
}
