package handlers

import (
	"errors"
	"net/http"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/middleware"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

// CheckToken validates the resolved credential against the provider account
// endpoint. Rejections are relayed with the provider's status and body.
func (a *App) CheckToken(w http.ResponseWriter, r *http.Request) {
	token, ok := a.tokenOrOKFalse(w, r)
	if !ok {
		return
	}
	if _, err := a.Provider.Account(r.Context(), token); err != nil {
		var apiErr *replicate.APIError
		if errors.As(err, &apiErr) {
			body := apiErr.Body
			if len(body) == 0 {
				body = []byte(message(r.Context(), msgInvalidToken))
			}
			a.raw(w, apiErr.StatusCode, body)
			return
		}
		a.log(r).Error().Err(err).Msg("check token failed")
		a.json(w, r, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	a.json(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (a *App) tokenOrOKFalse(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, _ := middleware.CredentialFromContext(r.Context())
	if token == "" {
		a.json(w, r, http.StatusUnauthorized, map[string]any{"ok": false, "error": message(r.Context(), msgMissingToken)})
		return "", false
	}
	return token, true
}
