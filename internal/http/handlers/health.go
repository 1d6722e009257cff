package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, r, http.StatusOK, map[string]bool{"ok": true})
}
