package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

// UploadFile relays the multipart "content" field to the provider file store
// and returns the provider's JSON verbatim.
func (a *App) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, r, http.StatusRequestEntityTooLarge, msgFileTooLarge)
			return
		}
		a.error(w, r, http.StatusBadRequest, msgNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	part, header, err := r.FormFile(replicate.UploadField)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, msgNoFile)
		return
	}
	defer part.Close()
	if header.Size > a.MaxUploadBytes {
		a.error(w, r, http.StatusRequestEntityTooLarge, msgFileTooLarge)
		return
	}

	token, ok := a.credential(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(part)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, msgNoFile)
		return
	}
	file := domain.File{
		Name: header.Filename,
		MIME: strings.TrimSpace(header.Header.Get("Content-Type")),
		Data: data,
	}
	obj, err := a.Provider.UploadFile(r.Context(), token, file)
	if err != nil {
		var upErr *domain.UploadError
		if errors.As(err, &upErr) && upErr.StatusCode != 0 {
			a.raw(w, upErr.StatusCode, upErr.Body)
			return
		}
		a.log(r).Error().Err(err).Str("filename", file.Name).Msg("upload failed")
		a.json(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	a.log(r).Debug().Str("file_id", obj.ID).Int("bytes", file.Size()).Msg("file relayed")
	a.raw(w, http.StatusOK, obj.Raw)
}
