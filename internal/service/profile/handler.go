package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/httpx"
	"github.com/oggyb/kinnect/internal/storage"
)

// Handler exposes the profile Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetMe(r.Context(), httpx.CallerID(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var in Update
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	p, err := h.svc.UpdateMe(r.Context(), httpx.CallerID(r), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// UploadAvatar expects a multipart form with the image in the "avatar" field.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
		httpx.Error(w, r, svcErr.InvalidArgument("INVALID_UPLOAD", "expected a multipart form under the upload limit"))
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		httpx.Error(w, r, svcErr.InvalidArgument("AVATAR_MISSING", "avatar file is required"))
		return
	}
	defer file.Close()

	p, err := h.svc.UploadAvatar(r.Context(), httpx.CallerID(r), header.Filename,
		header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetUser(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
