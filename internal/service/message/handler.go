package message

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/httpx"
	"github.com/oggyb/kinnect/internal/storage"
)

type editBody struct {
	Content string `json:"content" validate:"required"`
}

type reactBody struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// Handler exposes the message Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var d Draft
	if err := httpx.Decode(r, &d); err != nil {
		httpx.Error(w, r, err)
		return
	}
	m, err := h.svc.SendMessage(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"), d)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

// UploadAttachment expects a multipart form with the file in the "file" field.
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
		httpx.Error(w, r, svcErr.InvalidArgument("INVALID_UPLOAD", "expected a multipart form under the upload limit"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Error(w, r, svcErr.InvalidArgument("FILE_MISSING", "file is required"))
		return
	}
	defer file.Close()

	a, err := h.svc.UploadAttachment(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"),
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, next, err := h.svc.ListMessages(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"),
		httpx.QueryToken(r), httpx.QueryInt(r, "limit", 0))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.CursorPage[dto.Message]{Items: msgs, NextPaginationToken: next})
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var body editBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	m, err := h.svc.EditMessage(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"), body.Content)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMessage(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) React(w http.ResponseWriter, r *http.Request) {
	var body reactBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	m, err := h.svc.React(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"), body.Emoji)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) Unreact(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Unreact(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
