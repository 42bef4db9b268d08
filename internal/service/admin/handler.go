package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/dto"
	"github.com/oggyb/kinnect/internal/httpx"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

type statusBody struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// Handler exposes the admin Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) UpsertSubAdmin(w http.ResponseWriter, r *http.Request) {
	var in SubAdminInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	sub, created, err := h.svc.UpsertSubAdmin(r.Context(), httpx.CallerID(r), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, sub)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pagination.ClampPage(httpx.QueryInt(r, "page", 1))
	limit := pagination.ClampLimit(httpx.QueryInt(r, "limit", 0))
	users, total, err := h.svc.ListUsers(r.Context(), r.URL.Query().Get("q"), page, limit)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[dto.Profile]{Items: users, Total: total, Page: page, Limit: limit})
}

func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	p, err := h.svc.SetUserActive(r.Context(), chi.URLParam(r, "id"), *body.IsActive)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
