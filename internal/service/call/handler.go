package call

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/dto"
	"github.com/oggyb/kinnect/internal/httpx"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

// Handler exposes the call Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) LogCall(w http.ResponseWriter, r *http.Request) {
	var e Entry
	if err := httpx.Decode(r, &e); err != nil {
		httpx.Error(w, r, err)
		return
	}
	c, err := h.svc.LogCall(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"), e)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	page := pagination.ClampPage(httpx.QueryInt(r, "page", 1))
	limit := pagination.ClampLimit(httpx.QueryInt(r, "limit", 0))
	calls, total, err := h.svc.ListCalls(r.Context(), httpx.CallerID(r), page, limit)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[dto.Call]{Items: calls, Total: total, Page: page, Limit: limit})
}

func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCall(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
