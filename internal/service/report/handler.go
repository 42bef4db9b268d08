package report

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	"github.com/oggyb/kinnect/internal/httpx"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

type reportBody struct {
	Reason      string `json:"reason" validate:"required,max=64"`
	Description string `json:"description" validate:"max=1000"`
}

type statusBody struct {
	Status db.ReportStatus `json:"status" validate:"required,oneof=pending resolved dismissed"`
	Notes  string          `json:"adminNotes" validate:"max=1000"`
}

// Handler exposes the report Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) ReportUser(w http.ResponseWriter, r *http.Request) {
	var body reportBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	rep, err := h.svc.ReportUser(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"), body.Reason, body.Description)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rep)
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	page := pagination.ClampPage(httpx.QueryInt(r, "page", 1))
	limit := pagination.ClampLimit(httpx.QueryInt(r, "limit", 0))
	items, total, err := h.svc.ListReports(r.Context(), db.ReportStatus(r.URL.Query().Get("status")), page, limit)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[dto.Report]{Items: items, Total: total, Page: page, Limit: limit})
}

func (h *Handler) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	rep, err := h.svc.UpdateReportStatus(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"), body.Status, body.Notes)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}
