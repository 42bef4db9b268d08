package messagerequest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/httpx"
	"github.com/oggyb/kinnect/internal/service/social"
)

type sendBody struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	Message string `json:"message" validate:"max=1000"`
}

// Handler exposes the message request Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) SendMessageRequest(w http.ResponseWriter, r *http.Request) {
	var body sendBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	req, err := h.svc.SendMessageRequest(r.Context(), httpx.CallerID(r), body.UserID, body.Message)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) ListMessageRequests(w http.ResponseWriter, r *http.Request) {
	dir := social.Direction(r.URL.Query().Get("direction"))
	if dir == "" {
		dir = social.Incoming
	}
	reqs, err := h.svc.ListMessageRequests(r.Context(), httpx.CallerID(r), dir)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reqs)
}

func (h *Handler) AcceptMessageRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.AcceptMessageRequest(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) RejectMessageRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.RejectMessageRequest(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}
