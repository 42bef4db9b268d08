package social

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/httpx"
)

type followRequestBody struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	Message string `json:"message" validate:"max=500"`
}

// Handler exposes the social Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) SendFollowRequest(w http.ResponseWriter, r *http.Request) {
	var body followRequestBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	req, err := h.svc.SendFollowRequest(r.Context(), httpx.CallerID(r), body.UserID, body.Message)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) ListFollowRequests(w http.ResponseWriter, r *http.Request) {
	dir := Direction(r.URL.Query().Get("direction"))
	if dir == "" {
		dir = Incoming
	}
	reqs, err := h.svc.ListFollowRequests(r.Context(), httpx.CallerID(r), dir)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reqs)
}

func (h *Handler) AcceptFollowRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.AcceptFollowRequest(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) RejectFollowRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.RejectFollowRequest(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) CancelFollowRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelFollowRequest(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unfollow(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) RemoveFollower(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveFollower(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) ListFollowers(w http.ResponseWriter, r *http.Request) {
	items, next, err := h.svc.ListFollowers(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"),
		httpx.QueryToken(r), httpx.QueryInt(r, "limit", 0))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.CursorPage[FollowEntry]{Items: items, NextPaginationToken: next})
}

func (h *Handler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	items, next, err := h.svc.ListFollowing(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"),
		httpx.QueryToken(r), httpx.QueryInt(r, "limit", 0))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.CursorPage[FollowEntry]{Items: items, NextPaginationToken: next})
}

func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Counts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counts)
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Block(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unblock(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.svc.ListBlocked(r.Context(), httpx.CallerID(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, blocked)
}
