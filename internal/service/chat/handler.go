package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/dto"
	"github.com/oggyb/kinnect/internal/httpx"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

type createChatBody struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type muteBody struct {
	Until *time.Time `json:"mutedUntil"`
}

// Handler exposes the chat Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) CreateOrGetChat(w http.ResponseWriter, r *http.Request) {
	var body createChatBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	chat, err := h.svc.CreateOrGetChat(r.Context(), httpx.CallerID(r), body.UserID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chat)
}

func (h *Handler) CanChat(w http.ResponseWriter, r *http.Request) {
	elig, err := h.svc.CanUsersChat(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, elig)
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	page := pagination.ClampPage(httpx.QueryInt(r, "page", 1))
	limit := pagination.ClampLimit(httpx.QueryInt(r, "limit", 0))
	chats, total, err := h.svc.ListChats(r.Context(), httpx.CallerID(r), httpx.QueryBool(r, "archived"), page, limit)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[dto.Chat]{Items: chats, Total: total, Page: page, Limit: limit})
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.svc.GetChat(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chat)
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteChat(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) Mute(w http.ResponseWriter, r *http.Request) {
	var body muteBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, r, err)
		return
	}
	settings, err := h.svc.MuteChat(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"), body.Until)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkChatRead(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"marked": n})
}

// settingsAction adapts a settings mutation that needs only the caller and chat id.
func settingsAction(fn func(ctx context.Context, userID, chatID string) (*dto.ChatSettings, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := fn(r.Context(), httpx.CallerID(r), chi.URLParam(r, "id"))
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, settings)
	}
}
