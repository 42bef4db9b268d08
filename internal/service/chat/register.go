package chat

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties the chat routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register mounts chat creation, listing and the per-participant settings.
func (r *Registrar) Register(router chi.Router) {
	svc := NewChatService(r.appCtx)
	h := NewHandler(svc)

	router.Group(func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleUser))

		g.Get("/users/{id}/can-chat", h.CanChat)

		g.Post("/chats", h.CreateOrGetChat)
		g.Get("/chats", h.ListChats)
		g.Get("/chats/{id}", h.GetChat)
		g.Delete("/chats/{id}", h.DeleteChat)
		g.Post("/chats/{id}/archive", settingsAction(svc.ArchiveChat))
		g.Post("/chats/{id}/unarchive", settingsAction(svc.UnarchiveChat))
		g.Post("/chats/{id}/pin", settingsAction(svc.PinChat))
		g.Post("/chats/{id}/unpin", settingsAction(svc.UnpinChat))
		g.Post("/chats/{id}/mute", h.Mute)
		g.Post("/chats/{id}/unmute", settingsAction(svc.UnmuteChat))
		g.Post("/chats/{id}/read", h.MarkRead)
	})
}
