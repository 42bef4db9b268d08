package message

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties the message routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewMessageService(r.appCtx))

	router.Group(func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleUser))

		g.Get("/chats/{id}/messages", h.ListMessages)
		g.Post("/chats/{id}/messages", h.SendMessage)
		g.Post("/chats/{id}/attachments", h.UploadAttachment)

		g.Route("/messages/{id}", func(m chi.Router) {
			m.Patch("/", h.EditMessage)
			m.Delete("/", h.DeleteMessage)
			m.Put("/reactions", h.React)
			m.Delete("/reactions", h.Unreact)
		})
	})
}
