package messagerequest

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties the message request routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewMessageRequestService(r.appCtx))

	router.Route("/message-requests", func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleUser))
		g.Post("/", h.SendMessageRequest)
		g.Get("/", h.ListMessageRequests)
		g.Post("/{id}/accept", h.AcceptMessageRequest)
		g.Post("/{id}/reject", h.RejectMessageRequest)
	})
}
