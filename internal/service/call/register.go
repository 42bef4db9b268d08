package call

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties the call history routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewCallService(r.appCtx))

	router.Group(func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleUser))
		g.Post("/chats/{id}/calls", h.LogCall)
		g.Get("/calls", h.ListCalls)
		g.Get("/calls/{id}", h.GetCall)
	})
}
