package profile

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties the profile routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewProfileService(r.appCtx))

	router.Group(func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleUser))

		g.Get("/users/me", h.GetMe)
		g.Patch("/users/me", h.UpdateMe)
		g.Put("/users/me/avatar", h.UploadAvatar)
		g.Get("/users/{id}", h.GetUser)
	})
}
