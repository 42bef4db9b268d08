package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties the admin routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register mounts the admin routes. Managing moderators is admin only; user status is
// open to sub-admins as well.
func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewAdminService(r.appCtx))

	router.With(httpx.Authenticate(r.appCtx.Tokens, db.RoleAdmin)).
		Put("/admin/subadmins", h.UpsertSubAdmin)

	router.Group(func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleAdmin, db.RoleSubAdmin))
		g.Get("/admin/users", h.ListUsers)
		g.Patch("/admin/users/{id}/status", h.SetUserActive)
	})
}
