package report

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties reporting and moderation routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register mounts the user-facing report route and the moderator queue.
func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewReportService(r.appCtx))

	router.With(httpx.Authenticate(r.appCtx.Tokens, db.RoleUser)).
		Post("/users/{id}/report", h.ReportUser)

	router.Route("/admin/reports", func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleAdmin, db.RoleSubAdmin))
		g.Get("/", h.ListReports)
		g.Patch("/{id}", h.UpdateReportStatus)
	})
}
