package social

import (
	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

// Registrar ties the social routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the social service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register mounts follow requests, the follow graph and blocking. Every route needs a user token.
func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewSocialService(r.appCtx))

	router.Group(func(g chi.Router) {
		g.Use(httpx.Authenticate(r.appCtx.Tokens, db.RoleUser))

		g.Route("/follow-requests", func(fr chi.Router) {
			fr.Post("/", h.SendFollowRequest)
			fr.Get("/", h.ListFollowRequests)
			fr.Post("/{id}/accept", h.AcceptFollowRequest)
			fr.Post("/{id}/reject", h.RejectFollowRequest)
			fr.Delete("/{id}", h.CancelFollowRequest)
		})

		g.Get("/users/{id}/followers", h.ListFollowers)
		g.Get("/users/{id}/following", h.ListFollowing)
		g.Get("/users/{id}/counts", h.Counts)
		g.Delete("/users/{id}/follow", h.Unfollow)
		g.Delete("/users/{id}/follower", h.RemoveFollower)
		g.Post("/users/{id}/block", h.Block)
		g.Delete("/users/{id}/block", h.Unblock)
		g.Get("/blocks", h.ListBlocked)
	})
}
