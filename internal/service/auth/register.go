package auth

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/oggyb/kinnect/internal/app"
)

// Registrar ties the auth routes into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the auth service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register mounts OTP login per role plus token refresh and logout.
// OTP endpoints are rate limited per client IP.
func (r *Registrar) Register(router chi.Router) {
	h := NewHandler(NewAuthService(r.appCtx))

	router.Route("/{role:admin|subadmin|user}/auth/otp", func(otp chi.Router) {
		if n := r.appCtx.Config.OTP.PerMinute; n > 0 {
			otp.Use(httprate.LimitByIP(n, time.Minute))
		}
		otp.Post("/send", h.SendOTP)
		otp.Post("/resend", h.ResendOTP)
		otp.Post("/verify", h.VerifyOTP)
	})

	router.Post("/auth/refresh", h.Refresh)
	router.Post("/auth/logout", h.Logout)
}
