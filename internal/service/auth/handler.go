package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/httpx"
)

type otpRequest struct {
	CountryCode string `json:"countryCode" validate:"required,country_code"`
	Phone       string `json:"phone" validate:"required,phone"`
}

type verifyRequest struct {
	CountryCode string `json:"countryCode" validate:"required,country_code"`
	Phone       string `json:"phone" validate:"required,phone"`
	OTP         string `json:"otp" validate:"required,otp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Handler exposes the auth Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func roleParam(r *http.Request) db.Role {
	return db.Role(chi.URLParam(r, "role"))
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.svc.RequestOTP(r.Context(), roleParam(r), req.CountryCode, req.Phone)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.svc.ResendOTP(r.Context(), roleParam(r), req.CountryCode, req.Phone)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	session, err := h.svc.VerifyOTP(r.Context(), roleParam(r), req.CountryCode, req.Phone, req.OTP)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	session, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.NoContent(w)
}
