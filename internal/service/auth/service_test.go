package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	t.Helper()
	fx := testutil.New(t)
	svc := NewAuthService(fx.App)
	svc.hashCost = bcrypt.MinCost
	return svc, fx
}

func TestUserOTPLoginFlow(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)

	res, err := svc.RequestOTP(ctx, db.RoleUser, "+44", "7700900123")
	require.NoError(t, err)
	assert.Equal(t, fx.Clock.Now().Add(5*time.Minute), res.ExpiresAt)
	assert.Equal(t, 60, res.CooldownSeconds)

	session, err := svc.VerifyOTP(ctx, db.RoleUser, "+44", "7700900123", "123456")
	require.NoError(t, err)
	assert.Equal(t, db.RoleUser, session.Actor.Role)
	assert.True(t, session.Actor.IsVerified)
	assert.NotEmpty(t, session.Tokens.AccessToken)
	assert.NotEmpty(t, session.Tokens.RefreshToken)

	var u db.User
	require.NoError(t, fx.DB.First(&u, "id = ?", session.Actor.ID).Error)
	assert.True(t, u.IsVerified)
	assert.Nil(t, u.OTPHash)
	assert.Nil(t, u.OTPExpiresAt)
	assert.Nil(t, u.OTPLastSentAt)
	assert.NotNil(t, u.LastLoginAt)

	claims, err := fx.App.Tokens.ParseAccess(session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, "user", claims.Role)

	// the code is single use: a second verify finds nothing and changes nothing
	_, err = svc.VerifyOTP(ctx, db.RoleUser, "+44", "7700900123", "123456")
	assert.ErrorIs(t, err, ErrOTPMissing)

	var again db.User
	require.NoError(t, fx.DB.First(&again, "id = ?", u.ID).Error)
	assert.Equal(t, u.LastLoginAt.UTC(), again.LastLoginAt.UTC())
	assert.True(t, again.IsVerified)
}

func TestVerifyOTPErrors(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)

	_, err := svc.VerifyOTP(ctx, db.RoleUser, "+44", "7700900200", "123456")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.RequestOTP(ctx, db.RoleUser, "+44", "7700900200")
	require.NoError(t, err)

	_, err = svc.VerifyOTP(ctx, db.RoleUser, "+44", "7700900200", "000000")
	assert.ErrorIs(t, err, ErrOTPInvalid)

	// a wrong guess does not burn the code
	fx.Clock.Advance(4 * time.Minute)
	_, err = svc.VerifyOTP(ctx, db.RoleUser, "+44", "7700900200", "123456")
	require.NoError(t, err)

	fx.Clock.Advance(2 * time.Minute)
	fx.Redis.FastForward(2 * time.Minute)
	_, err = svc.RequestOTP(ctx, db.RoleUser, "+44", "7700900200")
	require.NoError(t, err)

	fx.Clock.Advance(5 * time.Minute)
	_, err = svc.VerifyOTP(ctx, db.RoleUser, "+44", "7700900200", "123456")
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestRequestOTPCooldown(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)

	_, err := svc.RequestOTP(ctx, db.RoleUser, "+44", "7700900300")
	require.NoError(t, err)

	_, err = svc.ResendOTP(ctx, db.RoleUser, "+44", "7700900300")
	assert.ErrorIs(t, err, ErrOTPCooldown)

	fx.Clock.Advance(61 * time.Second)
	fx.Redis.FastForward(61 * time.Second)

	_, err = svc.ResendOTP(ctx, db.RoleUser, "+44", "7700900300")
	require.NoError(t, err)
}

func TestRequestOTPCooldownSurvivesCacheLoss(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)

	_, err := svc.RequestOTP(ctx, db.RoleUser, "+44", "7700900301")
	require.NoError(t, err)

	fx.Redis.FlushAll()

	_, err = svc.ResendOTP(ctx, db.RoleUser, "+44", "7700900301")
	assert.ErrorIs(t, err, ErrOTPCooldown)
}

func TestResendRequiresExistingAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testutil.Ctx(t)

	_, err := svc.ResendOTP(ctx, db.RoleUser, "+44", "7700900400")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAdminAndSubAdminProvisioning(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)

	// bootstrap admin from ADMIN_PHONES
	_, err := svc.RequestOTP(ctx, db.RoleAdmin, "+1", "0000000001")
	require.NoError(t, err)
	session, err := svc.VerifyOTP(ctx, db.RoleAdmin, "+1", "0000000001", "123456")
	require.NoError(t, err)
	assert.Equal(t, db.RoleAdmin, session.Actor.Role)

	_, err = svc.RequestOTP(ctx, db.RoleAdmin, "+1", "0000000002")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.RequestOTP(ctx, db.RoleSubAdmin, "+1", "0000000003")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	sub := &db.SubAdmin{Name: "mod", CreatedBy: session.Actor.ID}
	sub.CountryCode = "+1"
	sub.Phone = "0000000003"
	sub.IsActive = true
	require.NoError(t, fx.DB.Create(sub).Error)

	_, err = svc.RequestOTP(ctx, db.RoleSubAdmin, "+1", "0000000003")
	require.NoError(t, err)

	_, err = svc.RequestOTP(ctx, db.Role("root"), "+1", "0000000003")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestDisabledAccount(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := testutil.Ctx(t)
	u := fx.User(t, "dora")
	fx.Deactivate(t, u.ID)

	_, err := svc.RequestOTP(ctx, db.RoleUser, u.CountryCode, u.Phone)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestRefreshRotationAndLogout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testutil.Ctx(t)

	_, err := svc.RequestOTP(ctx, db.RoleUser, "+44", "7700900500")
	require.NoError(t, err)
	session, err := svc.VerifyOTP(ctx, db.RoleUser, "+44", "7700900500", "123456")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	_, err = svc.Refresh(ctx, session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	require.NoError(t, svc.Logout(ctx, rotated.Tokens.RefreshToken))
	_, err = svc.Refresh(ctx, rotated.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	_, err = svc.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestHandlerOTPRoutes(t *testing.T) {
	fx := testutil.New(t)
	router := chi.NewRouter()
	NewRegistrar(fx.App).Register(router)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/user/auth/otp/send", `{"countryCode":"+44","phone":"7700900600"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post("/user/auth/otp/send", `{"countryCode":"44","phone":"12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	rec = post("/user/auth/otp/resend", `{"countryCode":"+44","phone":"7700900600"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "OTP_COOLDOWN")

	rec = post("/user/auth/otp/verify", `{"countryCode":"+44","phone":"7700900600","otp":"999999"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "OTP_INVALID")

	rec = post("/user/auth/otp/verify", `{"countryCode":"+44","phone":"7700900600","otp":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Tokens.AccessToken)

	rec = post("/root/auth/otp/send", `{"countryCode":"+44","phone":"7700900600"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
