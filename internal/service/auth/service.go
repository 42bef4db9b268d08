package auth

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/metrics"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/token"
)

var (
	ErrOTPMissing      = svcErr.InvalidArgument("OTP_MISSING", "No OTP requested for this number")
	ErrOTPInvalid      = svcErr.InvalidArgument("OTP_INVALID", "Invalid OTP")
	ErrOTPExpired      = svcErr.InvalidArgument("OTP_EXPIRED", "OTP expired")
	ErrOTPCooldown     = svcErr.RateLimited("OTP_COOLDOWN", "Please wait before requesting another OTP")
	ErrAccountDisabled = svcErr.Forbidden("ACCOUNT_DISABLED", "Account is disabled")
	ErrAccountNotFound = svcErr.NotFound("ACCOUNT_NOT_FOUND", "Account not found")
	ErrInvalidRole     = svcErr.InvalidArgument("INVALID_ROLE", "Unknown role")
	ErrRefreshInvalid  = svcErr.Unauthorized("REFRESH_INVALID", "Invalid or expired refresh token")
)

// OTPResult tells the caller when the issued code stops working.
type OTPResult struct {
	ExpiresAt       time.Time `json:"expiresAt"`
	CooldownSeconds int       `json:"cooldownSeconds"`
}

// Session is returned after a successful verification or refresh.
type Session struct {
	Actor  dto.Actor  `json:"actor"`
	Tokens token.Pair `json:"tokens"`
}

// Service implements phone-OTP login for admins, sub-admins and users.
//
// OTP delivery is mocked: every code is the configured static code, stored only as a bcrypt hash.
type Service struct {
	appCtx    *app.AppContext
	admins    *repository.ActorRepository[db.Admin, *db.Admin]
	subAdmins *repository.ActorRepository[db.SubAdmin, *db.SubAdmin]
	users     *repository.ActorRepository[db.User, *db.User]
	hashCost  int
}

// NewAuthService creates the service with repositories bound to the AppContext DB.
func NewAuthService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		admins:    repository.NewActorRepository[db.Admin](appCtx.DB),
		subAdmins: repository.NewActorRepository[db.SubAdmin](appCtx.DB),
		users:     repository.NewActorRepository[db.User](appCtx.DB),
		hashCost:  bcrypt.DefaultCost,
	}
}

// RequestOTP issues a fresh code for (countryCode, phone).
//
// Behavior:
//   - Users are created on first request.
//   - Admins are created only when the number is listed in ADMIN_PHONES.
//   - Sub-admins must already exist (admins create them).
//   - A second request within the cooldown window fails with OTP_COOLDOWN.
func (s *Service) RequestOTP(ctx context.Context, role db.Role, countryCode, phone string) (*OTPResult, error) {
	s.appCtx.Logger.Debug("RequestOTP called", "role", role, "country_code", countryCode)

	switch role {
	case db.RoleAdmin:
		return sendOTP(ctx, s, s.admins, role, countryCode, phone, s.isBootstrapAdmin(countryCode, phone))
	case db.RoleSubAdmin:
		return sendOTP(ctx, s, s.subAdmins, role, countryCode, phone, false)
	case db.RoleUser:
		return sendOTP(ctx, s, s.users, role, countryCode, phone, true)
	}
	return nil, ErrInvalidRole
}

// ResendOTP behaves like RequestOTP but never creates an account.
func (s *Service) ResendOTP(ctx context.Context, role db.Role, countryCode, phone string) (*OTPResult, error) {
	s.appCtx.Logger.Debug("ResendOTP called", "role", role, "country_code", countryCode)

	switch role {
	case db.RoleAdmin:
		return sendOTP(ctx, s, s.admins, role, countryCode, phone, false)
	case db.RoleSubAdmin:
		return sendOTP(ctx, s, s.subAdmins, role, countryCode, phone, false)
	case db.RoleUser:
		return sendOTP(ctx, s, s.users, role, countryCode, phone, false)
	}
	return nil, ErrInvalidRole
}

// VerifyOTP checks code against the stored hash and, on success, marks the actor
// verified, clears every OTP field and issues a token pair.
//
// Errors:
//   - OTP_MISSING when no code is on record (never requested, or already used).
//   - OTP_EXPIRED once the TTL has passed.
//   - OTP_INVALID on mismatch.
func (s *Service) VerifyOTP(ctx context.Context, role db.Role, countryCode, phone, code string) (*Session, error) {
	s.appCtx.Logger.Debug("VerifyOTP called", "role", role, "country_code", countryCode)

	var (
		session *Session
		err     error
	)
	switch role {
	case db.RoleAdmin:
		session, err = verifyOTP(ctx, s, s.admins, role, countryCode, phone, code)
	case db.RoleSubAdmin:
		session, err = verifyOTP(ctx, s, s.subAdmins, role, countryCode, phone, code)
	case db.RoleUser:
		session, err = verifyOTP(ctx, s, s.users, role, countryCode, phone, code)
	default:
		return nil, ErrInvalidRole
	}

	outcome := "success"
	if err != nil {
		outcome = svcErr.As(err).Code
	}
	metrics.OTPVerifyTotal.WithLabelValues(string(role), outcome).Inc()
	return session, err
}

// Refresh rotates a refresh token: the presented one is consumed and a new pair is issued.
// A refresh token can be used once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.appCtx.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrRefreshInvalid
	}

	subject, err := s.appCtx.RedisCache.ConsumeRefresh(ctx, claims.ID)
	if err != nil {
		s.appCtx.Logger.Error("ConsumeRefresh failed", "err", err)
		return nil, svcErr.Internal(err)
	}
	if subject != claims.Subject {
		return nil, ErrRefreshInvalid
	}

	role := db.Role(claims.Role)
	var identity *db.Identity
	switch role {
	case db.RoleAdmin:
		identity, err = findIdentity(ctx, s.admins, claims.Subject)
	case db.RoleSubAdmin:
		identity, err = findIdentity(ctx, s.subAdmins, claims.Subject)
	case db.RoleUser:
		identity, err = findIdentity(ctx, s.users, claims.Subject)
	default:
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, svcErr.Map(err)
	}
	if !identity.IsActive {
		return nil, ErrAccountDisabled
	}

	pair, err := s.issue(ctx, identity.ID, role)
	if err != nil {
		return nil, err
	}
	return &Session{Actor: dto.NewActor(role, identity), Tokens: pair}, nil
}

// Logout revokes a refresh token. Unknown or already used tokens are not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.appCtx.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}
	if _, err := s.appCtx.RedisCache.ConsumeRefresh(ctx, claims.ID); err != nil {
		return svcErr.Internal(err)
	}
	return nil
}

func (s *Service) isBootstrapAdmin(countryCode, phone string) bool {
	return slices.Contains(s.appCtx.Config.App.AdminPhones, countryCode+phone)
}

// checkCooldown rejects a send while the previous code is younger than the cooldown.
// The DB timestamp covers single instances; the Redis SET NX key makes the window
// atomic across instances. A Redis failure falls back to the DB check alone.
func (s *Service) checkCooldown(ctx context.Context, role db.Role, id *db.Identity, now time.Time) error {
	cooldown := s.appCtx.Config.OTP.Cooldown
	if id.OTPLastSentAt != nil && now.Sub(*id.OTPLastSentAt) < cooldown {
		return ErrOTPCooldown
	}

	key := s.appCtx.RedisCache.KeyForOTPCooldown(string(role), id.CountryCode, id.Phone)
	acquired, err := s.appCtx.RedisCache.AcquireCooldown(ctx, key, cooldown)
	if err != nil {
		s.appCtx.Logger.Warn("otp cooldown check fell back to db", "err", err)
		return nil
	}
	if !acquired {
		return ErrOTPCooldown
	}
	return nil
}

func (s *Service) issue(ctx context.Context, subject string, role db.Role) (token.Pair, error) {
	pair, err := s.appCtx.Tokens.IssuePair(subject, string(role))
	if err != nil {
		s.appCtx.Logger.Error("IssuePair failed", "err", err)
		return token.Pair{}, svcErr.Internal(err)
	}
	if err := s.appCtx.RedisCache.StoreRefresh(ctx, pair.RefreshID, subject, s.appCtx.Tokens.RefreshTTL()); err != nil {
		s.appCtx.Logger.Error("StoreRefresh failed", "err", err)
		return token.Pair{}, svcErr.Internal(err)
	}
	return pair, nil
}

func sendOTP[T any, PT repository.Actor[T]](
	ctx context.Context,
	s *Service,
	repo *repository.ActorRepository[T, PT],
	role db.Role,
	countryCode, phone string,
	create bool,
) (*OTPResult, error) {
	var (
		actor PT
		err   error
	)
	if create {
		actor, _, err = repo.FindOrCreateByPhone(ctx, countryCode, phone)
	} else {
		actor, err = repo.FindByPhone(ctx, countryCode, phone)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		s.appCtx.Logger.Error("actor lookup failed", "role", role, "err", err)
		return nil, svcErr.Map(err)
	}

	id := actor.GetIdentity()
	if !id.IsActive {
		return nil, ErrAccountDisabled
	}

	now := s.appCtx.Now()
	if err := s.checkCooldown(ctx, role, id, now); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.appCtx.Config.OTP.StaticCode), s.hashCost)
	if err != nil {
		return nil, svcErr.Internal(err)
	}

	expiresAt := now.Add(s.appCtx.Config.OTP.TTL)
	if err := repo.SaveOTP(ctx, actor, string(hash), expiresAt, now); err != nil {
		s.appCtx.Logger.Error("SaveOTP failed", "role", role, "err", err)
		return nil, svcErr.Map(err)
	}

	metrics.OTPSentTotal.WithLabelValues(string(role)).Inc()
	s.appCtx.Logger.Debug("otp issued", "role", role, "actor", id.ID, "expires_at", expiresAt)

	return &OTPResult{
		ExpiresAt:       expiresAt,
		CooldownSeconds: int(s.appCtx.Config.OTP.Cooldown.Seconds()),
	}, nil
}

func verifyOTP[T any, PT repository.Actor[T]](
	ctx context.Context,
	s *Service,
	repo *repository.ActorRepository[T, PT],
	role db.Role,
	countryCode, phone, code string,
) (*Session, error) {
	actor, err := repo.FindByPhone(ctx, countryCode, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, svcErr.Map(err)
	}

	id := actor.GetIdentity()
	if !id.IsActive {
		return nil, ErrAccountDisabled
	}
	if id.OTPHash == nil || id.OTPExpiresAt == nil {
		return nil, ErrOTPMissing
	}

	now := s.appCtx.Now()
	if !now.Before(*id.OTPExpiresAt) {
		return nil, ErrOTPExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(*id.OTPHash), []byte(code)) != nil {
		return nil, ErrOTPInvalid
	}

	if err := repo.MarkVerified(ctx, actor, now); err != nil {
		s.appCtx.Logger.Error("MarkVerified failed", "role", role, "err", err)
		return nil, svcErr.Map(err)
	}

	pair, err := s.issue(ctx, id.ID, role)
	if err != nil {
		return nil, err
	}
	return &Session{Actor: dto.NewActor(role, id), Tokens: pair}, nil
}

func findIdentity[T any, PT repository.Actor[T]](
	ctx context.Context,
	repo *repository.ActorRepository[T, PT],
	id string,
) (*db.Identity, error) {
	actor, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return actor.GetIdentity(), nil
}
