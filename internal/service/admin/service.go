// Package admin holds the platform administration operations: moderator accounts and user status.
package admin

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

// SubAdminInput describes a moderator account.
type SubAdminInput struct {
	CountryCode string `json:"countryCode" validate:"required,country_code"`
	Phone       string `json:"phone" validate:"required,phone"`
	Name        string `json:"name" validate:"required,max=100"`
	Email       string `json:"email" validate:"omitempty,email,max=128"`
	Permissions string `json:"permissions" validate:"max=255"`
}

// Service implements admin-only operations.
type Service struct {
	appCtx    *app.AppContext
	subAdmins *repository.ActorRepository[db.SubAdmin, *db.SubAdmin]
	users     *repository.ActorRepository[db.User, *db.User]
	userList  *repository.UserRepository
}

func NewAdminService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		subAdmins: repository.NewActorRepository[db.SubAdmin](appCtx.DB),
		users:     repository.NewActorRepository[db.User](appCtx.DB),
		userList:  repository.NewUserRepository(appCtx.DB),
	}
}

// UpsertSubAdmin creates the moderator registered under the phone number, or updates
// its name, email and permissions when it exists. The account is (re)activated.
func (s *Service) UpsertSubAdmin(ctx context.Context, adminID string, in SubAdminInput) (*dto.SubAdmin, bool, error) {
	s.appCtx.Logger.Debug("UpsertSubAdmin called", "admin", adminID, "country_code", in.CountryCode)

	sub, created, err := s.subAdmins.FindOrCreateByPhone(ctx, in.CountryCode, in.Phone)
	if err != nil {
		s.appCtx.Logger.Error("sub-admin lookup failed", "err", err)
		return nil, false, svcErr.Map(err)
	}

	fields := map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"email":       strings.TrimSpace(in.Email),
		"permissions": in.Permissions,
		"is_active":   true,
	}
	if created || sub.CreatedBy == "" {
		fields["created_by"] = adminID
	}
	if err := s.subAdmins.UpdateFields(ctx, sub.ID, fields); err != nil {
		return nil, false, svcErr.Map(err)
	}

	sub, err = s.subAdmins.FindByID(ctx, sub.ID)
	if err != nil {
		return nil, false, svcErr.Map(err)
	}
	out := dto.NewSubAdmin(sub)
	return &out, created, nil
}

// ListUsers pages through users matching query, newest first.
func (s *Service) ListUsers(ctx context.Context, query string, page, limit int) ([]dto.Profile, int64, error) {
	users, total, err := s.userList.List(ctx, query, pagination.ClampPage(page), pagination.ClampLimit(limit))
	if err != nil {
		return nil, 0, svcErr.Map(err)
	}
	out := make([]dto.Profile, 0, len(users))
	for i := range users {
		out = append(out, dto.NewProfile(&users[i]))
	}
	return out, total, nil
}

// SetUserActive enables or disables a user. Inactive users cannot sign in and are hidden.
func (s *Service) SetUserActive(ctx context.Context, userID string, active bool) (*dto.Profile, error) {
	s.appCtx.Logger.Info("SetUserActive", "user", userID, "active", active)

	if err := s.users.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, guard.ErrUserNotFound
		}
		return nil, svcErr.Map(err)
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := dto.NewProfile(u)
	return &out, nil
}
