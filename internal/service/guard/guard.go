// Package guard holds the relationship checks every user-to-user operation runs first:
// both users exist, both are active, and neither blocked the other.
package guard

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/repository"
)

var (
	ErrUserNotFound = svcErr.NotFound("USER_NOT_FOUND", "User not found")
	ErrUserInactive = svcErr.Forbidden("USER_INACTIVE", "User account is inactive")
	ErrBlocked      = svcErr.Forbidden("USER_BLOCKED", "This action is not allowed between these users")
)

// Guard runs the shared pair checks against one DB handle (plain or transactional).
type Guard struct {
	users  *repository.UserRepository
	social *repository.SocialRepository
}

func New(database *gorm.DB) *Guard {
	return &Guard{
		users:  repository.NewUserRepository(database),
		social: repository.NewSocialRepository(database),
	}
}

// ActiveUser loads id and fails when it is missing or inactive.
func (g *Guard) ActiveUser(ctx context.Context, id string) (*db.User, error) {
	u, err := g.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, svcErr.Map(err)
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	return u, nil
}

// ActivePair loads both users, failing on the first missing or inactive one.
func (g *Guard) ActivePair(ctx context.Context, a, b string) (*db.User, *db.User, error) {
	ua, err := g.ActiveUser(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	ub, err := g.ActiveUser(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	return ua, ub, nil
}

// NotBlocked fails when either user blocked the other.
func (g *Guard) NotBlocked(ctx context.Context, a, b string) error {
	blocked, err := g.social.IsBlockedEitherWay(ctx, a, b)
	if err != nil {
		return svcErr.Map(err)
	}
	if blocked {
		return ErrBlocked
	}
	return nil
}

// Pair combines ActivePair and NotBlocked.
func (g *Guard) Pair(ctx context.Context, a, b string) (*db.User, *db.User, error) {
	ua, ub, err := g.ActivePair(ctx, a, b)
	if err != nil {
		return nil, nil, err
	}
	if err := g.NotBlocked(ctx, a, b); err != nil {
		return nil, nil, err
	}
	return ua, ub, nil
}
