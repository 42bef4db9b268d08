package profile

import (
	"context"
	"errors"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/service/social"
	"github.com/oggyb/kinnect/internal/storage"
)

var (
	ErrUsernameTaken = svcErr.AlreadyExists("USERNAME_TAKEN", "Username is already taken")
	ErrNotAnImage    = svcErr.InvalidArgument("AVATAR_NOT_IMAGE", "Avatar must be an image")
)

// Update carries the editable profile fields. Nil leaves a field unchanged,
// an empty Username clears it.
type Update struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	Username  *string `json:"username" validate:"omitempty,username"`
	Bio       *string `json:"bio" validate:"omitempty,max=500"`
	IsPrivate *bool   `json:"isPrivate"`
}

// Service reads and edits user profiles.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	graph  *repository.SocialRepository
	social *social.Service
	guard  *guard.Guard
}

func NewProfileService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		graph:  repository.NewSocialRepository(appCtx.DB),
		social: social.NewSocialService(appCtx),
		guard:  guard.New(appCtx.DB),
	}
}

// GetMe returns the caller's own profile.
func (s *Service) GetMe(ctx context.Context, userID string) (*dto.Profile, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, guard.ErrUserNotFound
		}
		return nil, svcErr.Map(err)
	}
	out := dto.NewProfile(u)
	return &out, nil
}

// GetUser returns targetID's profile as seen by viewerID.
// A block in either direction hides the profile entirely.
func (s *Service) GetUser(ctx context.Context, viewerID, targetID string) (*dto.PublicProfile, error) {
	s.appCtx.Logger.Debug("GetUser called", "viewer", viewerID, "target", targetID)

	u, err := s.guard.ActiveUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, guard.ErrUserInactive) {
			return nil, guard.ErrUserNotFound
		}
		return nil, err
	}
	if viewerID != targetID {
		if err := s.guard.NotBlocked(ctx, viewerID, targetID); err != nil {
			return nil, guard.ErrUserNotFound
		}
	}

	counts, err := s.social.Counts(ctx, targetID)
	if err != nil {
		return nil, err
	}
	out := &dto.PublicProfile{
		UserSummary:    dto.NewUserSummary(u),
		Bio:            u.Bio,
		FollowersCount: counts.Followers,
		FollowingCount: counts.Following,
	}
	if viewerID == targetID {
		return out, nil
	}
	if out.IsFollowing, err = s.graph.IsFollowing(ctx, viewerID, targetID); err != nil {
		return nil, svcErr.Map(err)
	}
	if out.FollowsYou, err = s.graph.IsFollowing(ctx, targetID, viewerID); err != nil {
		return nil, svcErr.Map(err)
	}
	return out, nil
}

// UpdateMe applies in to the caller's profile and returns the result.
func (s *Service) UpdateMe(ctx context.Context, userID string, in Update) (*dto.Profile, error) {
	s.appCtx.Logger.Debug("UpdateMe called", "user", userID)

	patch := repository.ProfileUpdate{IsPrivate: in.IsPrivate}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		patch.Name = &name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		patch.Bio = &bio
	}
	if in.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*in.Username))
		if username != "" {
			taken, err := s.users.UsernameTaken(ctx, username, userID)
			if err != nil {
				return nil, svcErr.Map(err)
			}
			if taken {
				return nil, ErrUsernameTaken
			}
		}
		patch.Username = &username
	}

	if err := s.users.UpdateProfile(ctx, userID, patch); err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrUsernameTaken
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, guard.ErrUserNotFound
		}
		s.appCtx.Logger.Error("update profile failed", "user", userID, "err", err)
		return nil, svcErr.Map(err)
	}
	return s.GetMe(ctx, userID)
}

// UploadAvatar stores an image through the configured uploader and points the profile at it.
func (s *Service) UploadAvatar(ctx context.Context, userID, filename, contentType string, body io.Reader, size int64) (*dto.Profile, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}
	url, err := s.appCtx.Uploader.Upload(ctx, storage.ObjectKey("avatars", userID, filename), contentType, body, size)
	if err != nil {
		var de *svcErr.Error
		if !errors.As(err, &de) {
			s.appCtx.Logger.Error("avatar upload failed", "user", userID, "err", err)
		}
		return nil, svcErr.Map(err)
	}
	if err := s.users.UpdateProfile(ctx, userID, repository.ProfileUpdate{AvatarURL: &url}); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.GetMe(ctx, userID)
}
