package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
)

// UserRepository adds end-user profile queries on top of the shared actor queries.
type UserRepository struct {
	*ActorRepository[db.User, *db.User]
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{
		ActorRepository: NewActorRepository[db.User](database),
		db:              database,
	}
}

// ProfileUpdate carries the optional profile fields. Nil means "leave unchanged".
type ProfileUpdate struct {
	Name      *string
	Username  *string
	Bio       *string
	AvatarURL *string
	IsPrivate *bool
}

// UpdateProfile applies the non-nil fields of u. A username clash surfaces as gorm.ErrDuplicatedKey.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, u ProfileUpdate) error {
	fields := map[string]any{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Username != nil {
		if *u.Username == "" {
			fields["username"] = nil
		} else {
			fields["username"] = *u.Username
		}
	}
	if u.Bio != nil {
		fields["bio"] = *u.Bio
	}
	if u.AvatarURL != nil {
		fields["avatar_url"] = *u.AvatarURL
	}
	if u.IsPrivate != nil {
		fields["is_private"] = *u.IsPrivate
	}
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).Updates(fields)
	return matched(res, &db.User{}, "id = ?", userID)
}

// UsernameTaken reports whether another user already holds username.
func (r *UserRepository) UsernameTaken(ctx context.Context, username, exceptUserID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("username = ? AND id <> ?", username, exceptUserID).
		Count(&count).Error
	return count > 0, err
}

// FindManyByID returns the users with the given ids keyed by id. Missing ids are skipped.
func (r *UserRepository) FindManyByID(ctx context.Context, ids []string) (map[string]db.User, error) {
	out := make(map[string]db.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// List returns users matching query (name, username or phone prefix), newest first.
func (r *UserRepository) List(ctx context.Context, query string, page, limit int) ([]db.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&db.User{})
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + query + "%"
		q = q.Where("name LIKE ? OR username LIKE ? OR phone LIKE ?", like, like, query+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []db.User
	err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	return users, total, err
}
