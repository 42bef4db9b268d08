package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
)

// Actor is satisfied by *db.Admin, *db.SubAdmin and *db.User.
type Actor[T any] interface {
	*T
	GetIdentity() *db.Identity
}

// ActorRepository provides the phone-OTP queries shared by every actor table.
type ActorRepository[T any, PT Actor[T]] struct {
	db *gorm.DB
}

// NewActorRepository creates a new repository bound to the given DB connection.
func NewActorRepository[T any, PT Actor[T]](database *gorm.DB) *ActorRepository[T, PT] {
	return &ActorRepository[T, PT]{db: database}
}

// FindByPhone returns the actor registered under (countryCode, phone),
// or gorm.ErrRecordNotFound.
func (r *ActorRepository[T, PT]) FindByPhone(ctx context.Context, countryCode, phone string) (PT, error) {
	var actor T
	err := r.db.WithContext(ctx).
		Where("country_code = ? AND phone = ?", countryCode, phone).
		First(&actor).Error
	if err != nil {
		return nil, err
	}
	return PT(&actor), nil
}

// FindByID returns the actor with the given id, or gorm.ErrRecordNotFound.
func (r *ActorRepository[T, PT]) FindByID(ctx context.Context, id string) (PT, error) {
	var actor T
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&actor).Error; err != nil {
		return nil, err
	}
	return PT(&actor), nil
}

// FindOrCreateByPhone returns the existing actor or inserts a fresh unverified one.
// A concurrent insert of the same phone is resolved by re-reading after the unique-key conflict.
func (r *ActorRepository[T, PT]) FindOrCreateByPhone(ctx context.Context, countryCode, phone string) (PT, bool, error) {
	actor, err := r.FindByPhone(ctx, countryCode, phone)
	if err == nil {
		return actor, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	fresh := PT(new(T))
	id := fresh.GetIdentity()
	id.CountryCode = countryCode
	id.Phone = phone
	id.IsActive = true

	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			actor, err := r.FindByPhone(ctx, countryCode, phone)
			return actor, false, err
		}
		return nil, false, err
	}
	return fresh, true, nil
}

// Create inserts a fully populated actor.
func (r *ActorRepository[T, PT]) Create(ctx context.Context, actor PT) error {
	return r.db.WithContext(ctx).Create(actor).Error
}

// SaveOTP stores a hashed code with its expiry and send time.
func (r *ActorRepository[T, PT]) SaveOTP(ctx context.Context, actor PT, hash string, expiresAt, sentAt time.Time) error {
	id := actor.GetIdentity()
	if err := r.db.WithContext(ctx).Model(actor).Updates(map[string]any{
		"otp_hash":         hash,
		"otp_expires_at":   expiresAt,
		"otp_last_sent_at": sentAt,
	}).Error; err != nil {
		return err
	}
	id.OTPHash = &hash
	id.OTPExpiresAt = &expiresAt
	id.OTPLastSentAt = &sentAt
	return nil
}

// MarkVerified flags the actor verified, clears every OTP field and stamps the login time.
func (r *ActorRepository[T, PT]) MarkVerified(ctx context.Context, actor PT, at time.Time) error {
	id := actor.GetIdentity()
	if err := r.db.WithContext(ctx).Model(actor).Updates(map[string]any{
		"is_verified":      true,
		"otp_hash":         nil,
		"otp_expires_at":   nil,
		"otp_last_sent_at": nil,
		"last_login_at":    at,
	}).Error; err != nil {
		return err
	}
	id.IsVerified = true
	id.ClearOTP()
	id.LastLoginAt = &at
	return nil
}

// SetActive toggles the actor's active flag.
func (r *ActorRepository[T, PT]) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(PT(new(T))).Where("id = ?", id).Update("is_active", active)
	return matched(res, PT(new(T)), "id = ?", id)
}

// UpdateFields writes profile columns of the actor with the given id.
func (r *ActorRepository[T, PT]) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(PT(new(T))).Where("id = ?", id).Updates(fields)
	return matched(res, PT(new(T)), "id = ?", id)
}
