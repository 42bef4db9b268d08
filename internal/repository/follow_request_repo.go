package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
)

// FollowRequestRepository provides data access for the follow-request ledger.
type FollowRequestRepository struct {
	db *gorm.DB
}

// NewFollowRequestRepository creates a new repository bound to the given DB connection.
func NewFollowRequestRepository(database *gorm.DB) *FollowRequestRepository {
	return &FollowRequestRepository{db: database}
}

// FindByID returns the request or gorm.ErrRecordNotFound.
func (r *FollowRequestRepository) FindByID(ctx context.Context, id string) (*db.FollowRequest, error) {
	var req db.FollowRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPair returns the ledger row for the ordered (requester, recipient) pair.
func (r *FollowRequestRepository) FindPair(ctx context.Context, requesterID, recipientID string) (*db.FollowRequest, error) {
	var req db.FollowRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND recipient_id = ?", requesterID, recipientID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Create inserts a new ledger row. The unique pair index rejects a second row
// for the same ordered pair with gorm.ErrDuplicatedKey.
func (r *FollowRequestRepository) Create(ctx context.Context, req *db.FollowRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Reopen puts an answered or lapsed row back into pending with a fresh message and expiry.
//
// Behavior:
//   - created_at moves to now, so the resent request lists as a new one.
//   - Only rows that are not live-pending at now are touched, so two racing
//     reopen calls cannot both succeed.
//   - Returns whether the row was reopened.
func (r *FollowRequestRepository) Reopen(ctx context.Context, id, message string, now, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.FollowRequest{}).
		Where("id = ? AND (status <> ? OR expires_at <= ?)", id, db.StatusPending, now).
		Updates(map[string]any{
			"status":       db.StatusPending,
			"message":      message,
			"expires_at":   expiresAt,
			"responded_at": nil,
			"created_at":   now,
		})
	return res.RowsAffected > 0, res.Error
}

// Transition moves a pending request to status, stamping responded_at.
// Returns false when the request was no longer pending.
func (r *FollowRequestRepository) Transition(ctx context.Context, id string, status db.RequestStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.FollowRequest{}).
		Where("id = ? AND status = ?", id, db.StatusPending).
		Updates(map[string]any{"status": status, "responded_at": at})
	return res.RowsAffected > 0, res.Error
}

// Delete removes a ledger row.
func (r *FollowRequestRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.FollowRequest{}).Error
}

// PendingBetween returns an unexpired pending request in either direction between a and b.
func (r *FollowRequestRepository) PendingBetween(ctx context.Context, a, b string, now time.Time) (*db.FollowRequest, error) {
	var req db.FollowRequest
	err := r.db.WithContext(ctx).
		Where("((requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?))", a, b, b, a).
		Where("status = ? AND expires_at > ?", db.StatusPending, now).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPending returns unexpired pending requests for userID, newest first.
// incoming selects requests addressed to the user, otherwise the ones they sent.
func (r *FollowRequestRepository) ListPending(ctx context.Context, userID string, incoming bool, now time.Time) ([]db.FollowRequest, error) {
	col := "requester_id"
	if incoming {
		col = "recipient_id"
	}
	var reqs []db.FollowRequest
	err := r.db.WithContext(ctx).
		Where(col+" = ? AND status = ? AND expires_at > ?", userID, db.StatusPending, now).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, err
}

// DeletePendingBetween drops pending requests in either direction between a and b.
func (r *FollowRequestRepository) DeletePendingBetween(ctx context.Context, a, b string) error {
	return r.db.WithContext(ctx).
		Where("((requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?))", a, b, b, a).
		Where("status = ?", db.StatusPending).
		Delete(&db.FollowRequest{}).Error
}

// DeleteExpiredPending removes pending requests whose expiry is at or before now.
func (r *FollowRequestRepository) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", db.StatusPending, now).
		Delete(&db.FollowRequest{})
	return res.RowsAffected, res.Error
}
