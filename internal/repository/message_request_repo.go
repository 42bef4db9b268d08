package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
)

// MessageRequestRepository provides data access for message requests.
type MessageRequestRepository struct {
	db *gorm.DB
}

// NewMessageRequestRepository creates a new repository bound to the given DB connection.
func NewMessageRequestRepository(database *gorm.DB) *MessageRequestRepository {
	return &MessageRequestRepository{db: database}
}

func (r *MessageRequestRepository) FindByID(ctx context.Context, id string) (*db.MessageRequest, error) {
	var req db.MessageRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPair returns the row for the ordered (from, to) pair.
func (r *MessageRequestRepository) FindPair(ctx context.Context, fromID, toID string) (*db.MessageRequest, error) {
	var req db.MessageRequest
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", fromID, toID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *MessageRequestRepository) Create(ctx context.Context, req *db.MessageRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Accept marks a pending request accepted and links the chat.
// Returns false when the request was no longer pending.
func (r *MessageRequestRepository) Accept(ctx context.Context, id, chatID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.MessageRequest{}).
		Where("id = ? AND status = ?", id, db.StatusPending).
		Updates(map[string]any{
			"status":       db.StatusAccepted,
			"chat_id":      chatID,
			"responded_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// Transition moves a pending request to status. Returns false when it was no longer pending.
func (r *MessageRequestRepository) Transition(ctx context.Context, id string, status db.RequestStatus, at time.Time) (bool, error) {
	fields := map[string]any{"status": status}
	if status != db.StatusExpired {
		fields["responded_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&db.MessageRequest{}).
		Where("id = ? AND status = ?", id, db.StatusPending).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// HasAcceptedBetween reports whether an accepted request exists in either direction.
func (r *MessageRequestRepository) HasAcceptedBetween(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.MessageRequest{}).
		Where("((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))", a, b, b, a).
		Where("status = ?", db.StatusAccepted).
		Count(&count).Error
	return count > 0, err
}

// ListPending returns unexpired pending requests, newest first.
func (r *MessageRequestRepository) ListPending(ctx context.Context, userID string, incoming bool, now time.Time) ([]db.MessageRequest, error) {
	col := "from_user_id"
	if incoming {
		col = "to_user_id"
	}
	var reqs []db.MessageRequest
	err := r.db.WithContext(ctx).
		Where(col+" = ? AND status = ? AND expires_at > ?", userID, db.StatusPending, now).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, err
}

// DeletePendingBetween drops pending requests in either direction between a and b.
func (r *MessageRequestRepository) DeletePendingBetween(ctx context.Context, a, b string) error {
	return r.db.WithContext(ctx).
		Where("((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))", a, b, b, a).
		Where("status = ?", db.StatusPending).
		Delete(&db.MessageRequest{}).Error
}

// ExpirePending marks pending requests past expiry as expired.
func (r *MessageRequestRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.MessageRequest{}).
		Where("status = ? AND expires_at <= ?", db.StatusPending, now).
		Update("status", db.StatusExpired)
	return res.RowsAffected, res.Error
}
