package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
)

// CallRepository provides data access for call logs.
type CallRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new repository bound to the given DB connection.
func NewCallRepository(database *gorm.DB) *CallRepository {
	return &CallRepository{db: database}
}

// Create inserts the call together with its participant rows.
func (r *CallRepository) Create(ctx context.Context, call *db.Call) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *CallRepository) FindByID(ctx context.Context, id string) (*db.Call, error) {
	var call db.Call
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// IsParticipant reports whether userID took part in callID.
func (r *CallRepository) IsParticipant(ctx context.Context, callID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.CallParticipant{}).
		Where("call_id = ? AND user_id = ?", callID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListForUser returns calls userID took part in, newest first.
func (r *CallRepository) ListForUser(ctx context.Context, userID string, page, limit int) ([]db.Call, int64, error) {
	sub := r.db.Model(&db.CallParticipant{}).Select("call_id").Where("user_id = ?", userID)
	q := r.db.WithContext(ctx).Model(&db.Call{}).Where("id IN (?)", sub)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var calls []db.Call
	err := q.Preload("Participants").
		Order("started_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&calls).Error
	return calls, total, err
}
