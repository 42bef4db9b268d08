package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

// MessageRepository provides data access for messages, reactions and read receipts.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByID returns the message with reactions and receipts.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*db.Message, error) {
	var m db.Message
	err := r.db.WithContext(ctx).
		Preload("Reactions").
		Preload("Receipts").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindManyByID returns messages keyed by id. Missing ids are skipped.
func (r *MessageRepository) FindManyByID(ctx context.Context, ids []string) (map[string]db.Message, error) {
	out := make(map[string]db.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var msgs []db.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}

// List returns messages of chatID newest first.
//
// Behavior:
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//   - Reactions and receipts are preloaded.
func (r *MessageRepository) List(
	ctx context.Context,
	chatID string,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Preload("Reactions").
		Preload("Receipts").
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var msgs []db.Message
	if err := query.Find(&msgs).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(msgs) > limit {
		last := msgs[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		msgs = msgs[:limit]
	}
	return msgs, nextToken, nil
}

// UpdateContent rewrites a message body and stamps edited_at.
func (r *MessageRepository) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"content": content, "edited_at": at}).Error
}

// SoftDelete blanks a message and flags it deleted. The row stays so replies keep their target.
func (r *MessageRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": at,
			"content":    "",
			"media_url":  "",
		}).Error
}

// UpsertReaction sets userID's reaction, replacing any previous emoji.
func (r *MessageRepository) UpsertReaction(ctx context.Context, messageID, userID, emoji string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"emoji"}),
		}).
		Create(&db.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}).Error
}

// DeleteReaction removes userID's reaction. Returns whether one existed.
func (r *MessageRepository) DeleteReaction(ctx context.Context, messageID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&db.MessageReaction{})
	return res.RowsAffected > 0, res.Error
}

// MarkRead writes a receipt for every message in chatID that readerID did not send
// and has not read yet. Returns the number of receipts written.
func (r *MessageRepository) MarkRead(ctx context.Context, chatID, readerID string, at time.Time) (int, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND is_deleted = ?", chatID, readerID, false).
		Where("NOT EXISTS (SELECT 1 FROM message_receipts mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", readerID).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	receipts := make([]db.MessageReceipt, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, db.MessageReceipt{MessageID: id, UserID: readerID, ReadAt: at})
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&receipts, 200).Error
	return len(receipts), err
}
