package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
)

// ChatRepository provides data access for chats and their per-participant settings.
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new repository bound to the given DB connection.
func NewChatRepository(database *gorm.DB) *ChatRepository {
	return &ChatRepository{db: database}
}

// FindByID returns the chat with its participant rows.
func (r *ChatRepository) FindByID(ctx context.Context, id string) (*db.Chat, error) {
	var chat db.Chat
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// FindByPair returns the canonical chat for the unordered pair (a, b).
func (r *ChatRepository) FindByPair(ctx context.Context, a, b string) (*db.Chat, error) {
	var chat db.Chat
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("pair_key = ?", db.PairKey(a, b)).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// FindOrCreate returns the canonical chat for (a, b), inserting it with both
// participant rows when absent.
//
// Behavior:
//   - The pair key is order independent, so (a, b) and (b, a) resolve to one row.
//   - A concurrent insert loses on the unique pair key and re-reads the winner.
//   - Returns whether the chat was created by this call.
func (r *ChatRepository) FindOrCreate(ctx context.Context, a, b string) (*db.Chat, bool, error) {
	chat, err := r.FindByPair(ctx, a, b)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	fresh := &db.Chat{
		PairKey:  db.PairKey(a, b),
		IsActive: true,
		Participants: []db.ChatParticipant{
			{UserID: a},
			{UserID: b},
		},
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(fresh).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			chat, err := r.FindByPair(ctx, a, b)
			return chat, false, err
		}
		return nil, false, err
	}
	return fresh, true, nil
}

// Participant returns userID's settings row for chatID.
func (r *ChatRepository) Participant(ctx context.Context, chatID, userID string) (*db.ChatParticipant, error) {
	var p db.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateParticipant writes the given settings columns for one participant.
func (r *ChatRepository) UpdateParticipant(ctx context.Context, chatID, userID string, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&db.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Updates(fields)
	return matched(res, &db.ChatParticipant{}, "chat_id = ? AND user_id = ?", chatID, userID)
}

// AllArchived reports whether every participant of chatID has archived it.
func (r *ChatRepository) AllArchived(ctx context.Context, chatID string) (bool, error) {
	var open int64
	err := r.db.WithContext(ctx).
		Model(&db.ChatParticipant{}).
		Where("chat_id = ? AND is_archived = ?", chatID, false).
		Count(&open).Error
	return open == 0, err
}

// SetActive flips the chat-wide active flag.
func (r *ChatRepository) SetActive(ctx context.Context, chatID string, active bool) error {
	return r.db.WithContext(ctx).
		Model(&db.Chat{}).
		Where("id = ?", chatID).
		Update("is_active", active).Error
}

// RecordMessage moves the last-message pointer, reactivates the chat, un-archives it
// for everyone and bumps the unread count of every participant except the sender.
func (r *ChatRepository) RecordMessage(ctx context.Context, chatID, messageID, senderID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Chat{}).
			Where("id = ?", chatID).
			Updates(map[string]any{
				"last_message_id": messageID,
				"last_message_at": at,
				"is_active":       true,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.ChatParticipant{}).
			Where("chat_id = ?", chatID).
			Updates(map[string]any{"is_archived": false, "archived_at": nil}).Error; err != nil {
			return err
		}
		return tx.Model(&db.ChatParticipant{}).
			Where("chat_id = ? AND user_id <> ?", chatID, senderID).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
	})
}

// ListForUser returns userID's chats ordered pinned first, then by most recent
// activity (last message time, falling back to update time), then by creation.
func (r *ChatRepository) ListForUser(ctx context.Context, userID string, includeArchived bool, page, limit int) ([]db.Chat, int64, error) {
	base := r.db.WithContext(ctx).
		Table("chat_participants cp").
		Joins("JOIN chats c ON c.id = cp.chat_id").
		Where("cp.user_id = ?", userID)
	if !includeArchived {
		base = base.Where("cp.is_archived = ?", false)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ids []string
	err := base.Session(&gorm.Session{}).
		Order("cp.is_pinned DESC").
		Order("COALESCE(c.last_message_at, c.updated_at) DESC").
		Order("c.created_at ASC, c.id ASC").
		Offset((page-1)*limit).
		Limit(limit).
		Pluck("cp.chat_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, total, err
	}

	var chats []db.Chat
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN ?", ids).
		Find(&chats).Error; err != nil {
		return nil, 0, err
	}

	// restore the ordering from the id query
	byID := make(map[string]db.Chat, len(chats))
	for _, c := range chats {
		byID[c.ID] = c
	}
	ordered := make([]db.Chat, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, total, nil
}
