package message

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/events"
	"github.com/oggyb/kinnect/internal/metrics"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/service/chat"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/storage"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

// MaxContentLength bounds a text message body, in bytes.
const MaxContentLength = 4000

var (
	ErrMessageNotFound  = svcErr.NotFound("MESSAGE_NOT_FOUND", "Message not found")
	ErrNotSender        = svcErr.Forbidden("NOT_MESSAGE_SENDER", "Only the sender can change this message")
	ErrInvalidType      = svcErr.InvalidArgument("INVALID_MESSAGE_TYPE", "type must be text, image, video, audio or document")
	ErrContentRequired  = svcErr.InvalidArgument("CONTENT_REQUIRED", "Text messages need content")
	ErrContentTooLong   = svcErr.InvalidArgument("CONTENT_TOO_LONG", "Message content is too long")
	ErrMediaRequired    = svcErr.InvalidArgument("MEDIA_URL_REQUIRED", "Media messages need a mediaUrl")
	ErrReplyTarget      = svcErr.InvalidArgument("INVALID_REPLY_TARGET", "Reply target must be a message in the same chat")
	ErrMessageDeleted   = svcErr.InvalidArgument("MESSAGE_DELETED", "Message has been deleted")
	ErrOnlyTextEditable = svcErr.InvalidArgument("ONLY_TEXT_EDITABLE", "Only text messages can be edited")
	ErrReactionNotFound = svcErr.NotFound("REACTION_NOT_FOUND", "You have not reacted to this message")
	ErrEmojiRequired    = svcErr.InvalidArgument("EMOJI_REQUIRED", "emoji is required")

	ErrInvalidPaginationToken = svcErr.InvalidArgument("INVALID_PAGINATION_TOKEN", "pagination token is invalid")
)

// Draft is a message to be sent.
type Draft struct {
	Type      db.MessageType `json:"type"`
	Content   string         `json:"content"`
	MediaURL  string         `json:"mediaUrl" validate:"omitempty,url,max=512"`
	ReplyToID *string        `json:"replyToId" validate:"omitempty,uuid"`
}

// Attachment is an uploaded file ready to be referenced by a media message.
type Attachment struct {
	URL  string         `json:"url"`
	Type db.MessageType `json:"type"`
}

// Service sends, lists and edits chat messages.
type Service struct {
	appCtx   *app.AppContext
	chats    *chat.Service
	messages *repository.MessageRepository
	guard    *guard.Guard
}

func NewMessageService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		chats:    chat.NewChatService(appCtx),
		messages: repository.NewMessageRepository(appCtx.DB),
		guard:    guard.New(appCtx.DB),
	}
}

// SendMessage posts d into chatID as senderID.
//
// Behavior:
//   - Only participants may send, and not while either side has blocked the other.
//   - Text needs content, every other type needs a media URL.
//   - A reply must point at a message of the same chat.
//   - The chat's last-message pointer moves, the chat is reactivated and un-archived for
//     both sides, and the recipient's unread count goes up, all in one transaction.
func (s *Service) SendMessage(ctx context.Context, senderID, chatID string, d Draft) (*dto.Message, error) {
	s.appCtx.Logger.Debug("SendMessage called", "sender", senderID, "chat", chatID, "type", d.Type)

	if d.Type == "" {
		d.Type = db.MessageText
	}
	d.Content = strings.TrimSpace(d.Content)
	if err := validateDraft(d); err != nil {
		return nil, err
	}

	c, err := s.chats.Membership(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.guard.Pair(ctx, senderID, chat.OtherParticipant(c, senderID)); err != nil {
		return nil, err
	}

	if d.ReplyToID != nil {
		target, err := s.messages.FindByID(ctx, *d.ReplyToID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrReplyTarget
			}
			return nil, svcErr.Map(err)
		}
		if target.ChatID != chatID {
			return nil, ErrReplyTarget
		}
	}

	m := &db.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      d.Type,
		Content:   d.Content,
		MediaURL:  d.MediaURL,
		ReplyToID: d.ReplyToID,
		CreatedAt: s.appCtx.Now(),
	}
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewMessageRepository(tx).Create(ctx, m); err != nil {
			return err
		}
		return repository.NewChatRepository(tx).RecordMessage(ctx, chatID, m.ID, senderID, m.CreatedAt)
	})
	if err != nil {
		s.appCtx.Logger.Error("send message failed", "chat", chatID, "err", err)
		return nil, svcErr.Map(err)
	}

	metrics.MessagesSentTotal.WithLabelValues(string(m.Type)).Inc()
	if err := s.appCtx.Events.Publish(ctx, events.MessageCreated, map[string]string{
		"messageId": m.ID, "chatId": chatID, "senderId": senderID, "type": string(m.Type),
	}); err != nil {
		s.appCtx.Logger.Warn("publish event failed", "subject", events.MessageCreated, "err", err)
	}

	out := dto.NewMessage(m)
	return &out, nil
}

// UploadAttachment stores a file for chatID and returns its URL with the message type it fits.
func (s *Service) UploadAttachment(ctx context.Context, senderID, chatID, filename, contentType string, body io.Reader, size int64) (*Attachment, error) {
	if _, err := s.chats.Membership(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(path.Ext(filename)))
	}
	url, err := s.appCtx.Uploader.Upload(ctx, storage.ObjectKey("attachments", chatID, filename), contentType, body, size)
	if err != nil {
		var de *svcErr.Error
		if !errors.As(err, &de) {
			s.appCtx.Logger.Error("attachment upload failed", "chat", chatID, "err", err)
		}
		return nil, svcErr.Map(err)
	}
	return &Attachment{URL: url, Type: TypeForContent(contentType)}, nil
}

// ListMessages pages through chatID newest first. Deleted messages keep their slot with a blank body.
func (s *Service) ListMessages(ctx context.Context, userID, chatID string, token *string, limit int) ([]dto.Message, *string, error) {
	if _, err := s.chats.Membership(ctx, chatID, userID); err != nil {
		return nil, nil, err
	}
	msgs, next, err := s.messages.List(ctx, chatID, token, pagination.ClampLimit(limit))
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidToken) {
			return nil, nil, ErrInvalidPaginationToken
		}
		s.appCtx.Logger.Error("list messages failed", "chat", chatID, "err", err)
		return nil, nil, svcErr.Map(err)
	}
	out := make([]dto.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, dto.NewMessage(&msgs[i]))
	}
	return out, next, nil
}

// EditMessage replaces the body of a text message the caller sent.
func (s *Service) EditMessage(ctx context.Context, userID, messageID, content string) (*dto.Message, error) {
	m, err := s.owned(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if m.Type != db.MessageText {
		return nil, ErrOnlyTextEditable
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrContentRequired
	}
	if len(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	if err := s.messages.UpdateContent(ctx, m.ID, content, s.appCtx.Now()); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.reload(ctx, m.ID)
}

// DeleteMessage soft-deletes a message the caller sent.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	m, err := s.owned(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if err := s.messages.SoftDelete(ctx, m.ID, s.appCtx.Now()); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

// React sets the caller's reaction on a message, replacing an earlier one.
func (s *Service) React(ctx context.Context, userID, messageID, emoji string) (*dto.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, ErrEmojiRequired
	}
	m, err := s.visible(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, ErrMessageDeleted
	}
	if err := s.messages.UpsertReaction(ctx, m.ID, userID, emoji); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.reload(ctx, m.ID)
}

// Unreact removes the caller's reaction.
func (s *Service) Unreact(ctx context.Context, userID, messageID string) (*dto.Message, error) {
	m, err := s.visible(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	removed, err := s.messages.DeleteReaction(ctx, m.ID, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !removed {
		return nil, ErrReactionNotFound
	}
	return s.reload(ctx, m.ID)
}

// visible loads a message in a chat userID belongs to.
func (s *Service) visible(ctx context.Context, userID, messageID string) (*db.Message, error) {
	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, svcErr.Map(err)
	}
	if _, err := s.chats.Membership(ctx, m.ChatID, userID); err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// owned loads a live message userID sent.
func (s *Service) owned(ctx context.Context, userID, messageID string) (*db.Message, error) {
	m, err := s.visible(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, ErrNotSender
	}
	if m.IsDeleted {
		return nil, ErrMessageDeleted
	}
	return m, nil
}

func (s *Service) reload(ctx context.Context, id string) (*dto.Message, error) {
	m, err := s.messages.FindByID(ctx, id)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := dto.NewMessage(m)
	return &out, nil
}

func validateDraft(d Draft) error {
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	if len(d.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if d.Type == db.MessageText {
		if d.Content == "" {
			return ErrContentRequired
		}
		return nil
	}
	if strings.TrimSpace(d.MediaURL) == "" {
		return ErrMediaRequired
	}
	return nil
}

// TypeForContent maps a MIME type to the message type used to send it.
func TypeForContent(contentType string) db.MessageType {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return db.MessageImage
	case strings.HasPrefix(mediaType, "video/"):
		return db.MessageVideo
	case strings.HasPrefix(mediaType, "audio/"):
		return db.MessageAudio
	default:
		return db.MessageDocument
	}
}
