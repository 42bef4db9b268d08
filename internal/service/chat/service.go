package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

var (
	ErrChatNotFound   = svcErr.NotFound("CHAT_NOT_FOUND", "Chat not found")
	ErrChatNotAllowed = svcErr.Forbidden("CHAT_NOT_ALLOWED", "You need to send a message request first")
	ErrChatWithSelf   = svcErr.InvalidArgument("CANNOT_CHAT_WITH_SELF", "You cannot start a chat with yourself")
	ErrMuteInPast     = svcErr.InvalidArgument("MUTE_UNTIL_IN_PAST", "mutedUntil must be in the future")
)

// Reasons returned by CanUsersChat.
const (
	ReasonSelf            = "self"
	ReasonUserNotFound    = "user_not_found"
	ReasonUserInactive    = "user_inactive"
	ReasonBlocked         = "blocked"
	ReasonMutualFollow    = "mutual_follow"
	ReasonRequestAccepted = "message_request_accepted"
	ReasonChatExists      = "chat_exists"
	ReasonRequestRequired = "message_request_required"
)

// Eligibility is the outcome of the chat policy check for a pair of users.
type Eligibility struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Service owns chats and the per-participant settings.
type Service struct {
	appCtx   *app.AppContext
	chats    *repository.ChatRepository
	messages *repository.MessageRepository
	social   *repository.SocialRepository
	requests *repository.MessageRequestRepository
	users    *repository.UserRepository
	guard    *guard.Guard
}

func NewChatService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		chats:    repository.NewChatRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
		social:   repository.NewSocialRepository(appCtx.DB),
		requests: repository.NewMessageRequestRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		guard:    guard.New(appCtx.DB),
	}
}

// CanUsersChat decides whether a and b may talk directly.
//
// Both users must exist, be active and not have blocked each other. The pair is then
// allowed when they follow each other, when a message request between them was accepted,
// or when a chat between them already exists.
func (s *Service) CanUsersChat(ctx context.Context, a, b string) (Eligibility, error) {
	if a == b {
		return Eligibility{Reason: ReasonSelf}, nil
	}
	if _, _, err := s.guard.ActivePair(ctx, a, b); err != nil {
		switch {
		case errors.Is(err, guard.ErrUserNotFound):
			return Eligibility{Reason: ReasonUserNotFound}, nil
		case errors.Is(err, guard.ErrUserInactive):
			return Eligibility{Reason: ReasonUserInactive}, nil
		}
		return Eligibility{}, err
	}
	if err := s.guard.NotBlocked(ctx, a, b); err != nil {
		if errors.Is(err, guard.ErrBlocked) {
			return Eligibility{Reason: ReasonBlocked}, nil
		}
		return Eligibility{}, err
	}

	mutual, err := s.social.IsMutualFollow(ctx, a, b)
	if err != nil {
		return Eligibility{}, svcErr.Map(err)
	}
	if mutual {
		return Eligibility{Allowed: true, Reason: ReasonMutualFollow}, nil
	}

	accepted, err := s.requests.HasAcceptedBetween(ctx, a, b)
	if err != nil {
		return Eligibility{}, svcErr.Map(err)
	}
	if accepted {
		return Eligibility{Allowed: true, Reason: ReasonRequestAccepted}, nil
	}

	if _, err := s.chats.FindByPair(ctx, a, b); err == nil {
		return Eligibility{Allowed: true, Reason: ReasonChatExists}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Eligibility{}, svcErr.Map(err)
	}
	return Eligibility{Reason: ReasonRequestRequired}, nil
}

// FindOrCreateChat returns the one chat for the unordered pair (a, b), creating it if needed.
// No policy checks are run here.
func (s *Service) FindOrCreateChat(ctx context.Context, a, b string) (*db.Chat, bool, error) {
	if a == b {
		return nil, false, ErrChatWithSelf
	}
	chat, created, err := s.chats.FindOrCreate(ctx, a, b)
	if err != nil {
		s.appCtx.Logger.Error("find or create chat failed", "a", a, "b", b, "err", err)
		return nil, false, svcErr.Map(err)
	}
	return chat, created, nil
}

// CreateOrGetChat opens the chat between callerID and otherID after the policy check.
// An archived or inactive chat is brought back for the caller.
func (s *Service) CreateOrGetChat(ctx context.Context, callerID, otherID string) (*dto.Chat, error) {
	s.appCtx.Logger.Debug("CreateOrGetChat called", "caller", callerID, "other", otherID)

	elig, err := s.CanUsersChat(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	if !elig.Allowed {
		switch elig.Reason {
		case ReasonSelf:
			return nil, ErrChatWithSelf
		case ReasonUserNotFound:
			return nil, guard.ErrUserNotFound
		case ReasonUserInactive:
			return nil, guard.ErrUserInactive
		case ReasonBlocked:
			return nil, guard.ErrBlocked
		}
		return nil, ErrChatNotAllowed
	}

	chat, _, err := s.FindOrCreateChat(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	if !chat.IsActive {
		if err := s.chats.SetActive(ctx, chat.ID, true); err != nil {
			return nil, svcErr.Map(err)
		}
	}
	if err := s.chats.UpdateParticipant(ctx, chat.ID, callerID, map[string]any{
		"is_archived": false,
		"archived_at": nil,
	}); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.GetChat(ctx, callerID, chat.ID)
}

// ListChats returns userID's chats: pinned first, then most recent activity.
func (s *Service) ListChats(ctx context.Context, userID string, includeArchived bool, page, limit int) ([]dto.Chat, int64, error) {
	chats, total, err := s.chats.ListForUser(ctx, userID, includeArchived, pagination.ClampPage(page), pagination.ClampLimit(limit))
	if err != nil {
		return nil, 0, svcErr.Map(err)
	}
	out, err := s.views(ctx, userID, chats)
	return out, total, err
}

// GetChat returns one chat as seen by userID.
func (s *Service) GetChat(ctx context.Context, userID, chatID string) (*dto.Chat, error) {
	chat, err := s.Membership(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	out, err := s.views(ctx, userID, []db.Chat{*chat})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Membership loads chatID and checks userID takes part in it. Outsiders get CHAT_NOT_FOUND.
func (s *Service) Membership(ctx context.Context, chatID, userID string) (*db.Chat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, svcErr.Map(err)
	}
	if participant(chat, userID) == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// ArchiveChat hides the chat for userID. Once every participant archived it the chat goes inactive.
func (s *Service) ArchiveChat(ctx context.Context, userID, chatID string) (*dto.ChatSettings, error) {
	now := s.appCtx.Now()
	return s.archive(ctx, userID, chatID, map[string]any{"is_archived": true, "archived_at": now})
}

// DeleteChat removes the chat from userID's list. Messages are kept for the other side.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) error {
	now := s.appCtx.Now()
	_, err := s.archive(ctx, userID, chatID, map[string]any{
		"is_archived":  true,
		"archived_at":  now,
		"is_pinned":    false,
		"pinned_at":    nil,
		"unread_count": 0,
	})
	return err
}

func (s *Service) UnarchiveChat(ctx context.Context, userID, chatID string) (*dto.ChatSettings, error) {
	if _, err := s.Membership(ctx, chatID, userID); err != nil {
		return nil, err
	}
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := repository.NewChatRepository(tx)
		if err := chats.UpdateParticipant(ctx, chatID, userID, map[string]any{"is_archived": false, "archived_at": nil}); err != nil {
			return err
		}
		return chats.SetActive(ctx, chatID, true)
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.settings(ctx, chatID, userID)
}

func (s *Service) PinChat(ctx context.Context, userID, chatID string) (*dto.ChatSettings, error) {
	return s.updateSettings(ctx, userID, chatID, map[string]any{"is_pinned": true, "pinned_at": s.appCtx.Now()})
}

func (s *Service) UnpinChat(ctx context.Context, userID, chatID string) (*dto.ChatSettings, error) {
	return s.updateSettings(ctx, userID, chatID, map[string]any{"is_pinned": false, "pinned_at": nil})
}

// MuteChat silences the chat for userID, until the given time or indefinitely when until is nil.
func (s *Service) MuteChat(ctx context.Context, userID, chatID string, until *time.Time) (*dto.ChatSettings, error) {
	if until != nil && !until.After(s.appCtx.Now()) {
		return nil, ErrMuteInPast
	}
	return s.updateSettings(ctx, userID, chatID, map[string]any{"is_muted": true, "muted_until": until})
}

func (s *Service) UnmuteChat(ctx context.Context, userID, chatID string) (*dto.ChatSettings, error) {
	return s.updateSettings(ctx, userID, chatID, map[string]any{"is_muted": false, "muted_until": nil})
}

// MarkChatRead clears userID's unread count and writes receipts for every unread message.
// Returns how many receipts were written.
func (s *Service) MarkChatRead(ctx context.Context, userID, chatID string) (int, error) {
	if _, err := s.Membership(ctx, chatID, userID); err != nil {
		return 0, err
	}
	now := s.appCtx.Now()
	var n int
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if n, err = repository.NewMessageRepository(tx).MarkRead(ctx, chatID, userID, now); err != nil {
			return err
		}
		return repository.NewChatRepository(tx).UpdateParticipant(ctx, chatID, userID, map[string]any{
			"unread_count": 0,
			"last_read_at": now,
		})
	})
	if err != nil {
		return 0, svcErr.Map(err)
	}
	return n, nil
}

func (s *Service) archive(ctx context.Context, userID, chatID string, fields map[string]any) (*dto.ChatSettings, error) {
	if _, err := s.Membership(ctx, chatID, userID); err != nil {
		return nil, err
	}
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := repository.NewChatRepository(tx)
		if err := chats.UpdateParticipant(ctx, chatID, userID, fields); err != nil {
			return err
		}
		all, err := chats.AllArchived(ctx, chatID)
		if err != nil {
			return err
		}
		if all {
			return chats.SetActive(ctx, chatID, false)
		}
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.settings(ctx, chatID, userID)
}

func (s *Service) updateSettings(ctx context.Context, userID, chatID string, fields map[string]any) (*dto.ChatSettings, error) {
	if _, err := s.Membership(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if err := s.chats.UpdateParticipant(ctx, chatID, userID, fields); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.settings(ctx, chatID, userID)
}

func (s *Service) settings(ctx context.Context, chatID, userID string) (*dto.ChatSettings, error) {
	p, err := s.chats.Participant(ctx, chatID, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := s.settingsView(p)
	return &out, nil
}

// settingsView reports a mute whose deadline passed as unmuted.
func (s *Service) settingsView(p *db.ChatParticipant) dto.ChatSettings {
	out := dto.NewChatSettings(p)
	if out.IsMuted && out.MutedUntil != nil && !s.appCtx.Now().Before(*out.MutedUntil) {
		out.IsMuted = false
		out.MutedUntil = nil
	}
	return out
}

// views renders chats for userID, loading the other participants and last messages in bulk.
func (s *Service) views(ctx context.Context, userID string, chats []db.Chat) ([]dto.Chat, error) {
	var userIDs, msgIDs []string
	for _, c := range chats {
		for _, p := range c.Participants {
			if p.UserID != userID {
				userIDs = append(userIDs, p.UserID)
			}
		}
		if c.LastMessageID != nil {
			msgIDs = append(msgIDs, *c.LastMessageID)
		}
	}
	users, err := s.users.FindManyByID(ctx, userIDs)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	msgs, err := s.messages.FindManyByID(ctx, msgIDs)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]dto.Chat, 0, len(chats))
	for _, c := range chats {
		view := dto.Chat{
			ID:            c.ID,
			IsActive:      c.IsActive,
			Participants:  make([]string, 0, len(c.Participants)),
			LastMessageAt: c.LastMessageAt,
			CreatedAt:     c.CreatedAt,
			UpdatedAt:     c.UpdatedAt,
		}
		for i := range c.Participants {
			p := &c.Participants[i]
			view.Participants = append(view.Participants, p.UserID)
			if p.UserID == userID {
				view.Settings = s.settingsView(p)
			} else if u, ok := users[p.UserID]; ok {
				sum := dto.NewUserSummary(&u)
				view.OtherUser = &sum
			}
		}
		if c.LastMessageID != nil {
			if m, ok := msgs[*c.LastMessageID]; ok {
				last := dto.NewMessage(&m)
				view.LastMessage = &last
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func participant(chat *db.Chat, userID string) *db.ChatParticipant {
	for i := range chat.Participants {
		if chat.Participants[i].UserID == userID {
			return &chat.Participants[i]
		}
	}
	return nil
}

// OtherParticipant returns the id of the member of chat that is not userID.
func OtherParticipant(chat *db.Chat, userID string) string {
	for _, p := range chat.Participants {
		if p.UserID != userID {
			return p.UserID
		}
	}
	return ""
}
