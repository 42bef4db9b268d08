// Package messagerequest lets users who cannot chat yet ask for a conversation.
package messagerequest

import (
	"context"
	"errors"
	"strings"
	"time"

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
	"github.com/oggyb/kinnect/internal/service/social"
)

var (
	ErrRequestSelf       = svcErr.InvalidArgument("CANNOT_MESSAGE_SELF", "You cannot send a message request to yourself")
	ErrChatExists        = svcErr.AlreadyExists("CHAT_EXISTS", "Chat already exists")
	ErrRequestExists     = svcErr.AlreadyExists("MESSAGE_REQUEST_EXISTS", "A message request to this user is already pending")
	ErrReverseRequest    = svcErr.AlreadyExists("MESSAGE_REQUEST_RECEIVED", "This user has already sent you a message request")
	ErrRequestClosed     = svcErr.AlreadyExists("MESSAGE_REQUEST_CLOSED", "Your earlier message request to this user was closed")
	ErrRequestNotFound   = svcErr.NotFound("MESSAGE_REQUEST_NOT_FOUND", "Message request not found")
	ErrRequestExpired    = svcErr.InvalidArgument("MESSAGE_REQUEST_EXPIRED", "Message request has expired")
	ErrRequestNotPending = svcErr.AlreadyExists("MESSAGE_REQUEST_NOT_PENDING", "Message request is no longer pending")
)

const kind = "message"

// Service implements the message request ledger.
type Service struct {
	appCtx   *app.AppContext
	chats    *chat.Service
	requests *repository.MessageRequestRepository
	users    *repository.UserRepository
	guard    *guard.Guard
}

func NewMessageRequestService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		chats:    chat.NewChatService(appCtx),
		requests: repository.NewMessageRequestRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		guard:    guard.New(appCtx.DB),
	}
}

// SendMessageRequest asks `to` for a chat.
//
// Behavior:
//   - Fails on self, missing or inactive users, and a block in either direction.
//   - Fails with CHAT_EXISTS when the pair can already chat.
//   - A live pending request from `to` blocks a new one in the other direction.
//   - There is one row per ordered pair and it is never reopened: pending gives
//     MESSAGE_REQUEST_EXISTS, accepted gives CHAT_EXISTS, rejected or expired gives
//     MESSAGE_REQUEST_CLOSED.
func (s *Service) SendMessageRequest(ctx context.Context, from, to, message string) (*dto.MessageRequest, error) {
	s.appCtx.Logger.Debug("SendMessageRequest called", "from", from, "to", to)

	if from == to {
		return nil, ErrRequestSelf
	}
	if _, _, err := s.guard.Pair(ctx, from, to); err != nil {
		return nil, err
	}

	elig, err := s.chats.CanUsersChat(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if elig.Allowed {
		return nil, ErrChatExists
	}

	now := s.appCtx.Now()
	if reverse, err := s.requests.FindPair(ctx, to, from); err == nil {
		if reverse.Status == db.StatusPending {
			if !reverse.Expired(now) {
				return nil, ErrReverseRequest
			}
			s.expire(ctx, reverse)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Map(err)
	}

	existing, err := s.requests.FindPair(ctx, from, to)
	switch {
	case err == nil:
		return nil, s.closedReason(ctx, existing, now)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, svcErr.Map(err)
	}

	req := &db.MessageRequest{
		FromUserID: from,
		ToUserID:   to,
		Status:     db.StatusPending,
		Message:    strings.TrimSpace(message),
		ExpiresAt:  now.Add(s.appCtx.Config.Requests.TTL),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRequestExists
		}
		s.appCtx.Logger.Error("create message request failed", "err", err)
		return nil, svcErr.Map(err)
	}

	metrics.RequestTransitionsTotal.WithLabelValues(kind, string(db.StatusPending)).Inc()
	s.publish(ctx, events.MessageRequestCreated, map[string]string{"requestId": req.ID, "from": from, "to": to})

	out := dto.NewMessageRequest(req)
	return &out, nil
}

// AcceptMessageRequest opens the chat for a pending request addressed to recipientID.
//
// The chat, the request link and the optional first message are written in one
// transaction. A request past its expiry is marked expired instead.
func (s *Service) AcceptMessageRequest(ctx context.Context, recipientID, requestID string) (*dto.MessageRequest, error) {
	s.appCtx.Logger.Debug("AcceptMessageRequest called", "recipient", recipientID, "request", requestID)

	req, err := s.loadPending(ctx, requestID, func(r *db.MessageRequest) string { return r.ToUserID }, recipientID)
	if err != nil {
		return nil, err
	}
	now := s.appCtx.Now()
	if req.Expired(now) {
		s.expire(ctx, req)
		return nil, ErrRequestExpired
	}
	if _, _, err := s.guard.Pair(ctx, req.FromUserID, req.ToUserID); err != nil {
		return nil, err
	}

	var first *db.Message
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := repository.NewChatRepository(tx)

		c, _, err := chats.FindOrCreate(ctx, req.FromUserID, req.ToUserID)
		if err != nil {
			return err
		}
		ok, err := repository.NewMessageRequestRepository(tx).Accept(ctx, req.ID, c.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotPending
		}
		req.ChatID = &c.ID

		if !c.IsActive {
			if err := chats.SetActive(ctx, c.ID, true); err != nil {
				return err
			}
		}
		if req.Message == "" {
			return nil
		}
		first = &db.Message{
			ChatID:    c.ID,
			SenderID:  req.FromUserID,
			Type:      db.MessageText,
			Content:   req.Message,
			CreatedAt: now,
		}
		if err := repository.NewMessageRepository(tx).Create(ctx, first); err != nil {
			return err
		}
		return chats.RecordMessage(ctx, c.ID, first.ID, first.SenderID, first.CreatedAt)
	})
	if err != nil {
		var de *svcErr.Error
		if !errors.As(err, &de) {
			s.appCtx.Logger.Error("accept message request failed", "request", req.ID, "err", err)
		}
		return nil, svcErr.Map(err)
	}

	metrics.RequestTransitionsTotal.WithLabelValues(kind, string(db.StatusAccepted)).Inc()
	s.publish(ctx, events.MessageRequestAccepted, map[string]string{"requestId": req.ID, "chatId": *req.ChatID})
	if first != nil {
		metrics.MessagesSentTotal.WithLabelValues(string(first.Type)).Inc()
		s.publish(ctx, events.MessageCreated, map[string]string{
			"messageId": first.ID, "chatId": first.ChatID, "senderId": first.SenderID, "type": string(first.Type),
		})
	}

	req.Status = db.StatusAccepted
	req.RespondedAt = &now
	out := dto.NewMessageRequest(req)
	return &out, nil
}

// RejectMessageRequest declines a pending request. The sender cannot ask again.
func (s *Service) RejectMessageRequest(ctx context.Context, recipientID, requestID string) (*dto.MessageRequest, error) {
	s.appCtx.Logger.Debug("RejectMessageRequest called", "recipient", recipientID, "request", requestID)

	req, err := s.loadPending(ctx, requestID, func(r *db.MessageRequest) string { return r.ToUserID }, recipientID)
	if err != nil {
		return nil, err
	}
	now := s.appCtx.Now()
	if req.Expired(now) {
		s.expire(ctx, req)
		return nil, ErrRequestExpired
	}

	ok, err := s.requests.Transition(ctx, req.ID, db.StatusRejected, now)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !ok {
		return nil, ErrRequestNotPending
	}
	metrics.RequestTransitionsTotal.WithLabelValues(kind, string(db.StatusRejected)).Inc()

	req.Status = db.StatusRejected
	req.RespondedAt = &now
	out := dto.NewMessageRequest(req)
	return &out, nil
}

// ListMessageRequests returns the caller's live pending requests, newest first.
func (s *Service) ListMessageRequests(ctx context.Context, userID string, dir social.Direction) ([]dto.MessageRequest, error) {
	if dir != social.Incoming && dir != social.Outgoing {
		return nil, social.ErrInvalidDirection
	}
	reqs, err := s.requests.ListPending(ctx, userID, dir == social.Incoming, s.appCtx.Now())
	if err != nil {
		return nil, svcErr.Map(err)
	}

	ids := make([]string, 0, len(reqs)*2)
	for _, r := range reqs {
		ids = append(ids, r.FromUserID, r.ToUserID)
	}
	users, err := s.users.FindManyByID(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]dto.MessageRequest, 0, len(reqs))
	for i := range reqs {
		item := dto.NewMessageRequest(&reqs[i])
		if u, ok := users[reqs[i].FromUserID]; ok {
			sum := dto.NewUserSummary(&u)
			item.From = &sum
		}
		if u, ok := users[reqs[i].ToUserID]; ok {
			sum := dto.NewUserSummary(&u)
			item.To = &sum
		}
		out = append(out, item)
	}
	return out, nil
}

// closedReason maps the existing row of an ordered pair to the error a resend gets.
func (s *Service) closedReason(ctx context.Context, req *db.MessageRequest, now time.Time) error {
	switch req.Status {
	case db.StatusPending:
		if !req.Expired(now) {
			return ErrRequestExists
		}
		s.expire(ctx, req)
		return ErrRequestClosed
	case db.StatusAccepted:
		return ErrChatExists
	default:
		return ErrRequestClosed
	}
}

func (s *Service) loadPending(
	ctx context.Context,
	requestID string,
	owner func(*db.MessageRequest) string,
	callerID string,
) (*db.MessageRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, svcErr.Map(err)
	}
	if owner(req) != callerID {
		return nil, ErrRequestNotFound
	}
	if req.Status != db.StatusPending {
		return nil, ErrRequestNotPending
	}
	return req, nil
}

// expire marks a lapsed pending request expired. Failures are logged; the sweep retries.
func (s *Service) expire(ctx context.Context, req *db.MessageRequest) {
	ok, err := s.requests.Transition(ctx, req.ID, db.StatusExpired, s.appCtx.Now())
	if err != nil {
		s.appCtx.Logger.Warn("expire message request failed", "request", req.ID, "err", err)
		return
	}
	if ok {
		req.Status = db.StatusExpired
		metrics.RequestTransitionsTotal.WithLabelValues(kind, string(db.StatusExpired)).Inc()
	}
}

func (s *Service) publish(ctx context.Context, subject string, data any) {
	if err := s.appCtx.Events.Publish(ctx, subject, data); err != nil {
		s.appCtx.Logger.Warn("publish event failed", "subject", subject, "err", err)
	}
}
