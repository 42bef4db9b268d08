package call

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/events"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/service/chat"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

var (
	ErrCallNotFound    = svcErr.NotFound("CALL_NOT_FOUND", "Call not found")
	ErrInvalidCallType = svcErr.InvalidArgument("INVALID_CALL_TYPE", "type must be audio or video")
	ErrInvalidStatus   = svcErr.InvalidArgument("INVALID_CALL_STATUS", "status must be ended, missed or rejected")
	ErrEndedAtRequired = svcErr.InvalidArgument("ENDED_AT_REQUIRED", "endedAt is required for an ended call")
	ErrEndBeforeStart  = svcErr.InvalidArgument("ENDED_BEFORE_STARTED", "endedAt must not be before startedAt")
)

// Entry is a finished call to be logged.
type Entry struct {
	Type      db.CallType   `json:"type" validate:"required"`
	Status    db.CallStatus `json:"status" validate:"required"`
	StartedAt time.Time     `json:"startedAt" validate:"required"`
	EndedAt   *time.Time    `json:"endedAt"`
}

// Service keeps the call history of chats.
type Service struct {
	appCtx *app.AppContext
	chats  *chat.Service
	calls  *repository.CallRepository
}

func NewCallService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		chats:  chat.NewChatService(appCtx),
		calls:  repository.NewCallRepository(appCtx.DB),
	}
}

// LogCall records a call initiatorID placed in chatID.
// Both chat members become participants. Only ended calls carry a duration.
func (s *Service) LogCall(ctx context.Context, initiatorID, chatID string, e Entry) (*dto.Call, error) {
	s.appCtx.Logger.Debug("LogCall called", "initiator", initiatorID, "chat", chatID, "status", e.Status)

	if e.Type != db.CallAudio && e.Type != db.CallVideo {
		return nil, ErrInvalidCallType
	}
	switch e.Status {
	case db.CallEnded, db.CallMissed, db.CallRejected:
	default:
		return nil, ErrInvalidStatus
	}
	if e.Status == db.CallEnded && e.EndedAt == nil {
		return nil, ErrEndedAtRequired
	}
	if e.EndedAt != nil && e.EndedAt.Before(e.StartedAt) {
		return nil, ErrEndBeforeStart
	}

	c, err := s.chats.Membership(ctx, chatID, initiatorID)
	if err != nil {
		return nil, err
	}

	started := e.StartedAt.UTC()
	rec := &db.Call{
		ChatID:      chatID,
		InitiatorID: initiatorID,
		Type:        e.Type,
		Status:      e.Status,
		StartedAt:   started,
	}
	if e.EndedAt != nil {
		ended := e.EndedAt.UTC()
		rec.EndedAt = &ended
	}
	if e.Status == db.CallEnded {
		rec.DurationSeconds = int64(rec.EndedAt.Sub(started) / time.Second)
	}
	for _, p := range c.Participants {
		cp := db.CallParticipant{UserID: p.UserID}
		if p.UserID == initiatorID || e.Status == db.CallEnded {
			cp.JoinedAt = &started
			cp.LeftAt = rec.EndedAt
		}
		rec.Participants = append(rec.Participants, cp)
	}

	if err := s.calls.Create(ctx, rec); err != nil {
		s.appCtx.Logger.Error("log call failed", "chat", chatID, "err", err)
		return nil, svcErr.Map(err)
	}

	if err := s.appCtx.Events.Publish(ctx, events.CallLogged, map[string]any{
		"callId": rec.ID, "chatId": chatID, "status": rec.Status, "durationSeconds": rec.DurationSeconds,
	}); err != nil {
		s.appCtx.Logger.Warn("publish event failed", "subject", events.CallLogged, "err", err)
	}

	out := dto.NewCall(rec)
	return &out, nil
}

// ListCalls returns the calls userID took part in, newest first.
func (s *Service) ListCalls(ctx context.Context, userID string, page, limit int) ([]dto.Call, int64, error) {
	calls, total, err := s.calls.ListForUser(ctx, userID, pagination.ClampPage(page), pagination.ClampLimit(limit))
	if err != nil {
		return nil, 0, svcErr.Map(err)
	}
	out := make([]dto.Call, 0, len(calls))
	for i := range calls {
		out = append(out, dto.NewCall(&calls[i]))
	}
	return out, total, nil
}

// GetCall returns one call. Non-participants get CALL_NOT_FOUND.
func (s *Service) GetCall(ctx context.Context, userID, callID string) (*dto.Call, error) {
	c, err := s.calls.FindByID(ctx, callID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, svcErr.Map(err)
	}
	ok, err := s.calls.IsParticipant(ctx, c.ID, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !ok {
		return nil, ErrCallNotFound
	}
	out := dto.NewCall(c)
	return &out, nil
}
