// Package dto defines the response shapes returned by the HTTP API.
// Models never leave the service layer directly, so OTP state and other internal columns stay private.
package dto

import (
	"time"

	"github.com/oggyb/kinnect/internal/db"
)

// UserSummary is the public card of a user shown in listings.
type UserSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Username  *string `json:"username,omitempty"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
	IsPrivate bool    `json:"isPrivate"`
}

// Profile is a user's full profile as seen by themselves.
type Profile struct {
	UserSummary
	CountryCode string     `json:"countryCode"`
	Phone       string     `json:"phone"`
	Bio         string     `json:"bio"`
	IsVerified  bool       `json:"isVerified"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PublicProfile is a user's profile as seen by someone else.
type PublicProfile struct {
	UserSummary
	Bio            string `json:"bio"`
	FollowersCount int64  `json:"followersCount"`
	FollowingCount int64  `json:"followingCount"`
	IsFollowing    bool   `json:"isFollowing"`
	FollowsYou     bool   `json:"followsYou"`
}

// Actor is the identity block returned after OTP verification for any role.
type Actor struct {
	ID          string     `json:"id"`
	Role        db.Role    `json:"role"`
	CountryCode string     `json:"countryCode"`
	Phone       string     `json:"phone"`
	IsVerified  bool       `json:"isVerified"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func NewUserSummary(u *db.User) UserSummary {
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		IsPrivate: u.IsPrivate,
	}
}

func NewProfile(u *db.User) Profile {
	return Profile{
		UserSummary: NewUserSummary(u),
		CountryCode: u.CountryCode,
		Phone:       u.Phone,
		Bio:         u.Bio,
		IsVerified:  u.IsVerified,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func NewActor(role db.Role, id *db.Identity) Actor {
	return Actor{
		ID:          id.ID,
		Role:        role,
		CountryCode: id.CountryCode,
		Phone:       id.Phone,
		IsVerified:  id.IsVerified,
		LastLoginAt: id.LastLoginAt,
	}
}

// FollowRequest is a pending, accepted or rejected follow request.
type FollowRequest struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requesterId"`
	RecipientID string           `json:"recipientId"`
	Status      db.RequestStatus `json:"status"`
	Message     string           `json:"message,omitempty"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	Requester   *UserSummary     `json:"requester,omitempty"`
	Recipient   *UserSummary     `json:"recipient,omitempty"`
}

func NewFollowRequest(r *db.FollowRequest) FollowRequest {
	return FollowRequest{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		RecipientID: r.RecipientID,
		Status:      r.Status,
		Message:     r.Message,
		ExpiresAt:   r.ExpiresAt,
		RespondedAt: r.RespondedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// MessageRequest gates a chat between two users who do not follow each other.
type MessageRequest struct {
	ID          string           `json:"id"`
	FromUserID  string           `json:"fromUserId"`
	ToUserID    string           `json:"toUserId"`
	Status      db.RequestStatus `json:"status"`
	Message     string           `json:"message,omitempty"`
	ChatID      *string          `json:"chatId,omitempty"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	From        *UserSummary     `json:"from,omitempty"`
	To          *UserSummary     `json:"to,omitempty"`
}

func NewMessageRequest(r *db.MessageRequest) MessageRequest {
	return MessageRequest{
		ID:          r.ID,
		FromUserID:  r.FromUserID,
		ToUserID:    r.ToUserID,
		Status:      r.Status,
		Message:     r.Message,
		ChatID:      r.ChatID,
		ExpiresAt:   r.ExpiresAt,
		RespondedAt: r.RespondedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// ChatSettings are the caller's own settings for a chat.
type ChatSettings struct {
	IsArchived  bool       `json:"isArchived"`
	IsPinned    bool       `json:"isPinned"`
	IsMuted     bool       `json:"isMuted"`
	MutedUntil  *time.Time `json:"mutedUntil,omitempty"`
	UnreadCount int        `json:"unreadCount"`
	LastReadAt  *time.Time `json:"lastReadAt,omitempty"`
}

func NewChatSettings(p *db.ChatParticipant) ChatSettings {
	return ChatSettings{
		IsArchived:  p.IsArchived,
		IsPinned:    p.IsPinned,
		IsMuted:     p.IsMuted,
		MutedUntil:  p.MutedUntil,
		UnreadCount: p.UnreadCount,
		LastReadAt:  p.LastReadAt,
	}
}

// Chat is one conversation from the caller's point of view.
type Chat struct {
	ID            string       `json:"id"`
	IsActive      bool         `json:"isActive"`
	Participants  []string     `json:"participants"`
	OtherUser     *UserSummary `json:"otherUser,omitempty"`
	Settings      ChatSettings `json:"settings"`
	LastMessage   *Message     `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time   `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Reaction is one user's emoji on a message.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// Receipt records when a user read a message.
type Receipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is a chat message. Deleted messages keep their slot but lose their body.
type Message struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chatId"`
	SenderID  string         `json:"senderId"`
	Type      db.MessageType `json:"type"`
	Content   string         `json:"content,omitempty"`
	MediaURL  string         `json:"mediaUrl,omitempty"`
	ReplyToID *string        `json:"replyToId,omitempty"`
	IsDeleted bool           `json:"isDeleted"`
	EditedAt  *time.Time     `json:"editedAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Reactions []Reaction     `json:"reactions,omitempty"`
	Receipts  []Receipt      `json:"receipts,omitempty"`
}

func NewMessage(m *db.Message) Message {
	out := Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Type:      m.Type,
		Content:   m.Content,
		MediaURL:  m.MediaURL,
		ReplyToID: m.ReplyToID,
		IsDeleted: m.IsDeleted,
		EditedAt:  m.EditedAt,
		CreatedAt: m.CreatedAt,
	}
	if m.IsDeleted {
		out.Content = ""
		out.MediaURL = ""
	}
	for _, r := range m.Reactions {
		out.Reactions = append(out.Reactions, Reaction{UserID: r.UserID, Emoji: r.Emoji})
	}
	for _, r := range m.Receipts {
		out.Receipts = append(out.Receipts, Receipt{UserID: r.UserID, ReadAt: r.ReadAt})
	}
	return out
}

// Call is a logged call session.
type Call struct {
	ID              string        `json:"id"`
	ChatID          string        `json:"chatId"`
	InitiatorID     string        `json:"initiatorId"`
	Type            db.CallType   `json:"type"`
	Status          db.CallStatus `json:"status"`
	Participants    []string      `json:"participants"`
	StartedAt       time.Time     `json:"startedAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
	DurationSeconds int64         `json:"durationSeconds"`
}

func NewCall(c *db.Call) Call {
	out := Call{
		ID:              c.ID,
		ChatID:          c.ChatID,
		InitiatorID:     c.InitiatorID,
		Type:            c.Type,
		Status:          c.Status,
		StartedAt:       c.StartedAt,
		EndedAt:         c.EndedAt,
		DurationSeconds: c.DurationSeconds,
		Participants:    make([]string, 0, len(c.Participants)),
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, p.UserID)
	}
	return out
}

// Report is a user report as seen by moderators.
type Report struct {
	ID             string          `json:"id"`
	ReporterID     string          `json:"reporterId"`
	ReportedUserID string          `json:"reportedUserId"`
	Reason         string          `json:"reason"`
	Description    string          `json:"description,omitempty"`
	Status         db.ReportStatus `json:"status"`
	AdminNotes     string          `json:"adminNotes,omitempty"`
	ResolvedBy     *string         `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func NewReport(r *db.UserReport) Report {
	return Report{
		ID:             r.ID,
		ReporterID:     r.ReporterID,
		ReportedUserID: r.ReportedUserID,
		Reason:         r.Reason,
		Description:    r.Description,
		Status:         r.Status,
		AdminNotes:     r.AdminNotes,
		ResolvedBy:     r.ResolvedBy,
		ResolvedAt:     r.ResolvedAt,
		CreatedAt:      r.CreatedAt,
	}
}

// SubAdmin is a moderator account as seen by admins.
type SubAdmin struct {
	ID          string    `json:"id"`
	CountryCode string    `json:"countryCode"`
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Permissions string    `json:"permissions,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewSubAdmin(s *db.SubAdmin) SubAdmin {
	return SubAdmin{
		ID:          s.ID,
		CountryCode: s.CountryCode,
		Phone:       s.Phone,
		Name:        s.Name,
		Email:       s.Email,
		Permissions: s.Permissions,
		IsActive:    s.IsActive,
		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt,
	}
}
