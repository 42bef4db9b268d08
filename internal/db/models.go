package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies which actor table an identity lives in.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSubAdmin Role = "subadmin"
	RoleUser     Role = "user"
)

// Identity holds the phone-OTP state shared by every actor table.
//
// (CountryCode, Phone) is unique per table. OTP fields are cleared on successful verification;
// only a bcrypt hash of the code is stored.
type Identity struct {
	ID            string `gorm:"primaryKey;size:36"`
	CountryCode   string `gorm:"size:8;not null;uniqueIndex:,composite:phone,priority:1"`
	Phone         string `gorm:"size:20;not null;uniqueIndex:,composite:phone,priority:2"`
	IsVerified    bool   `gorm:"not null;default:false"`
	IsActive      bool   `gorm:"not null;default:true"`
	OTPHash       *string
	OTPExpiresAt  *time.Time
	OTPLastSentAt *time.Time
	LastLoginAt   *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// GetIdentity lets generic repositories reach the embedded identity.
func (i *Identity) GetIdentity() *Identity { return i }

// ClearOTP wipes every OTP field.
func (i *Identity) ClearOTP() {
	i.OTPHash = nil
	i.OTPExpiresAt = nil
	i.OTPLastSentAt = nil
}

func (i *Identity) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Admin is a platform administrator.
type Admin struct {
	Identity
	Name  string `gorm:"size:100"`
	Email string `gorm:"size:128"`
}

// SubAdmin is a moderator created by an admin.
type SubAdmin struct {
	Identity
	Name        string `gorm:"size:100"`
	Email       string `gorm:"size:128"`
	Permissions string `gorm:"size:255"`
	CreatedBy   string `gorm:"size:36"`
}

// User is an end user of the social graph.
type User struct {
	Identity
	Name      string  `gorm:"size:100"`
	Username  *string `gorm:"size:64;uniqueIndex"`
	Bio       string  `gorm:"size:500"`
	AvatarURL string  `gorm:"size:512"`
	IsPrivate bool    `gorm:"not null;default:false"`
}

// Follow is a directed edge: FollowerID follows FolloweeID.
//
// Composite PK: (FollowerID, FolloweeID)
//   - set-union semantics, inserting an existing edge is a no-op.
//
// Indexes:
//   - idx_followee_created(followee_id, created_at) for follower listings.
type Follow struct {
	FollowerID string    `gorm:"primaryKey;size:36"`
	FolloweeID string    `gorm:"primaryKey;size:36;index:idx_followee_created,priority:1"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_followee_created,priority:2"`
}

// Block is a directed edge: BlockerID blocked BlockedID.
type Block struct {
	BlockerID string    `gorm:"primaryKey;size:36"`
	BlockedID string    `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
	StatusExpired  RequestStatus = "expired"
)

// FollowRequest is the consent ledger for follows. One row per ordered (requester, recipient).
type FollowRequest struct {
	ID          string        `gorm:"primaryKey;size:36"`
	RequesterID string        `gorm:"size:36;not null;uniqueIndex:idx_follow_req_pair,priority:1"`
	RecipientID string        `gorm:"size:36;not null;uniqueIndex:idx_follow_req_pair,priority:2;index:idx_follow_req_recipient_status,priority:1"`
	Status      RequestStatus `gorm:"size:16;not null;default:pending;index:idx_follow_req_recipient_status,priority:2"`
	Message     string        `gorm:"size:500"`
	ExpiresAt   time.Time     `gorm:"not null;index"`
	RespondedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (r *FollowRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the request is past its expiry at now.
func (r *FollowRequest) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// MessageRequest gates chat creation between non-mutual users. One row per ordered (from, to).
type MessageRequest struct {
	ID          string        `gorm:"primaryKey;size:36"`
	FromUserID  string        `gorm:"size:36;not null;uniqueIndex:idx_msg_req_pair,priority:1"`
	ToUserID    string        `gorm:"size:36;not null;uniqueIndex:idx_msg_req_pair,priority:2;index:idx_msg_req_to_status,priority:1"`
	Status      RequestStatus `gorm:"size:16;not null;default:pending;index:idx_msg_req_to_status,priority:2"`
	Message     string        `gorm:"size:1000"`
	ChatID      *string       `gorm:"size:36"`
	ExpiresAt   time.Time     `gorm:"not null;index"`
	RespondedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (r *MessageRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *MessageRequest) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// Chat is a two-participant conversation. PairKey is the sorted participant pair,
// which makes chat identity symmetric.
type Chat struct {
	ID            string     `gorm:"primaryKey;size:36"`
	PairKey       string     `gorm:"size:80;not null;uniqueIndex"`
	IsActive      bool       `gorm:"not null;default:true"`
	LastMessageID *string    `gorm:"size:36"`
	LastMessageAt *time.Time `gorm:"index"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`

	Participants []ChatParticipant `gorm:"foreignKey:ChatID"`
}

func (c *Chat) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ChatParticipant holds one user's independent settings for a chat.
type ChatParticipant struct {
	ChatID      string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"primaryKey;size:36;index"`
	IsArchived  bool   `gorm:"not null;default:false"`
	ArchivedAt  *time.Time
	IsPinned    bool `gorm:"not null;default:false"`
	PinnedAt    *time.Time
	IsMuted     bool `gorm:"not null;default:false"`
	MutedUntil  *time.Time
	UnreadCount int `gorm:"not null;default:0"`
	LastReadAt  *time.Time
	JoinedAt    time.Time `gorm:"autoCreateTime"`
}

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageDocument:
		return true
	}
	return false
}

// Message belongs to exactly one chat and one sender.
//
// Indexes:
//   - idx_chat_created_id(chat_id, created_at DESC, id) for newest-first cursor pagination.
type Message struct {
	ID        string      `gorm:"primaryKey;size:36;index:idx_chat_created_id,priority:3"`
	ChatID    string      `gorm:"size:36;not null;index:idx_chat_created_id,priority:1"`
	SenderID  string      `gorm:"size:36;not null"`
	Type      MessageType `gorm:"size:16;not null;default:text"`
	Content   string      `gorm:"type:text"`
	MediaURL  string      `gorm:"size:512"`
	ReplyToID *string     `gorm:"size:36"`
	IsDeleted bool        `gorm:"not null;default:false"`
	DeletedAt *time.Time
	EditedAt  *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_chat_created_id,priority:2,sort:desc"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Reactions []MessageReaction `gorm:"foreignKey:MessageID"`
	Receipts  []MessageReceipt  `gorm:"foreignKey:MessageID"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MessageReaction is one user's reaction to a message. One per (message, user).
type MessageReaction struct {
	MessageID string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"primaryKey;size:36"`
	Emoji     string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// MessageReceipt records when a user read a message.
type MessageReceipt struct {
	MessageID string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"primaryKey;size:36"`
	ReadAt    time.Time `gorm:"not null"`
}

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

type CallStatus string

const (
	CallEnded    CallStatus = "ended"
	CallMissed   CallStatus = "missed"
	CallRejected CallStatus = "rejected"
)

// Call is a call session record attached to a chat.
type Call struct {
	ID              string     `gorm:"primaryKey;size:36"`
	ChatID          string     `gorm:"size:36;not null;index"`
	InitiatorID     string     `gorm:"size:36;not null"`
	Type            CallType   `gorm:"size:16;not null"`
	Status          CallStatus `gorm:"size:16;not null"`
	StartedAt       time.Time  `gorm:"not null;index"`
	EndedAt         *time.Time
	DurationSeconds int64     `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`

	Participants []CallParticipant `gorm:"foreignKey:CallID"`
}

func (c *Call) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type CallParticipant struct {
	CallID   string `gorm:"primaryKey;size:36"`
	UserID   string `gorm:"primaryKey;size:36;index"`
	JoinedAt *time.Time
	LeftAt   *time.Time
}

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// UserReport is one user's report against another. PairKey is the unordered pair,
// so a report in either direction blocks a second one.
type UserReport struct {
	ID             string       `gorm:"primaryKey;size:36"`
	ReporterID     string       `gorm:"size:36;not null;index"`
	ReportedUserID string       `gorm:"size:36;not null;index"`
	PairKey        string       `gorm:"size:80;not null;uniqueIndex"`
	Reason         string       `gorm:"size:64;not null"`
	Description    string       `gorm:"size:1000"`
	Status         ReportStatus `gorm:"size:16;not null;default:pending;index"`
	AdminNotes     string       `gorm:"size:1000"`
	ResolvedBy     *string      `gorm:"size:36"`
	ResolvedAt     *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (r *UserReport) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// PairKey returns the order-independent key for two IDs.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// AllModels lists every table for migrations and test fixtures.
func AllModels() []any {
	return []any{
		&Admin{}, &SubAdmin{}, &User{},
		&Follow{}, &Block{},
		&FollowRequest{}, &MessageRequest{},
		&Chat{}, &ChatParticipant{},
		&Message{}, &MessageReaction{}, &MessageReceipt{},
		&Call{}, &CallParticipant{},
		&UserReport{},
	}
}
