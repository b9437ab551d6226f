package models

import (
	"time"
)

// ChatSession is the durable record of one anonymous pairing. Rows are never
// hard-deleted; ended sessions are kept for history and refund audit.
type ChatSession struct {
	ID            uint       `gorm:"primaryKey"`
	User1ID       uint       `gorm:"not null;index"`
	User1         User       `gorm:"foreignKey:User1ID;constraint:OnDelete:CASCADE"`
	User2ID       uint       `gorm:"not null;index"`
	User2         User       `gorm:"foreignKey:User2ID;constraint:OnDelete:CASCADE"`
	Status        string     `gorm:"type:varchar(20);default:'active';index"`
	SafeMode1     bool       `gorm:"column:safe_mode_1;default:false"`
	SafeMode2     bool       `gorm:"column:safe_mode_2;default:false"`
	MessageCount  int        `gorm:"default:0;not null"`
	MessageCount1 int        `gorm:"column:message_count_1;default:0;not null"`
	MessageCount2 int        `gorm:"column:message_count_2;default:0;not null"`
	CostPaid1     int64      `gorm:"column:cost_paid_1;default:0;not null"`
	CostPaid2     int64      `gorm:"column:cost_paid_2;default:0;not null"`
	Refunded1     bool       `gorm:"column:refunded_1;default:false"`
	Refunded2     bool       `gorm:"column:refunded_2;default:false"`
	StartedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP;index"`
	EndedAt       *time.Time `gorm:"index"`
	EndedBy       *uint
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
}

// Chat status constants
const (
	ChatStatusActive = "active"
	ChatStatusEnded  = "ended"
)

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// SideOf returns 1 or 2 for a participant, 0 for anyone else.
func (s *ChatSession) SideOf(userID uint) int {
	switch userID {
	case s.User1ID:
		return 1
	case s.User2ID:
		return 2
	}
	return 0
}

// PartnerID returns the other participant's id.
func (s *ChatSession) PartnerID(userID uint) uint {
	if userID == s.User1ID {
		return s.User2ID
	}
	return s.User1ID
}

// Protected reports the effective content protection: either side enabling
// safe mode protects both directions.
func (s *ChatSession) Protected() bool {
	return s.SafeMode1 || s.SafeMode2
}

// ChatMessage is one relayed unit of content. The same message lives under
// two independent Telegram message ids, one per participant's chat with the
// bot; both are stored so replies, edits and reactions resolve in either
// direction.
type ChatMessage struct {
	ID              uint        `gorm:"primaryKey"`
	ChatID          uint        `gorm:"not null;index"`
	Chat            ChatSession `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
	SenderID        uint        `gorm:"not null;index"`
	Type            string      `gorm:"type:varchar(20);not null"`
	Text            string      `gorm:"type:text"`
	FileID          string      `gorm:"type:varchar(200)"`
	TgMessageID1    int         `gorm:"column:tg_message_id_1;index"`
	TgMessageID2    int         `gorm:"column:tg_message_id_2;index"`
	ReplyToID       *uint       `gorm:"index"`
	IsEdited        bool        `gorm:"default:false"`
	DeletedForUser1 bool        `gorm:"default:false"`
	DeletedForUser2 bool        `gorm:"default:false"`
	CreatedAt       time.Time   `gorm:"autoCreateTime;index"`
}

// Message type constants
const (
	MessageTypeText     = "text"
	MessageTypePhoto    = "photo"
	MessageTypeVideo    = "video"
	MessageTypeVoice    = "voice"
	MessageTypeDocument = "document"
	MessageTypeSticker  = "sticker"
)

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// TgMessageIDFor returns the Telegram message id on the given side.
func (m *ChatMessage) TgMessageIDFor(side int) int {
	if side == 1 {
		return m.TgMessageID1
	}
	return m.TgMessageID2
}
