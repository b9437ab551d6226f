package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint      `gorm:"primaryKey"`
	TelegramID   int64     `gorm:"uniqueIndex;not null"`
	Gender       string    `gorm:"type:varchar(10);not null"`
	CoinBalance  int64     `gorm:"default:100;not null"`
	Status       string    `gorm:"type:varchar(20);default:'offline'"`
	LastActivity time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// User status constants
const (
	UserStatusOffline   = "offline"
	UserStatusOnline    = "online"
	UserStatusSearching = "searching"
	UserStatusInChat    = "in_chat"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// BeforeSave hook for validation
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Gender != GenderMale && u.Gender != GenderFemale {
		return gorm.ErrInvalidData
	}

	validStatuses := map[string]bool{
		UserStatusOffline:   true,
		UserStatusOnline:    true,
		UserStatusSearching: true,
		UserStatusInChat:    true,
	}
	if !validStatuses[u.Status] {
		return gorm.ErrInvalidData
	}

	return nil
}

func (User) TableName() string {
	return "users"
}

type UserBlock struct {
	ID        uint      `gorm:"primaryKey"`
	BlockerID uint      `gorm:"not null;index:idx_block_unique,unique"`
	BlockedID uint      `gorm:"not null;index:idx_block_unique,unique"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserBlock) TableName() string {
	return "user_blocks"
}
