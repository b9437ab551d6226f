package models

import (
	"time"
)

type CoinTransaction struct {
	ID              uint      `gorm:"primaryKey"`
	UserID          uint      `gorm:"not null;index"`
	User            User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Amount          int64     `gorm:"not null"`
	TransactionType string    `gorm:"type:varchar(50);not null;index"`
	Description     string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index"`
}

// Transaction type constants
const (
	TxTypeMatchSearch  = "match_search"
	TxTypeMatchRefund  = "match_refund"
	TxTypeWelcomeBonus = "welcome_bonus"
)

func (CoinTransaction) TableName() string {
	return "coin_transactions"
}
