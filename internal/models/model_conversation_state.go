package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConversationState holds per-user multi-step bot flow state, replacing
// mutable flags on a shared router. ExpiresAt bounds abandoned flows; expired
// rows are purged by the hourly sweep.
type ConversationState struct {
	ID         string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TelegramID int64          `gorm:"column:telegram_id;not null;uniqueIndex" json:"telegram_id"`
	State      string         `gorm:"column:state;type:varchar(64);not null" json:"state"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb;default:'{}'" json:"payload"`
	ExpiresAt  time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (ConversationState) TableName() string { return "conversation_states" }

func (s *ConversationState) Expired(asOf time.Time) bool {
	return s != nil && !s.ExpiresAt.After(asOf)
}
