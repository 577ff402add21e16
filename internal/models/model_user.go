package models

import (
	"time"

	"github.com/clubgate/clubgate/pkg/types"
)

// User is one messaging-platform identity. Rows are never hard-deleted;
// blocking and expiry are status transitions.
type User struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TelegramID int64  `gorm:"column:telegram_id;not null;uniqueIndex" json:"telegram_id"`
	Username   string `gorm:"column:username;type:varchar(128)" json:"username"`
	FirstName  string `gorm:"column:first_name;type:varchar(128)" json:"first_name"`
	// TotalSpentMinor is cumulative captured spend in minor currency units.
	TotalSpentMinor int64            `gorm:"column:total_spent_minor;type:bigint;not null;default:0" json:"total_spent_minor"`
	Tier            types.Tier       `gorm:"column:tier;type:varchar(32);not null;default:'budget'" json:"tier"`
	Status          types.UserStatus `gorm:"column:status;type:varchar(32);not null;default:'active'" json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (User) TableName() string { return "users" }
