package models

import (
	"time"

	"github.com/clubgate/clubgate/pkg/types"
)

// UpsellAttempt records one proposed upgrade offer. The unique index on
// (user_id, channel_id, from_days) is the sweep's idempotency guard: the same
// offer is never created twice for one validity tier.
type UpsellAttempt struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID       string `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_upsell_user_channel_from,priority:1" json:"user_id"`
	ChannelID    string `gorm:"column:channel_id;type:uuid;not null;uniqueIndex:idx_upsell_user_channel_from,priority:2" json:"channel_id"`
	MembershipID string `gorm:"column:membership_id;type:uuid;not null" json:"membership_id"`
	FromDays     int    `gorm:"column:from_days;not null;uniqueIndex:idx_upsell_user_channel_from,priority:3" json:"from_days"`
	ToDays       int    `gorm:"column:to_days;not null" json:"to_days"`
	ToPlanID     string `gorm:"column:to_plan_id;type:varchar(64);not null" json:"to_plan_id"`
	PriceMinor   int64  `gorm:"column:price_minor;type:bigint;not null" json:"price_minor"`
	DiscountPct  int    `gorm:"column:discount_pct;not null" json:"discount_pct"`
	// Status is mutated at most once, when the user accepts or declines.
	Status    types.UpsellStatus `gorm:"column:status;type:varchar(32);not null;default:'pending'" json:"status"`
	OfferedAt time.Time          `gorm:"column:offered_at;not null" json:"offered_at"`
	DecidedAt *time.Time         `gorm:"column:decided_at" json:"decided_at"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (UpsellAttempt) TableName() string { return "upsell_attempts" }
