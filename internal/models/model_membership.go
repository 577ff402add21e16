package models

import (
	"time"

	"github.com/clubgate/clubgate/pkg/types"
)

// Membership binds a user to a channel for one access period.
// At most one active row exists per (user_id, channel_id): renewals extend the
// existing row instead of creating a new one. Expiry flips IsActive; rows are
// never deleted.
type Membership struct {
	ID        string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string `gorm:"column:user_id;type:uuid;not null;index:idx_membership_user_channel,priority:1" json:"user_id"`
	ChannelID string `gorm:"column:channel_id;type:uuid;not null;index:idx_membership_user_channel,priority:2" json:"channel_id"`
	PlanID    string `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	// DurationDays is nil for lifetime plans; ExpiryDate is nil iff lifetime.
	DurationDays *int       `gorm:"column:duration_days" json:"duration_days"`
	StartDate    time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	ExpiryDate   *time.Time `gorm:"column:expiry_date;index" json:"expiry_date"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	// TierAtPurchase snapshots the user's tier at the latest purchase.
	TierAtPurchase types.Tier `gorm:"column:tier_at_purchase;type:varchar(32);not null" json:"tier_at_purchase"`
	// Reminder flags are per membership cycle and reset on every new cycle.
	Reminded3d bool      `gorm:"column:reminded_3d;not null;default:false" json:"reminded_3d"`
	Reminded1d bool      `gorm:"column:reminded_1d;not null;default:false" json:"reminded_1d"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Membership) TableName() string { return "memberships" }

func (m *Membership) Lifetime() bool {
	return m != nil && m.ExpiryDate == nil
}

// ActiveAt reports whether the membership grants access at t.
func (m *Membership) ActiveAt(t time.Time) bool {
	if m == nil || !m.IsActive {
		return false
	}
	if m.ExpiryDate == nil {
		return true
	}
	return m.ExpiryDate.After(t)
}

// DaysLeft returns whole calendar days until expiry, rounding up partial days.
// Lifetime memberships return -1.
func (m *Membership) DaysLeft(asOf time.Time) int {
	if m.ExpiryDate == nil {
		return -1
	}
	d := m.ExpiryDate.Sub(asOf)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
