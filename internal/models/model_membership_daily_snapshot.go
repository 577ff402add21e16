package models

import "time"

// MembershipDailySnapshot is a per-channel daily rollup for analytics,
// written once per day by the stats sweep.
type MembershipDailySnapshot struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SnapshotDate string `gorm:"column:snapshot_date;uniqueIndex:idx_snapshot_date_channel,priority:1" json:"snapshot_date"`
	ChannelID    string `gorm:"column:channel_id;type:uuid;not null;uniqueIndex:idx_snapshot_date_channel,priority:2" json:"channel_id"`
	ActiveCount  int64  `gorm:"column:active_count;not null" json:"active_count"`
	// RevenueMinor is the sum of payments captured on the snapshot date.
	RevenueMinor      int64     `gorm:"column:revenue_minor;type:bigint;not null" json:"revenue_minor"`
	SnapshotCreatedAt time.Time `gorm:"column:snapshot_created_at" json:"snapshot_created_at"`
}

func (MembershipDailySnapshot) TableName() string { return "membership_daily_snapshots" }
