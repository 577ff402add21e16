package models

import "time"

// Channel is a gated resource users buy access to. Admin-managed, read-mostly.
type Channel struct {
	ID    string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Title string `gorm:"column:title;type:varchar(256);not null" json:"title"`
	// ChatID is the external telegram chat identifier.
	ChatID    int64     `gorm:"column:chat_id;not null;uniqueIndex" json:"chat_id"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Channel) TableName() string { return "channels" }
