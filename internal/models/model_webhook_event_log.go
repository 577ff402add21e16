package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventLogStatus string

const (
	WebhookEventLogStatusReceived     WebhookEventLogStatus = "received"
	WebhookEventLogStatusHandled      WebhookEventLogStatus = "handled"
	WebhookEventLogStatusIgnored      WebhookEventLogStatus = "ignored"
	WebhookEventLogStatusHandleFailed WebhookEventLogStatus = "handle_failed"
)

// WebhookEventLog is an audit trail of every inbound gateway notification.
type WebhookEventLog struct {
	ID                string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Event             string                `gorm:"column:event;type:varchar(64);not null" json:"event"`
	ProviderPaymentID string                `gorm:"column:provider_payment_id;type:varchar(128);index" json:"provider_payment_id"`
	TraceID           string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Data              datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result            *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status            WebhookEventLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func (WebhookEventLog) TableName() string { return "webhook_event_log" }
