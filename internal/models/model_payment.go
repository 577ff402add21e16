package models

import "time"

// Payment is an immutable audit record of one captured charge, including
// renewals. Append-only; ProviderPaymentID is the idempotency key for
// gateway retries.
type Payment struct {
	ID                string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID            string    `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	MembershipID      string    `gorm:"column:membership_id;type:uuid;not null;index" json:"membership_id"`
	PlanID            string    `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	ProviderPaymentID string    `gorm:"column:provider_payment_id;type:varchar(128);not null;uniqueIndex" json:"provider_payment_id"`
	AmountMinor       int64     `gorm:"column:amount_minor;type:bigint;not null" json:"amount_minor"`
	Currency          string    `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	PaidAt            time.Time `gorm:"column:paid_at;not null" json:"paid_at"`
	CreatedAt         time.Time `json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
