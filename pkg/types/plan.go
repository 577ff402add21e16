package types

import (
	"fmt"
	"strings"
)

// Plan is one purchasable access period for a channel.
// DurationDays == nil means a lifetime plan: the resulting membership never expires.
type Plan struct {
	ID         string `json:"id" mapstructure:"id"`
	Title      string `json:"title" mapstructure:"title"`
	PriceMinor int64  `json:"price_minor" mapstructure:"price_minor"`
	Currency   string `json:"currency" mapstructure:"currency"`
	// ChannelID binds the plan to a gated channel.
	ChannelID    string `json:"channel_id" mapstructure:"channel_id"`
	DurationDays *int   `json:"duration_days" mapstructure:"duration_days"`
}

func (p *Plan) Lifetime() bool {
	return p != nil && p.DurationDays == nil
}

const renewPlanPrefix = "renew_"

// RenewPlanID encodes a renewal offer for an existing membership. The webhook
// carries it back in the payment notes as renew_<membership_id>_<plan_id>.
func RenewPlanID(membershipID, planID string) string {
	return renewPlanPrefix + membershipID + "_" + planID
}

// ParseRenewPlanID splits a renewal plan identifier. ok is false when the
// value is a plain plan id. Membership ids are UUIDs and never contain an
// underscore, so the first one after the prefix is the separator.
func ParseRenewPlanID(s string) (membershipID, planID string, ok bool) {
	if !strings.HasPrefix(s, renewPlanPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, renewPlanPrefix)
	idx := strings.Index(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

func (p *Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plan id is empty")
	}
	if p.PriceMinor < 0 {
		return fmt.Errorf("plan %s: negative price", p.ID)
	}
	if p.DurationDays != nil && *p.DurationDays <= 0 {
		return fmt.Errorf("plan %s: non-positive duration", p.ID)
	}
	return nil
}
