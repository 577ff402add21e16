package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor_Boundaries(t *testing.T) {
	th := DefaultTierThresholds

	tests := []struct {
		name  string
		spent int64
		want  Tier
	}{
		{"zero spend", 0, TierBudget},
		{"just below standard", 199_999, TierBudget},
		{"exactly standard", 200_000, TierStandard},
		{"between standard and premium", 500_000, TierStandard},
		{"just below premium", 799_999, TierStandard},
		{"exactly premium", 800_000, TierPremium},
		{"far above premium", 5_000_000, TierPremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(tt.spent, th))
		})
	}
}

func TestParseRenewPlanID(t *testing.T) {
	mid, plan, ok := ParseRenewPlanID(RenewPlanID("0192d7a0-aaaa-bbbb-cccc-000000000001", "gold_30"))
	assert.True(t, ok)
	assert.Equal(t, "0192d7a0-aaaa-bbbb-cccc-000000000001", mid)
	assert.Equal(t, "gold_30", plan)

	_, _, ok = ParseRenewPlanID("gold_30")
	assert.False(t, ok)

	_, _, ok = ParseRenewPlanID("renew_nounderscore")
	assert.False(t, ok)
}
