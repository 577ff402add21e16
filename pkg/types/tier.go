package types

// Tier is a spend-based user classification used for differential pricing.
type Tier string

const (
	TierBudget   Tier = "budget"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// TierThresholds are cumulative-spend cutoffs in minor currency units.
type TierThresholds struct {
	StandardMinor int64 `mapstructure:"standard_minor"`
	PremiumMinor  int64 `mapstructure:"premium_minor"`
}

// DefaultTierThresholds corresponds to spend >= 2000 for standard and
// >= 8000 for premium at a minor-unit scale of 100.
var DefaultTierThresholds = TierThresholds{
	StandardMinor: 200_000,
	PremiumMinor:  800_000,
}

// TierFor classifies cumulative spend. Pure, no failure modes.
func TierFor(totalSpentMinor int64, t TierThresholds) Tier {
	switch {
	case totalSpentMinor >= t.PremiumMinor:
		return TierPremium
	case totalSpentMinor >= t.StandardMinor:
		return TierStandard
	default:
		return TierBudget
	}
}
