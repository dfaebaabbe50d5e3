package subscriptions

import (
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Plan describes a subscription tier. The catalog is fixed in code;
// there is no admin surface for editing plans.
type Plan struct {
	ID       enums.PlanID          `json:"id"`
	Name     string                `json:"name"`
	Price    decimal.Decimal       `json:"price"`
	Currency string                `json:"currency"`
	Interval enums.BillingInterval `json:"interval"`
	Duration time.Duration         `json:"-"`
	// MaxActiveListings of zero means unlimited.
	MaxActiveListings int      `json:"maxActiveListings"`
	Features          []string `json:"features"`
}

const (
	freePlanDuration    = 365 * 24 * time.Hour
	premiumPlanDuration = 30 * 24 * time.Hour

	// FreeListingLimit caps concurrent active listings on the free tier.
	FreeListingLimit = 2
)

var planCatalog = map[enums.PlanID]Plan{
	enums.PlanFree: {
		ID:                enums.PlanFree,
		Name:              "Free",
		Price:             decimal.Zero,
		Currency:          "KSH",
		Interval:          enums.IntervalYearly,
		Duration:          freePlanDuration,
		MaxActiveListings: FreeListingLimit,
		Features: []string{
			"Browse all listings",
			"Post up to 2 active listings",
			"Basic search filters",
		},
	},
	enums.PlanPremium: {
		ID:                enums.PlanPremium,
		Name:              "Premium",
		Price:             decimal.NewFromInt(100),
		Currency:          "KSH",
		Interval:          enums.IntervalMonthly,
		Duration:          premiumPlanDuration,
		MaxActiveListings: 0,
		Features: []string{
			"Unlimited active listings",
			"Featured placement eligibility",
			"Priority support",
		},
	},
}

// PlanByID looks up a catalog plan.
func PlanByID(id enums.PlanID) (Plan, bool) {
	plan, ok := planCatalog[id]
	return plan, ok
}

// Plans returns the catalog in display order.
func Plans() []Plan {
	return []Plan{planCatalog[enums.PlanFree], planCatalog[enums.PlanPremium]}
}
