package billing

import "math"

// Tier is a purchasable subscription period priced in Telegram Stars.
type Tier struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	Days        int    `json:"days"`
}

const (
	TierMonthly   = "monthly"
	TierSixMonths = "six_months"
	TierYearly    = "yearly"
)

// Tiers is the price list, cheapest first.
var Tiers = []Tier{
	{
		ID:          TierMonthly,
		Title:       "Pulse Plus - 1 Month",
		Description: "Premium features for 1 month: unlimited AI psychologist, more dates, and unlimited wish matching.",
		Price:       150,
		Days:        30,
	},
	{
		ID:          TierSixMonths,
		Title:       "Pulse Plus - 6 Months",
		Description: "Premium features for 6 months (save 22%): unlimited AI psychologist, more dates, and exclusive tree levels.",
		Price:       699,
		Days:        180,
	},
	{
		ID:          TierYearly,
		Title:       "Pulse Plus - 1 Year",
		Description: "Premium features for 12 months (save 45%): everything unlimited and advance date notifications.",
		Price:       999,
		Days:        365,
	},
}

// TierByID looks a tier up by id.
func TierByID(id string) (Tier, bool) {
	for _, t := range Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// DiscountedPrice applies a percent discount, rounding half up, never below 1 Star.
func DiscountedPrice(price, discount int) int {
	if discount <= 0 {
		return price
	}
	discount = min(discount, 100)
	p := int(math.Round(float64(price) * float64(100-discount) / 100))
	return max(p, 1)
}
