package enums

// DiscountReason identifies why a discount code failed validation. Reasons are
// data, not errors: callers render a precise message per value.
type DiscountReason string

const (
	DiscountReasonNotFound         DiscountReason = "not_found"
	DiscountReasonInactive         DiscountReason = "inactive"
	DiscountReasonNotYetActive     DiscountReason = "not_yet_active"
	DiscountReasonExpired          DiscountReason = "expired"
	DiscountReasonUsageExhausted   DiscountReason = "usage_exhausted"
	DiscountReasonBelowMinimum     DiscountReason = "below_minimum"
	DiscountReasonRequiresLogin    DiscountReason = "requires_login"
	DiscountReasonNotAllowed       DiscountReason = "not_allowed"
	DiscountReasonNotFirstPurchase DiscountReason = "not_first_purchase"
	DiscountReasonLimitReached     DiscountReason = "limit_reached"
	DiscountReasonNoEligibleItems  DiscountReason = "no_eligible_items"
	DiscountReasonInvalidAmount    DiscountReason = "invalid_amount"
)
