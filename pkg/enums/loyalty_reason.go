package enums

import "fmt"

// LoyaltyReason maps to the loyalty_reason_enum enum in Postgres and records
// why a points transaction exists.
type LoyaltyReason string

const (
	LoyaltyReasonOrderAward LoyaltyReason = "order_award"
	LoyaltyReasonRedemption LoyaltyReason = "redemption"
	LoyaltyReasonAdjustment LoyaltyReason = "adjustment"
)

var validLoyaltyReasons = []LoyaltyReason{
	LoyaltyReasonOrderAward,
	LoyaltyReasonRedemption,
	LoyaltyReasonAdjustment,
}

// IsValid reports whether the value matches the canonical loyalty reason enum.
func (r LoyaltyReason) IsValid() bool {
	for _, candidate := range validLoyaltyReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseLoyaltyReason converts raw input into LoyaltyReason.
func ParseLoyaltyReason(value string) (LoyaltyReason, error) {
	for _, candidate := range validLoyaltyReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loyalty reason %q", value)
}
