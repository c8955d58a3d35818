package enums

import "fmt"

// DiscountKind maps to the discount_kind_enum enum in Postgres.
type DiscountKind string

const (
	DiscountKindPercentage  DiscountKind = "percentage"
	DiscountKindFixedAmount DiscountKind = "fixed_amount"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindPercentage,
	DiscountKindFixedAmount,
}

// IsValid reports whether the value matches the canonical discount kind enum.
func (k DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
