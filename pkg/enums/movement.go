package enums

import "fmt"

// MovementKind maps to the movement_kind_enum enum in Postgres.
type MovementKind string

const (
	MovementKindCreditSale  MovementKind = "credit_sale"
	MovementKindConsignment MovementKind = "consignment"
)

var validMovementKinds = []MovementKind{
	MovementKindCreditSale,
	MovementKindConsignment,
}

// IsValid reports whether the value matches the canonical movement kind enum.
func (k MovementKind) IsValid() bool {
	for _, candidate := range validMovementKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseMovementKind converts raw input into MovementKind.
func ParseMovementKind(value string) (MovementKind, error) {
	for _, candidate := range validMovementKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement kind %q", value)
}

// MovementStatus maps to the movement_status_enum enum in Postgres.
// Overdue is deliberately absent: it is derived from due_date and the
// remaining balance at read time, never persisted.
type MovementStatus string

const (
	MovementStatusDelivered   MovementStatus = "delivered"
	MovementStatusSold        MovementStatus = "sold"
	MovementStatusPartialPaid MovementStatus = "partial_paid"
	MovementStatusPaid        MovementStatus = "paid"
)

var validMovementStatuses = []MovementStatus{
	MovementStatusDelivered,
	MovementStatusSold,
	MovementStatusPartialPaid,
	MovementStatusPaid,
}

// IsValid reports whether the value matches the canonical movement status enum.
func (s MovementStatus) IsValid() bool {
	for _, candidate := range validMovementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMovementStatus converts raw input into MovementStatus.
func ParseMovementStatus(value string) (MovementStatus, error) {
	for _, candidate := range validMovementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement status %q", value)
}
